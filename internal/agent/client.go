// Package agent is the HTTP client for the credential agent admin API.
//
// Every method performs exactly one HTTP call. There are no retries and no
// caching; callers decide what to do with an *Error.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"idmanager/internal/platform/tracer"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of an agent response is read.
	maxResponseBytes = 4 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL      string
	TransportURL string
	// APIKey is sent as X-API-Key when non-empty.
	APIKey     string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

type Client struct {
	baseURL      string
	transportURL string
	apiKey       string
	timeout      time.Duration
	http         HTTPDoer
	tracer       tracer.Tracer
	metrics      *Metrics
}

type Option func(*Client)

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		transportURL: cfg.TransportURL,
		apiKey:       cfg.APIKey,
		timeout:      cfg.Timeout,
		http:         httpClient,
		tracer:       tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EndpointURL returns the agent's DIDComm transport URL.
func (c *Client) EndpointURL() string {
	return c.transportURL
}

func (c *Client) CreateProofRequest(ctx context.Context, presentationRequest json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "create_proof_request", http.MethodPost, "/present-proof/create-request", presentationRequest, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PublicDID(ctx context.Context) (*DID, error) {
	var out struct {
		Result *DID `json:"result"`
	}
	if err := c.do(ctx, "public_did", http.MethodGet, "/wallet/did/public", nil, &out); err != nil {
		return nil, err
	}
	if out.Result == nil {
		return nil, &Error{Op: "public_did", StatusCode: http.StatusOK, Body: "no public DID"}
	}
	return out.Result, nil
}

func (c *Client) CredentialDefinition(ctx context.Context, credDefID string) (json.RawMessage, error) {
	var out struct {
		CredentialDefinition json.RawMessage `json:"credential_definition"`
	}
	path := "/credential-definitions/" + url.PathEscape(credDefID)
	if err := c.do(ctx, "credential_definition", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.CredentialDefinition, nil
}

func (c *Client) CreateCredentialDefinition(ctx context.Context, req CredentialDefinitionRequest) (*CredentialDefinitionResponse, error) {
	var out CredentialDefinitionResponse
	if err := c.do(ctx, "create_credential_definition", http.MethodPost, "/credential-definitions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Schema fetches a schema. Older agents answer with schema_json instead of schema.
func (c *Client) Schema(ctx context.Context, schemaID string) (*Schema, error) {
	var out struct {
		Schema     *Schema `json:"schema"`
		SchemaJSON *Schema `json:"schema_json"`
	}
	path := "/schemas/" + url.PathEscape(schemaID)
	if err := c.do(ctx, "schema", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	switch {
	case out.Schema != nil:
		return out.Schema, nil
	case out.SchemaJSON != nil:
		return out.SchemaJSON, nil
	}
	return nil, &Error{Op: "schema", StatusCode: http.StatusNotFound, Body: "schema missing from response"}
}

func (c *Client) CreateSchema(ctx context.Context, req SchemaRequest) (*SchemaResponse, error) {
	var out SchemaResponse
	if err := c.do(ctx, "create_schema", http.MethodPost, "/schemas", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateConnectionInvitation(ctx context.Context) (*Invitation, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "create_connection_invitation", http.MethodPost, "/connections/create-invitation", nil, &raw); err != nil {
		return nil, err
	}
	var out Invitation
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Op: "create_connection_invitation", StatusCode: http.StatusOK, Err: fmt.Errorf("decode response: %w", err), Malformed: true}
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) ReceiveConnectionInvitation(ctx context.Context, invitation json.RawMessage) (*Connection, error) {
	return c.receive(ctx, "receive_connection_invitation", "/connections/receive-invitation", invitation)
}

func (c *Client) ReceiveOutOfBandInvitation(ctx context.Context, invitation json.RawMessage) (*Connection, error) {
	return c.receive(ctx, "receive_out_of_band_invitation", "/out-of-band/receive-invitation", invitation)
}

func (c *Client) receive(ctx context.Context, op, path string, invitation json.RawMessage) (*Connection, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, http.MethodPost, path, invitation, &raw); err != nil {
		return nil, err
	}
	var out Connection
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("decode response: %w", err), Malformed: true}
	}
	out.Raw = raw
	return &out, nil
}

// SendCredentialOffer sends offer on connectionID. The connection id always
// overrides whatever the offer carried.
func (c *Client) SendCredentialOffer(ctx context.Context, offer CredentialOffer, connectionID string) (*CredentialExchange, error) {
	offer.ConnectionID = connectionID
	return c.exchange(ctx, "send_credential_offer", http.MethodPost, "/issue-credential/send-offer", offer)
}

func (c *Client) CredentialExchange(ctx context.Context, credExID string) (*CredentialExchange, error) {
	return c.exchange(ctx, "credential_exchange", http.MethodGet, "/issue-credential/records/"+url.PathEscape(credExID), nil)
}

func (c *Client) exchange(ctx context.Context, op, method, path string, body any) (*CredentialExchange, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, method, path, body, &raw); err != nil {
		return nil, err
	}
	var out CredentialExchange
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("decode response: %w", err), Malformed: true}
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) Revoke(ctx context.Context, req RevokeRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "revoke", http.MethodPost, "/revocation/revoke", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do performs one HTTP call bounded by the client timeout and decodes a
// 2xx JSON response into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "agent."+op,
		tracer.String(tracer.AttrOperation, op),
		tracer.String(tracer.AttrHTTPMethod, method),
	)
	start := time.Now()
	status := 0
	defer func() {
		span.SetAttributes(tracer.Int(tracer.AttrHTTPStatus, status))
		span.End(err)
		if c.metrics != nil {
			c.metrics.ObserveRequest(op, statusLabel(status, err), time.Since(start))
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, marshalErr := marshalBody(body)
		if marshalErr != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", marshalErr), Malformed: true}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err, Malformed: true}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		answered := status >= http.StatusOK && status < http.StatusMultipleChoices
		return &Error{Op: op, StatusCode: status, Err: fmt.Errorf("read response: %w", err), Malformed: answered}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &Error{Op: op, StatusCode: status, Body: string(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Op: op, StatusCode: status, Err: fmt.Errorf("decode response: %w", err), Malformed: true}
	}
	return nil
}

func marshalBody(body any) ([]byte, error) {
	if raw, ok := body.(json.RawMessage); ok {
		if len(raw) == 0 {
			return []byte("{}"), nil
		}
		return raw, nil
	}
	return json.Marshal(body)
}

func statusLabel(status int, err error) string {
	if status == 0 {
		if agentErr, ok := AsError(err); ok && agentErr.Timeout() {
			return "timeout"
		}
		return "transport_error"
	}
	return strconv.Itoa(status)
}
