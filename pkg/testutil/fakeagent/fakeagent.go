// Package fakeagent is an in-memory stand-in for the ACA-Py admin API. It
// keeps connections and credential exchanges in memory and can play the
// holder side of the handshake by posting webhooks back to the issuer.
package fakeagent

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Connection states reported by the fake.
const (
	StateInvitation = "invitation"
	StateActive     = "active"
)

// Exchange states reported by the fake.
const (
	StateOfferSent        = "offer_sent"
	StateCredentialIssued = "credential_issued"
	StateRevoked          = "revoked"
)

type Connection struct {
	ID         string
	State      string
	TheirLabel string
}

type Exchange struct {
	ID           string
	ConnectionID string
	CredDefID    string
	State        string
	Offer        json.RawMessage
	RevocationID string
	RevocRegID   string
	CredentialID string

	seq int
}

type Agent struct {
	apiKey     string
	webhookURL string
	webhookKey string
	publicDID  string
	autoHolder time.Duration
	latency    time.Duration
	logger     *slog.Logger
	client     *http.Client

	mu          sync.Mutex
	connections map[string]*Connection
	exchanges   map[string]*Exchange
	schemas     map[string][]string
	credDefs    map[string]string
	revocations []string
	nextRevID   int
	nextSeq     int
	failures    map[string]int
	holderWG    sync.WaitGroup
}

type Option func(*Agent)

// WithAPIKey requires X-API-Key on every call.
func WithAPIKey(key string) Option {
	return func(a *Agent) {
		a.apiKey = key
	}
}

// WithWebhook sets where holder events are delivered: {baseURL}/webhooks/{key}/topic/{topic}/.
func WithWebhook(baseURL, key string) Option {
	return func(a *Agent) {
		a.webhookURL = baseURL
		a.webhookKey = key
	}
}

// WithAutoHolder makes the fake accept every invitation it creates and
// every offer it receives after d.
func WithAutoHolder(d time.Duration) Option {
	return func(a *Agent) {
		a.autoHolder = d
	}
}

func WithLatency(d time.Duration) Option {
	return func(a *Agent) {
		a.latency = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

func New(opts ...Option) *Agent {
	a := &Agent{
		publicDID:   "WgWxqztrNooG92RXvxSTWv",
		logger:      slog.Default(),
		client:      &http.Client{Timeout: 10 * time.Second},
		connections: make(map[string]*Connection),
		exchanges:   make(map[string]*Exchange),
		schemas:     make(map[string][]string),
		credDefs:    make(map[string]string),
		failures:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetWebhook changes the delivery target, e.g. once the issuer's test server
// URL is known.
func (a *Agent) SetWebhook(baseURL, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.webhookURL = baseURL
	a.webhookKey = key
}

// AddSchema registers a ledger schema with its attribute names.
func (a *Agent) AddSchema(id string, attrNames ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.schemas[id] = attrNames
}

// FailNext makes the next n calls to the named route answer 500.
// Route names: "create-invitation", "send-offer", "revoke", "records".
func (a *Agent) FailNext(route string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[route] = n
}

func (a *Agent) Connection(id string) (Connection, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.connections[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// Exchanges returns every exchange sent on connectionID, oldest first.
func (a *Agent) Exchanges(connectionID string) []Exchange {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Exchange
	for _, ex := range a.exchanges {
		if ex.ConnectionID == connectionID {
			out = append(out, *ex)
		}
	}
	slices.SortFunc(out, func(x, y Exchange) int { return x.seq - y.seq })
	return out
}

// Revocations lists revoked exchange ids in call order.
func (a *Agent) Revocations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.revocations...)
}

// Wait blocks until every auto-holder action started so far has finished.
func (a *Agent) Wait() {
	a.holderWG.Wait()
}

// Handler returns the admin API router.
func (a *Agent) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.simulateLatency, a.requireAPIKey)

	r.Get("/wallet/did/public", a.handlePublicDID)
	r.Post("/schemas", a.handleCreateSchema)
	r.Get("/schemas/{id}", a.handleSchema)
	r.Post("/credential-definitions", a.handleCreateCredDef)
	r.Get("/credential-definitions/{id}", a.handleCredDef)
	r.Post("/connections/create-invitation", a.handleCreateInvitation)
	r.Post("/connections/receive-invitation", a.handleReceiveInvitation)
	r.Post("/out-of-band/receive-invitation", a.handleReceiveInvitation)
	r.Post("/issue-credential/send-offer", a.handleSendOffer)
	r.Get("/issue-credential/records/{id}", a.handleRecord)
	r.Post("/revocation/revoke", a.handleRevoke)
	r.Post("/present-proof/create-request", a.handleProofRequest)
	return r
}

func (a *Agent) simulateLatency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.latency > 0 {
			time.Sleep(a.latency)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Agent) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(a.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// failing consumes one scripted failure for route.
func (a *Agent) failing(w http.ResponseWriter, route string) bool {
	a.mu.Lock()
	n := a.failures[route]
	if n > 0 {
		a.failures[route] = n - 1
	}
	a.mu.Unlock()
	if n > 0 {
		writeError(w, http.StatusInternalServerError, "scripted failure")
		return true
	}
	return false
}

func (a *Agent) handlePublicDID(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]string{"did": a.publicDID, "verkey": "verkey-" + a.publicDID, "posture": "posted"},
	})
}

func (a *Agent) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchemaName    string   `json:"schema_name"`
		SchemaVersion string   `json:"schema_version"`
		Attributes    []string `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SchemaName == "" {
		writeError(w, http.StatusBadRequest, "invalid schema request")
		return
	}
	id := fmt.Sprintf("%s:2:%s:%s", a.publicDID, req.SchemaName, req.SchemaVersion)
	a.AddSchema(id, req.Attributes...)
	writeJSON(w, http.StatusOK, map[string]any{"schema_id": id})
}

func (a *Agent) handleSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.mu.Lock()
	attrs, ok := a.schemas[id]
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "schema not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schema": map[string]any{"id": id, "name": id, "version": "1.0", "attrNames": attrs},
	})
}

func (a *Agent) handleCreateCredDef(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchemaID string `json:"schema_id"`
		Tag      string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential definition request")
		return
	}
	a.mu.Lock()
	_, ok := a.schemas[req.SchemaID]
	id := fmt.Sprintf("%s:3:CL:%s:%s", a.publicDID, req.SchemaID, req.Tag)
	if ok {
		a.credDefs[id] = req.SchemaID
	}
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown schema "+req.SchemaID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credential_definition_id": id})
}

func (a *Agent) handleCredDef(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.mu.Lock()
	schemaID, ok := a.credDefs[id]
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "credential definition not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"credential_definition": map[string]any{"id": id, "schemaId": schemaID, "type": "CL"},
	})
}

func (a *Agent) handleCreateInvitation(w http.ResponseWriter, _ *http.Request) {
	if a.failing(w, "create-invitation") {
		return
	}
	connID := uuid.NewString()
	a.mu.Lock()
	a.connections[connID] = &Connection{ID: connID, State: StateInvitation}
	a.mu.Unlock()

	invitation := map[string]any{
		"@type":           "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/connections/1.0/invitation",
		"@id":             uuid.NewString(),
		"label":           "idmanager-fake-agent",
		"recipientKeys":   []string{"key-" + connID},
		"serviceEndpoint": "http://fake-agent:8020",
	}
	raw, _ := json.Marshal(invitation) //nolint:errcheck // map of strings always encodes
	writeJSON(w, http.StatusOK, map[string]any{
		"connection_id":  connID,
		"invitation":     invitation,
		"invitation_url": "http://fake-agent:8020?c_i=" + base64.URLEncoding.EncodeToString(raw),
	})

	if a.autoHolder > 0 {
		a.holderWG.Add(1)
		time.AfterFunc(a.autoHolder, func() {
			defer a.holderWG.Done()
			if err := a.AcceptInvitation(context.Background(), connID); err != nil {
				a.logger.Error("auto holder failed to accept invitation", "connection_id", connID, "error", err)
			}
		})
	}
}

func (a *Agent) handleReceiveInvitation(w http.ResponseWriter, r *http.Request) {
	var invitation map[string]any
	if err := json.NewDecoder(r.Body).Decode(&invitation); err != nil || len(invitation) == 0 {
		writeError(w, http.StatusBadRequest, "invalid invitation")
		return
	}
	label, _ := invitation["label"].(string)
	connID := uuid.NewString()
	a.mu.Lock()
	a.connections[connID] = &Connection{ID: connID, State: StateActive, TheirLabel: label}
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"connection_id": connID, "state": "request", "their_label": label})
}

func (a *Agent) handleSendOffer(w http.ResponseWriter, r *http.Request) {
	if a.failing(w, "send-offer") {
		return
	}
	body, err := readAll(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offer")
		return
	}
	var offer struct {
		ConnectionID string `json:"connection_id"`
		CredDefID    string `json:"cred_def_id"`
	}
	if err := json.Unmarshal(body, &offer); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offer")
		return
	}

	a.mu.Lock()
	conn, ok := a.connections[offer.ConnectionID]
	if !ok || conn.State != StateActive {
		a.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Connection "+offer.ConnectionID+" not ready")
		return
	}
	a.nextSeq++
	ex := &Exchange{
		seq:          a.nextSeq,
		ID:           uuid.NewString(),
		ConnectionID: offer.ConnectionID,
		CredDefID:    offer.CredDefID,
		State:        StateOfferSent,
		Offer:        body,
	}
	a.exchanges[ex.ID] = ex
	out := exchangeJSON(ex)
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, out)

	if a.autoHolder > 0 {
		a.holderWG.Add(1)
		time.AfterFunc(a.autoHolder, func() {
			defer a.holderWG.Done()
			if err := a.IssueCredential(context.Background(), ex.ID); err != nil {
				a.logger.Error("auto holder failed to accept offer", "cred_ex_id", ex.ID, "error", err)
			}
		})
	}
}

func (a *Agent) handleRecord(w http.ResponseWriter, r *http.Request) {
	if a.failing(w, "records") {
		return
	}
	a.mu.Lock()
	ex, ok := a.exchanges[chi.URLParam(r, "id")]
	var out map[string]any
	if ok {
		out = exchangeJSON(ex)
	}
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *Agent) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if a.failing(w, "revoke") {
		return
	}
	var req struct {
		CredExID string `json:"cred_ex_id"`
		Publish  bool   `json:"publish"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid revocation request")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	ex, ok := a.exchanges[req.CredExID]
	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "record not found")
		return
	case ex.State != StateCredentialIssued:
		writeError(w, http.StatusBadRequest, "credential exchange is in state "+ex.State)
		return
	}
	ex.State = StateRevoked
	a.revocations = append(a.revocations, ex.ID)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (a *Agent) handleProofRequest(w http.ResponseWriter, r *http.Request) {
	body, err := readAll(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proof request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"presentation_exchange_id": uuid.NewString(),
		"presentation_request":     json.RawMessage(body),
	})
}

// AcceptInvitation plays the holder accepting the invitation of connID and
// notifies the issuer with a connections/response webhook.
func (a *Agent) AcceptInvitation(ctx context.Context, connID string) error {
	a.mu.Lock()
	conn, ok := a.connections[connID]
	if ok {
		conn.State = StateActive
	}
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown connection %s", connID)
	}
	return a.deliver(ctx, "connections", map[string]any{
		"connection_id": connID,
		"state":         "response",
		"their_label":   "holder-wallet",
	})
}

// IssueCredential plays the holder storing the credential of credExID and
// notifies the issuer with an issue_credential/credential_issued webhook.
func (a *Agent) IssueCredential(ctx context.Context, credExID string) error {
	a.mu.Lock()
	ex, ok := a.exchanges[credExID]
	if ok {
		a.nextRevID++
		ex.State = StateCredentialIssued
		ex.RevocationID = strconv.Itoa(a.nextRevID)
		ex.RevocRegID = a.publicDID + ":4:" + ex.CredDefID + ":CL_ACCUM:default"
		ex.CredentialID = uuid.NewString()
	}
	var payload map[string]any
	if ok {
		payload = exchangeJSON(ex)
	}
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown credential exchange %s", credExID)
	}
	return a.deliver(ctx, "issue_credential", payload)
}

func (a *Agent) deliver(ctx context.Context, topic string, payload any) error {
	a.mu.Lock()
	base, key := a.webhookURL, a.webhookKey
	a.mu.Unlock()
	if base == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	target := fmt.Sprintf("%s/webhooks/%s/topic/%s/", base, key, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s webhook: %w", topic, err)
	}
	resp.Body.Close() //nolint:errcheck // body is always empty
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deliver %s webhook: status %d", topic, resp.StatusCode)
	}
	return nil
}

func exchangeJSON(ex *Exchange) map[string]any {
	out := map[string]any{
		"credential_exchange_id": ex.ID,
		"connection_id":          ex.ConnectionID,
		"cred_def_id":            ex.CredDefID,
		"state":                  ex.State,
	}
	if ex.RevocationID != "" {
		out["revocation_id"] = ex.RevocationID
		out["revoc_reg_id"] = ex.RevocRegID
	}
	if ex.CredentialID != "" {
		out["credential_id"] = ex.CredentialID
	}
	return out
}

func readAll(r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
