package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Topics and states acted upon.
const (
	TopicConnections     = "connections"
	TopicIssueCredential = "issue_credential"

	StateResponse         = "response"
	StateCredentialIssued = "credential_issued"
)

// Event is the agent callback body. Only the fields the dispatcher reads are
// decoded; the rest stays in Raw.
type Event struct {
	State                string `json:"state"`
	ConnectionID         string `json:"connection_id"`
	CredentialExchangeID string `json:"credential_exchange_id"`

	Raw json.RawMessage `json:"-"`
}

var errNotObject = errors.New("webhook body is not a JSON object")

// ParseEvent decodes body, which must be a JSON object.
func ParseEvent(body []byte) (*Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if fields == nil {
		return nil, errNotObject
	}
	var ev Event
	for key, dst := range map[string]*string{
		"state":                  &ev.State,
		"connection_id":          &ev.ConnectionID,
		"credential_exchange_id": &ev.CredentialExchangeID,
	} {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("decode webhook field %s: %w", key, err)
		}
	}
	ev.Raw = body
	return &ev, nil
}
