package models

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRevocationRegistrySize is used when a definition does not set one.
const DefaultRevocationRegistrySize = 100

// State is the materialized progress of a credential request.
type State string

const (
	StateRequested          State = "REQUESTED"
	StateConnectionPending  State = "CONNECTION_PENDING"
	StateConnectionAccepted State = "CONNECTION_ACCEPTED"
	StateOfferSent          State = "OFFER_SENT"
	StateCredentialAccepted State = "CREDENTIAL_ACCEPTED"
	StateRevoked            State = "REVOKED"
)

// CredentialDefinition is a credential template registered with the agent.
// Only Enabled changes after creation.
type CredentialDefinition struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	CredentialID           string    `json:"credential_id"`
	SchemaID               string    `json:"schema_id"`
	AttributeNames         []string  `json:"attribute_names"`
	SupportRevocation      bool      `json:"support_revocation"`
	RevocationRegistrySize int       `json:"revocation_registry_size"`
	Enabled                bool      `json:"enabled"`
	CreatedAt              time.Time `json:"created_at"`
}

var nonWord = regexp.MustCompile(`\W`)

// Tag is the agent tag for the definition: the name lower-cased with
// non-word characters removed.
func (d *CredentialDefinition) Tag() string {
	return strings.ToLower(nonWord.ReplaceAllString(d.Name, ""))
}

// CredentialRequest is one issuance attempt. Only Revoked changes after creation.
type CredentialRequest struct {
	ID                     uuid.UUID  `json:"id"`
	Code                   string     `json:"code"`
	CredentialDefinitionID uuid.UUID  `json:"credential_definition_id"`
	CredentialData         Attributes `json:"credential_data"`
	Email                  string     `json:"email,omitempty"`
	Revoked                bool       `json:"revoked"`
	CreatedAt              time.Time  `json:"created_at"`
}

// NewCode returns an opaque, unguessable request code.
func NewCode() string {
	return uuid.NewString()
}

// InvitationURL is the deep-link address handed to the holder.
func (r *CredentialRequest) InvitationURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/deep-link-redirect/" + url.PathEscape(r.Code)
}

func (r *CredentialRequest) ConnectionPollingURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/connection-check?code=" + url.QueryEscape(r.Code)
}

func (r *CredentialRequest) OfferPollingURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/credential-check?code=" + url.QueryEscape(r.Code)
}

// ConnectionInvitation is an append-only record of a connection handshake.
// Seq orders rows created within the same instant.
type ConnectionInvitation struct {
	ID                  uuid.UUID       `json:"id"`
	ConnectionID        string          `json:"connection_id"`
	InvitationJSON      json.RawMessage `json:"invitation_json"`
	Accepted            bool            `json:"accepted"`
	CredentialRequestID *uuid.UUID      `json:"credential_request_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	Seq                 int64           `json:"-"`
}

// CredentialOffer is an append-only record of an offer sent to a holder.
type CredentialOffer struct {
	ID                  uuid.UUID       `json:"id"`
	ConnectionID        string          `json:"connection_id"`
	OfferJSON           json.RawMessage `json:"offer_json"`
	Accepted            bool            `json:"accepted"`
	CredExID            string          `json:"cred_ex_id"`
	RevocationID        *string         `json:"revocation_id"`
	CredentialID        *string         `json:"credential_id"`
	CredentialRequestID *uuid.UUID      `json:"credential_request_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	Seq                 int64           `json:"-"`
}

// NewerThan reports whether a was created after b.
func (o *CredentialOffer) NewerThan(b *CredentialOffer) bool {
	return newer(o.CreatedAt, o.Seq, b.CreatedAt, b.Seq)
}

// NewerThan reports whether i was created after b.
func (i *ConnectionInvitation) NewerThan(b *ConnectionInvitation) bool {
	return newer(i.CreatedAt, i.Seq, b.CreatedAt, b.Seq)
}

func newer(at time.Time, seq int64, otherAt time.Time, otherSeq int64) bool {
	if !at.Equal(otherAt) {
		return at.After(otherAt)
	}
	return seq > otherSeq
}

// OptionalString maps "" to nil.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
