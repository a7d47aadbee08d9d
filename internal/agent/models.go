package agent

import "encoding/json"

// PreviewType is the DIDComm message type of a credential preview.
const PreviewType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/issue-credential/1.0/credential-preview"

// DID is the agent's public DID as returned by /wallet/did/public.
type DID struct {
	DID     string `json:"did"`
	Verkey  string `json:"verkey"`
	Posture string `json:"posture,omitempty"`
}

// PreviewAttribute is one attribute of a credential preview.
type PreviewAttribute struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	MimeType string `json:"mime-type"`
}

type CredentialPreview struct {
	Type       string             `json:"@type"`
	Attributes []PreviewAttribute `json:"attributes"`
}

// CredentialOffer is the body of POST /issue-credential/send-offer.
type CredentialOffer struct {
	AutoIssue         bool              `json:"auto_issue"`
	AutoRemove        bool              `json:"auto_remove"`
	ConnectionID      string            `json:"connection_id"`
	CredDefID         string            `json:"cred_def_id"`
	CredentialPreview CredentialPreview `json:"credential_preview"`
	Comment           string            `json:"comment,omitempty"`
}

// CredentialExchange is an issue-credential exchange record.
type CredentialExchange struct {
	CredentialExchangeID string `json:"credential_exchange_id"`
	ConnectionID         string `json:"connection_id,omitempty"`
	State                string `json:"state,omitempty"`
	RevocationID         string `json:"revocation_id,omitempty"`
	RevocRegID           string `json:"revoc_reg_id,omitempty"`
	CredentialID         string `json:"credential_id,omitempty"`

	// Raw holds the full response as received.
	Raw json.RawMessage `json:"-"`
}

// Invitation is the response of POST /connections/create-invitation.
type Invitation struct {
	ConnectionID  string          `json:"connection_id"`
	Invitation    json.RawMessage `json:"invitation"`
	InvitationURL string          `json:"invitation_url"`

	Raw json.RawMessage `json:"-"`
}

// Connection is a connection record returned by the receive-invitation endpoints.
type Connection struct {
	ConnectionID string `json:"connection_id"`
	State        string `json:"state,omitempty"`
	TheirLabel   string `json:"their_label,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type SchemaRequest struct {
	SchemaName    string   `json:"schema_name"`
	SchemaVersion string   `json:"schema_version"`
	Attributes    []string `json:"attributes"`
}

type SchemaResponse struct {
	SchemaID string          `json:"schema_id"`
	Schema   json.RawMessage `json:"schema,omitempty"`
}

// Schema is a ledger schema. AttrNames lists the declared attribute names.
type Schema struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attrNames"`
	SeqNo     int      `json:"seqNo,omitempty"`
}

type CredentialDefinitionRequest struct {
	SchemaID               string `json:"schema_id"`
	Tag                    string `json:"tag"`
	SupportRevocation      bool   `json:"support_revocation"`
	RevocationRegistrySize int    `json:"revocation_registry_size,omitempty"`
}

type CredentialDefinitionResponse struct {
	CredentialDefinitionID string `json:"credential_definition_id"`
}

// RevokeRequest is the body of POST /revocation/revoke.
type RevokeRequest struct {
	CredExID string `json:"cred_ex_id"`
	Publish  bool   `json:"publish"`
}
