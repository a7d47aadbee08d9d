package handler

import (
	"encoding/json"
	"time"

	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/service"
)

type CredentialRequestResponse struct {
	ID                      string       `json:"id"`
	Code                    string       `json:"code"`
	CredentialDefinitionID  string       `json:"credential_definition_id"`
	InvitationURL           string       `json:"invitation_url"`
	ConnectionPollingURL    string       `json:"connection_polling_url"`
	OfferPollingURL         string       `json:"offer_polling_url"`
	State                   models.State `json:"state,omitempty"`
	RevokedCredential       bool         `json:"revoked_credential"`
	ConnectionAccepted      bool         `json:"connection_accepted"`
	CredentialOfferAccepted bool         `json:"credential_offer_accepted"`
	CreatedAt               time.Time    `json:"created_at"`
}

type CredentialOfferResponse struct {
	ID                  string          `json:"id"`
	ConnectionID        string          `json:"connection_id"`
	CredExID            string          `json:"cred_ex_id"`
	OfferJSON           json.RawMessage `json:"offer_json"`
	Accepted            bool            `json:"accepted"`
	RevocationID        *string         `json:"revocation_id"`
	CredentialID        *string         `json:"credential_id"`
	CredentialRequestID *string         `json:"credential_request_id"`
	CreatedAt           time.Time       `json:"created_at"`
}

type ConnectionResponse struct {
	ConnectionID string `json:"connection_id"`
}

type IssueCredentialResponse struct {
	ConnectionID        string `json:"connection_id"`
	CredDefID           string `json:"cred_def_id"`
	CredentialRequestID string `json:"credential_request_id"`
}

type CredentialDefinitionResponse struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	CredentialID           string    `json:"credential_id"`
	SchemaID               string    `json:"schema_id"`
	AttributeNames         []string  `json:"attribute_names"`
	SupportRevocation      bool      `json:"support_revocation"`
	RevocationRegistrySize int       `json:"revocation_registry_size"`
	Enabled                bool      `json:"enabled"`
	CreatedAt              time.Time `json:"created_at"`
}

// Response mapping functions - convert domain objects to HTTP DTOs

func toIssuedResponse(ir service.IssuedRequest) *CredentialRequestResponse {
	return &CredentialRequestResponse{
		ID:                     ir.Request.ID.String(),
		Code:                   ir.Request.Code,
		CredentialDefinitionID: ir.Request.CredentialDefinitionID.String(),
		InvitationURL:          ir.InvitationURL,
		ConnectionPollingURL:   ir.ConnectionPollingURL,
		OfferPollingURL:        ir.OfferPollingURL,
		RevokedCredential:      ir.Request.Revoked,
		CreatedAt:              ir.Request.CreatedAt,
	}
}

func toRequestResponse(req *models.CredentialRequest, state models.State, siteURL string) *CredentialRequestResponse {
	resp := &CredentialRequestResponse{
		ID:                     req.ID.String(),
		Code:                   req.Code,
		CredentialDefinitionID: req.CredentialDefinitionID.String(),
		InvitationURL:          req.InvitationURL(siteURL),
		ConnectionPollingURL:   req.ConnectionPollingURL(siteURL),
		OfferPollingURL:        req.OfferPollingURL(siteURL),
		State:                  state,
		RevokedCredential:      req.Revoked,
		CreatedAt:              req.CreatedAt,
	}
	switch state {
	case models.StateConnectionAccepted, models.StateOfferSent:
		resp.ConnectionAccepted = true
	case models.StateCredentialAccepted, models.StateRevoked:
		resp.ConnectionAccepted = true
		resp.CredentialOfferAccepted = state == models.StateCredentialAccepted
	}
	return resp
}

func toOfferResponse(o *models.CredentialOffer) *CredentialOfferResponse {
	resp := &CredentialOfferResponse{
		ID:           o.ID.String(),
		ConnectionID: o.ConnectionID,
		CredExID:     o.CredExID,
		OfferJSON:    o.OfferJSON,
		Accepted:     o.Accepted,
		RevocationID: o.RevocationID,
		CredentialID: o.CredentialID,
		CreatedAt:    o.CreatedAt,
	}
	if o.CredentialRequestID != nil {
		id := o.CredentialRequestID.String()
		resp.CredentialRequestID = &id
	}
	return resp
}

func toDefinitionResponse(d *models.CredentialDefinition) *CredentialDefinitionResponse {
	return &CredentialDefinitionResponse{
		ID:                     d.ID.String(),
		Name:                   d.Name,
		CredentialID:           d.CredentialID,
		SchemaID:               d.SchemaID,
		AttributeNames:         d.AttributeNames,
		SupportRevocation:      d.SupportRevocation,
		RevocationRegistrySize: d.RevocationRegistrySize,
		Enabled:                d.Enabled,
		CreatedAt:              d.CreatedAt,
	}
}
