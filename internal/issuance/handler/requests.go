package handler

import (
	"encoding/json"
	"strings"

	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/service"
	dErrors "idmanager/pkg/domain-errors"
	"idmanager/pkg/platform/validation"
)

// HTTP Request DTOs - contain JSON tags for API serialization.
// These are converted to service commands before processing.

// CreateCredentialRequest names the definition by agent id or by name.
type CreateCredentialRequest struct {
	CredentialDefinition string            `json:"credential_definition" validate:"required,notblank,max=255"`
	CredentialData       models.Attributes `json:"credential_data" validate:"required,min=1"`
	Email                string            `json:"email" validate:"required,email,max=255"`
}

func (r *CreateCredentialRequest) Normalize() {
	if r == nil {
		return
	}
	r.CredentialDefinition = strings.TrimSpace(r.CredentialDefinition)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *CreateCredentialRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	cmd := r.ToCommand()
	return cmd.Validate()
}

func (r *CreateCredentialRequest) ToCommand() service.CreateRequestCommand {
	return service.CreateRequestCommand{
		CredentialDefinition: r.CredentialDefinition,
		CredentialData:       r.CredentialData,
		Email:                r.Email,
	}
}

type ReceiveInvitationRequest struct {
	InvitationJSON json.RawMessage `json:"invitation_json"`
	OutOfBand      bool            `json:"out_of_band"`
}

func (r *ReceiveInvitationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	cmd := r.ToCommand()
	return cmd.Validate()
}

func (r *ReceiveInvitationRequest) ToCommand() service.ReceiveInvitationCommand {
	return service.ReceiveInvitationCommand{Invitation: r.InvitationJSON, OutOfBand: r.OutOfBand}
}

type IssueCredentialRequest struct {
	ConnectionID   string            `json:"connection_id" validate:"required,notblank"`
	CredDefID      string            `json:"cred_def_id" validate:"required,notblank"`
	CredentialData models.Attributes `json:"credential_data" validate:"required,min=1"`
}

func (r *IssueCredentialRequest) Normalize() {
	if r == nil {
		return
	}
	r.ConnectionID = strings.TrimSpace(r.ConnectionID)
	r.CredDefID = strings.TrimSpace(r.CredDefID)
}

func (r *IssueCredentialRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	cmd := r.ToCommand()
	return cmd.Validate()
}

func (r *IssueCredentialRequest) ToCommand() service.IssueOnConnectionCommand {
	return service.IssueOnConnectionCommand{
		ConnectionID:   r.ConnectionID,
		CredDefID:      r.CredDefID,
		CredentialData: r.CredentialData,
	}
}

type RegisterDefinitionRequest struct {
	Name                   string `json:"name" validate:"required,notblank,max=255"`
	SchemaID               string `json:"schema_id" validate:"required,notblank"`
	SupportRevocation      bool   `json:"support_revocation"`
	RevocationRegistrySize int    `json:"revocation_registry_size" validate:"min=0"`
}

func (r *RegisterDefinitionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.SchemaID = strings.TrimSpace(r.SchemaID)
}

func (r *RegisterDefinitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	cmd := r.ToCommand()
	return cmd.Validate()
}

func (r *RegisterDefinitionRequest) ToCommand() service.RegisterDefinitionCommand {
	return service.RegisterDefinitionCommand{
		Name:                   r.Name,
		SchemaID:               r.SchemaID,
		SupportRevocation:      r.SupportRevocation,
		RevocationRegistrySize: r.RevocationRegistrySize,
	}
}
