package service

import (
	"encoding/json"

	"github.com/google/uuid"

	"idmanager/internal/issuance/models"
	dErrors "idmanager/pkg/domain-errors"
	"idmanager/pkg/platform/validation"
)

// CreateRequestCommand asks for a credential to be issued to Email.
// CredentialDefinition is the agent credential definition id or the
// definition name.
type CreateRequestCommand struct {
	CredentialDefinition string            `validate:"required,notblank,max=255"`
	CredentialData       models.Attributes `validate:"required,min=1"`
	Email                string            `validate:"required,email,max=255"`
}

func (c *CreateRequestCommand) Validate() error {
	return validation.Validate(c)
}

// IssuedRequest is a stored request with the URLs handed to the holder.
type IssuedRequest struct {
	Request              *models.CredentialRequest
	InvitationURL        string
	ConnectionPollingURL string
	OfferPollingURL      string
}

// IssueOnConnectionCommand issues a credential over an existing connection.
type IssueOnConnectionCommand struct {
	ConnectionID   string            `validate:"required,notblank"`
	CredDefID      string            `validate:"required,notblank"`
	CredentialData models.Attributes `validate:"required,min=1"`
}

func (c *IssueOnConnectionCommand) Validate() error {
	return validation.Validate(c)
}

type IssueResult struct {
	ConnectionID        string
	CredDefID           string
	CredentialRequestID uuid.UUID
}

// ReceiveInvitationCommand carries an invitation issued by another agent.
type ReceiveInvitationCommand struct {
	Invitation json.RawMessage
	OutOfBand  bool
}

func (c *ReceiveInvitationCommand) Validate() error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Invitation, &fields); err != nil || len(fields) == 0 {
		return dErrors.New(dErrors.CodeValidation, "invitation_json must be a non-empty JSON object")
	}
	return nil
}

type RegisterDefinitionCommand struct {
	Name                   string `validate:"required,notblank,max=255"`
	SchemaID               string `validate:"required,notblank"`
	SupportRevocation      bool
	RevocationRegistrySize int `validate:"min=0"`
}

func (c *RegisterDefinitionCommand) Validate() error {
	return validation.Validate(c)
}
