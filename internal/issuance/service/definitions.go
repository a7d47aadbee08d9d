package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/store"
	dErrors "idmanager/pkg/domain-errors"
)

// RegisterDefinition creates a credential definition with the agent for an
// existing schema and stores it enabled.
func (s *Service) RegisterDefinition(ctx context.Context, cmd RegisterDefinitionCommand) (*models.CredentialDefinition, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	schema, err := s.agent.Schema(ctx, cmd.SchemaID)
	if err != nil {
		return nil, agentFailure(err, "failed to fetch schema "+cmd.SchemaID)
	}

	size := cmd.RevocationRegistrySize
	if size == 0 {
		size = models.DefaultRevocationRegistrySize
	}
	def := &models.CredentialDefinition{
		ID:                     uuid.New(),
		Name:                   cmd.Name,
		SchemaID:               cmd.SchemaID,
		AttributeNames:         schema.AttrNames,
		SupportRevocation:      cmd.SupportRevocation,
		RevocationRegistrySize: size,
		Enabled:                true,
	}
	req := agent.CredentialDefinitionRequest{
		SchemaID:          cmd.SchemaID,
		Tag:               def.Tag(),
		SupportRevocation: def.SupportRevocation,
	}
	if def.SupportRevocation {
		req.RevocationRegistrySize = size
	}
	created, err := s.agent.CreateCredentialDefinition(ctx, req)
	if err != nil {
		return nil, agentFailure(err, "failed to create credential definition")
	}
	def.CredentialID = created.CredentialDefinitionID

	if err := s.store.SaveDefinition(ctx, def); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "credential definition already registered: "+def.CredentialID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential definition")
	}
	s.logger.InfoContext(ctx, "credential definition registered",
		"credential_definition_id", def.CredentialID,
		"tag", req.Tag,
	)
	return def, nil
}

// DisableDefinition soft-deletes a definition. Existing requests keep it.
func (s *Service) DisableDefinition(ctx context.Context, id uuid.UUID) error {
	err := s.store.SetDefinitionEnabled(ctx, id, false)
	if errors.Is(err, store.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "credential definition not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to disable credential definition")
	}
	return nil
}
