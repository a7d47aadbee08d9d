package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"idmanager/internal/agent"
	dErrors "idmanager/pkg/domain-errors"
)

func (s *ServiceSuite) TestRegisterDefinition() {
	ctx := context.Background()

	s.Run("creates the definition with the agent and stores it", func() {
		s.agent.EXPECT().Schema(gomock.Any(), "schema-1").Return(&agent.Schema{ID: "schema-1", AttrNames: []string{"first_name", "last_name"}}, nil)
		s.agent.EXPECT().CreateCredentialDefinition(gomock.Any(), agent.CredentialDefinitionRequest{
			SchemaID:               "schema-1",
			Tag:                    "membershipcard2026",
			SupportRevocation:      true,
			RevocationRegistrySize: 100,
		}).Return(&agent.CredentialDefinitionResponse{CredentialDefinitionID: "cred-def-1"}, nil)

		def, err := s.service.RegisterDefinition(ctx, RegisterDefinitionCommand{
			Name:              "Membership Card (2026)",
			SchemaID:          "schema-1",
			SupportRevocation: true,
		})
		s.Require().NoError(err)
		s.Equal("cred-def-1", def.CredentialID)
		s.Equal([]string{"first_name", "last_name"}, def.AttributeNames)

		stored, err := s.store.FindEnabledDefinition(ctx, "cred-def-1")
		s.Require().NoError(err)
		s.Equal(def.ID, stored.ID)
	})

	s.Run("schema lookup failure", func() {
		s.agent.EXPECT().Schema(gomock.Any(), "schema-x").Return(nil, &agent.Error{Op: "schema", StatusCode: 404})

		_, err := s.service.RegisterDefinition(ctx, RegisterDefinitionCommand{Name: "X", SchemaID: "schema-x"})
		s.True(dErrors.HasCode(err, dErrors.CodeAgent))
	})

	s.Run("validation", func() {
		_, err := s.service.RegisterDefinition(ctx, RegisterDefinitionCommand{SchemaID: "schema-1"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestDisableDefinition() {
	ctx := context.Background()

	s.Require().NoError(s.service.DisableDefinition(ctx, s.definition.ID))
	_, err := s.store.FindEnabledDefinition(ctx, s.definition.CredentialID)
	s.Error(err)

	err = s.service.DisableDefinition(ctx, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
