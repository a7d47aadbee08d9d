package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/models"
	dErrors "idmanager/pkg/domain-errors"
)

func (s *ServiceSuite) TestReceiveInvitation() {
	ctx := context.Background()
	invitation := json.RawMessage(`{"@type":"https://didcomm.org/connections/1.0/invitation","label":"holder"}`)

	s.Run("records an accepted connection", func() {
		s.agent.EXPECT().ReceiveConnectionInvitation(gomock.Any(), invitation).Return(&agent.Connection{ConnectionID: "conn-in"}, nil)

		connID, err := s.service.ReceiveInvitation(ctx, ReceiveInvitationCommand{Invitation: invitation})
		s.Require().NoError(err)
		s.Equal("conn-in", connID)

		inv, err := s.store.LatestInvitationByConnection(ctx, "conn-in")
		s.Require().NoError(err)
		s.True(inv.Accepted)
		s.Nil(inv.CredentialRequestID)
		s.JSONEq(string(invitation), string(inv.InvitationJSON))
	})

	s.Run("out of band", func() {
		s.agent.EXPECT().ReceiveOutOfBandInvitation(gomock.Any(), invitation).Return(&agent.Connection{ConnectionID: "conn-oob"}, nil)

		connID, err := s.service.ReceiveInvitation(ctx, ReceiveInvitationCommand{Invitation: invitation, OutOfBand: true})
		s.Require().NoError(err)
		s.Equal("conn-oob", connID)
	})

	s.Run("agent failure is a bad request", func() {
		s.agent.EXPECT().ReceiveConnectionInvitation(gomock.Any(), gomock.Any()).Return(nil, &agent.Error{Op: "receive", StatusCode: 422})

		_, err := s.service.ReceiveInvitation(ctx, ReceiveInvitationCommand{Invitation: invitation})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("invalid payload", func() {
		_, err := s.service.ReceiveInvitation(ctx, ReceiveInvitationCommand{Invitation: json.RawMessage(`[]`)})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) seedConnection(connectionID string, requestID *uuid.UUID) {
	s.Require().NoError(s.store.SaveInvitation(context.Background(), &models.ConnectionInvitation{
		ID:                  uuid.New(),
		ConnectionID:        connectionID,
		InvitationJSON:      json.RawMessage(`{"label":"holder"}`),
		Accepted:            true,
		CredentialRequestID: requestID,
	}))
}

func (s *ServiceSuite) TestIssueOnConnection() {
	ctx := context.Background()
	cmd := func(connID string) IssueOnConnectionCommand {
		return IssueOnConnectionCommand{ConnectionID: connID, CredDefID: s.definition.CredentialID, CredentialData: janeDoe()}
	}

	s.Run("claims an unlinked connection", func() {
		s.seedConnection("conn-free", nil)
		s.workflowAgent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-free").
			Return(&agent.CredentialExchange{CredentialExchangeID: "ex-free"}, nil)

		res, err := s.service.IssueOnConnection(ctx, cmd("conn-free"))
		s.Require().NoError(err)
		s.Equal("conn-free", res.ConnectionID)
		s.Equal(s.definition.CredentialID, res.CredDefID)

		inv, err := s.store.LatestInvitationByConnection(ctx, "conn-free")
		s.Require().NoError(err)
		s.Equal(res.CredentialRequestID, *inv.CredentialRequestID)

		offer, err := s.store.LatestOfferForRequest(ctx, res.CredentialRequestID)
		s.Require().NoError(err)
		s.Equal("ex-free", offer.CredExID)
	})

	s.Run("clones a connection that already serves a request", func() {
		earlier := uuid.New()
		s.seedConnection("conn-used", &earlier)
		s.workflowAgent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-used").
			Return(&agent.CredentialExchange{CredentialExchangeID: "ex-used"}, nil)

		res, err := s.service.IssueOnConnection(ctx, cmd("conn-used"))
		s.Require().NoError(err)

		latest, err := s.store.LatestInvitationByConnection(ctx, "conn-used")
		s.Require().NoError(err)
		s.True(latest.Accepted)
		s.Equal(res.CredentialRequestID, *latest.CredentialRequestID)
	})

	s.Run("agent refusal rolls back and reports connection not ready", func() {
		s.seedConnection("conn-busy", nil)
		s.workflowAgent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-busy").
			Return(nil, &agent.Error{Op: "send_credential_offer", StatusCode: 400, Body: "connection not active"})

		_, err := s.service.IssueOnConnection(ctx, cmd("conn-busy"))
		s.True(dErrors.HasCode(err, dErrors.CodeConnectionNotReady))
		s.Contains(err.Error(), "connection not active")
		var agentErr *agent.Error
		s.True(errors.As(err, &agentErr))

		inv, err := s.store.LatestInvitationByConnection(ctx, "conn-busy")
		s.Require().NoError(err)
		s.Nil(inv.CredentialRequestID)
	})

	s.Run("unknown connection", func() {
		_, err := s.service.IssueOnConnection(ctx, cmd("conn-none"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown definition", func() {
		c := cmd("conn-free")
		c.CredDefID = "nope"
		_, err := s.service.IssueOnConnection(ctx, c)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("incomplete data", func() {
		c := cmd("conn-free")
		c.CredentialData = models.Attributes{{Name: "name", Value: "Jane"}}
		_, err := s.service.IssueOnConnection(ctx, c)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
