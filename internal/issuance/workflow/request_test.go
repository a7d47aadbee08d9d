package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/models"
	dErrors "idmanager/pkg/domain-errors"
)

func (s *EngineSuite) TestCheckReady() {
	ctx := context.Background()

	s.Run("fresh request is ready", func() {
		req := s.seedRequest()
		got, err := s.engine.CheckReady(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(req.ID, got.ID)
	})

	s.Run("pending offer is still ready", func() {
		req := s.seedRequest()
		s.seedOffer(req, "conn-pending", "ex-pending", false)
		_, err := s.engine.CheckReady(ctx, req.Code)
		s.NoError(err)
	})

	s.Run("accepted latest offer", func() {
		req := s.seedRequest()
		s.seedOffer(req, "conn-done", "ex-done", true)
		_, err := s.engine.CheckReady(ctx, req.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyAccepted))
	})

	s.Run("revoked request", func() {
		req := s.seedRequest()
		_, err := s.store.MarkRequestRevoked(ctx, req.ID)
		s.Require().NoError(err)
		_, err = s.engine.CheckReady(ctx, req.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRevoked))
	})

	s.Run("unknown code", func() {
		_, err := s.engine.CheckReady(ctx, "does-not-exist")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EngineSuite) TestRevoke() {
	ctx := context.Background()

	s.Run("revokes once then refuses without calling the agent", func() {
		req := s.seedRequest()
		s.seedOffer(req, "conn-rev", "ex-rev", true)
		s.agent.EXPECT().Revoke(gomock.Any(), agent.RevokeRequest{CredExID: "ex-rev", Publish: true}).
			Return(json.RawMessage(`{}`), nil).Times(1)

		s.Require().NoError(s.engine.Revoke(ctx, req.ID))

		err := s.engine.Revoke(ctx, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRevoked))

		state, err := s.engine.State(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(models.StateRevoked, state)
		s.Contains(s.publisher.types(), events.CredentialRevoked)
	})

	s.Run("no offer fails fast and leaves the request unrevoked", func() {
		req := s.seedRequest()

		err := s.engine.Revoke(ctx, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		stored, err := s.store.FindRequest(ctx, req.ID)
		s.Require().NoError(err)
		s.False(stored.Revoked)
	})

	s.Run("agent failure persists nothing", func() {
		req := s.seedRequest()
		s.seedOffer(req, "conn-rev-fail", "ex-rev-fail", true)
		s.agent.EXPECT().Revoke(gomock.Any(), gomock.Any()).Return(nil, &agent.Error{Op: "revoke", StatusCode: 500})

		err := s.engine.Revoke(ctx, req.ID)
		var agentErr *agent.Error
		s.True(errors.As(err, &agentErr))

		stored, err := s.store.FindRequest(ctx, req.ID)
		s.Require().NoError(err)
		s.False(stored.Revoked)
	})

	s.Run("unknown request", func() {
		err := s.engine.Revoke(ctx, uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EngineSuite) TestState() {
	ctx := context.Background()

	s.Run("walks the happy path", func() {
		req := s.seedRequest()
		state, err := s.engine.State(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(models.StateRequested, state)

		s.seedInvitation(req, "conn-state", true)
		state, err = s.engine.State(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(models.StateConnectionAccepted, state)
	})

	s.Run("unknown code", func() {
		_, err := s.engine.State(ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
