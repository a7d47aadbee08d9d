package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/models"
)

func (s *EngineSuite) TestEnsureInvitation() {
	ctx := context.Background()

	s.Run("creates one invitation and reuses it while pending", func() {
		req := s.seedRequest()
		s.agent.EXPECT().CreateConnectionInvitation(gomock.Any()).Return(agentInvitation("conn-new"), nil).Times(1)

		first, err := s.engine.EnsureInvitation(ctx, req)
		s.Require().NoError(err)
		s.Equal("conn-new", first.ConnectionID)
		s.Require().NotNil(first.CredentialRequestID)
		s.Equal(req.ID, *first.CredentialRequestID)
		s.False(first.Accepted)

		second, err := s.engine.EnsureInvitation(ctx, req)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)

		state, err := s.engine.State(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(models.StateConnectionPending, state)
	})

	s.Run("returns the stored pending invitation without calling the agent", func() {
		req := s.seedRequest()
		s.seedInvitation(req, "conn-old", false)
		latest := s.seedInvitation(req, "conn-latest", false)

		got, err := s.engine.EnsureInvitation(ctx, req)
		s.Require().NoError(err)
		s.Equal(latest.ID, got.ID)
	})

	s.Run("creates a fresh invitation once the previous one was accepted", func() {
		req := s.seedRequest()
		s.seedInvitation(req, "conn-accepted", true)
		s.agent.EXPECT().CreateConnectionInvitation(gomock.Any()).Return(agentInvitation("conn-retry"), nil)

		got, err := s.engine.EnsureInvitation(ctx, req)
		s.Require().NoError(err)
		s.Equal("conn-retry", got.ConnectionID)
	})

	s.Run("agent failure persists nothing", func() {
		req := s.seedRequest()
		agentErr := &agent.Error{Op: "create_connection_invitation", StatusCode: 503, Body: "unavailable"}
		s.agent.EXPECT().CreateConnectionInvitation(gomock.Any()).Return(nil, agentErr)

		_, err := s.engine.EnsureInvitation(ctx, req)
		s.Require().Error(err)
		var got *agent.Error
		s.Require().True(errors.As(err, &got))
		s.Equal(503, got.StatusCode)

		state, err := s.engine.State(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(models.StateRequested, state)
	})

	s.Run("concurrent callers share a single agent call", func() {
		req := s.seedRequest()
		s.agent.EXPECT().CreateConnectionInvitation(gomock.Any()).Return(agentInvitation("conn-shared"), nil).Times(1)

		var wg sync.WaitGroup
		ids := make([]uuid.UUID, 8)
		errs := make([]error, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				inv, err := s.engine.EnsureInvitation(ctx, req)
				errs[i] = err
				if inv != nil {
					ids[i] = inv.ID
				}
			}(i)
		}
		wg.Wait()

		for i := range ids {
			s.Require().NoError(errs[i])
			s.Equal(ids[0], ids[i])
		}
	})
}

func (s *EngineSuite) TestInvitationLink() {
	s.Run("agent created invitation", func() {
		inv := &models.ConnectionInvitation{ID: uuid.New(), InvitationJSON: agentInvitationJSON("conn-1")}

		url, b64, err := InvitationLink(inv)
		s.Require().NoError(err)
		s.Equal("http://agent:8020?c_i=abc", url)

		decoded, err := base64.StdEncoding.DecodeString(b64)
		s.Require().NoError(err)
		s.JSONEq(`{"@type":"https://didcomm.org/connections/1.0/invitation","label":"idmanager"}`, string(decoded))
	})

	s.Run("received invitation without envelope", func() {
		inv := &models.ConnectionInvitation{ID: uuid.New(), InvitationJSON: []byte(`{"label": "holder"}`)}

		url, b64, err := InvitationLink(inv)
		s.Require().NoError(err)
		s.Empty(url)
		s.Equal(base64.StdEncoding.EncodeToString([]byte(`{"label":"holder"}`)), b64)
	})

	s.Run("malformed payload", func() {
		_, _, err := InvitationLink(&models.ConnectionInvitation{ID: uuid.New(), InvitationJSON: []byte(`nope`)})
		s.Error(err)
	})
}

func (s *EngineSuite) TestAcceptConnection() {
	ctx := context.Background()

	s.Run("accepting twice is idempotent and still returns the record", func() {
		req := s.seedRequest()
		inv := s.seedInvitation(req, "conn-accept", false)

		first, err := s.engine.AcceptConnection(ctx, "conn-accept")
		s.Require().NoError(err)
		s.Require().NotNil(first)
		s.Equal(inv.ID, first.ID)
		s.True(first.Accepted)

		second, err := s.engine.AcceptConnection(ctx, "conn-accept")
		s.Require().NoError(err)
		s.Require().NotNil(second)
		s.Equal(inv.ID, second.ID)
		s.True(second.Accepted)

		s.Equal(1.0, testutil.ToFloat64(s.metrics.Transitions.WithLabelValues(string(models.StateConnectionAccepted))))
		s.Contains(s.publisher.types(), events.ConnectionAccepted)
	})

	s.Run("only the latest invitation for the connection flips", func() {
		req := s.seedRequest()
		older := s.seedInvitation(req, "conn-dup", false)
		newer := s.seedInvitation(req, "conn-dup", false)

		got, err := s.engine.AcceptConnection(ctx, "conn-dup")
		s.Require().NoError(err)
		s.Equal(newer.ID, got.ID)

		pending, err := s.store.LatestPendingInvitationForRequest(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(older.ID, pending.ID)
	})

	s.Run("unknown connection yields nil without error", func() {
		got, err := s.engine.AcceptConnection(ctx, "conn-missing")
		s.NoError(err)
		s.Nil(got)
	})

	s.Run("concurrent duplicate deliveries flip once", func() {
		req := s.seedRequest()
		s.seedInvitation(req, "conn-race", false)
		before := testutil.ToFloat64(s.metrics.Transitions.WithLabelValues(string(models.StateConnectionAccepted)))

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.engine.AcceptConnection(ctx, "conn-race")
			}()
		}
		wg.Wait()

		after := testutil.ToFloat64(s.metrics.Transitions.WithLabelValues(string(models.StateConnectionAccepted)))
		s.Equal(before+1, after)
	})
}
