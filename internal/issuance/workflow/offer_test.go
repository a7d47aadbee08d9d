package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/mock/gomock"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/crafter"
	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/models"
	dErrors "idmanager/pkg/domain-errors"
)

func (s *EngineSuite) TestCreateOffer() {
	ctx := context.Background()

	s.Run("crafts from the request data and records the exchange", func() {
		req := s.seedRequest()
		inv := s.seedInvitation(req, "conn-offer", true)

		var sent agent.CredentialOffer
		s.agent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-offer").
			DoAndReturn(func(_ context.Context, offer agent.CredentialOffer, _ string) (*agent.CredentialExchange, error) {
				sent = offer
				return &agent.CredentialExchange{CredentialExchangeID: "ex-1", RevocationID: "7"}, nil
			})

		offer, err := s.engine.CreateOffer(ctx, "conn-offer", inv)
		s.Require().NoError(err)

		s.True(sent.AutoIssue)
		s.False(sent.AutoRemove)
		s.Equal(testCredDefID, sent.CredDefID)
		s.Equal(req.CredentialData, crafter.Decode(sent.CredentialPreview.Attributes))

		s.Equal("ex-1", offer.CredExID)
		s.False(offer.Accepted)
		s.Require().NotNil(offer.RevocationID)
		s.Equal("7", *offer.RevocationID)
		s.Nil(offer.CredentialID)
		s.Equal(req.ID, *offer.CredentialRequestID)

		var stored agent.CredentialOffer
		s.Require().NoError(json.Unmarshal(offer.OfferJSON, &stored))
		s.Equal("conn-offer", stored.ConnectionID)

		state, err := s.engine.State(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(models.StateOfferSent, state)
		s.Contains(s.publisher.types(), events.CredentialOfferSent)
	})

	s.Run("agent errors propagate unchanged", func() {
		req := s.seedRequest()
		inv := s.seedInvitation(req, "conn-not-ready", false)
		agentErr := &agent.Error{Op: "send_credential_offer", StatusCode: 400, Body: "connection not ready"}
		s.agent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-not-ready").Return(nil, agentErr)

		_, err := s.engine.CreateOffer(ctx, "conn-not-ready", inv)
		s.Same(agentErr, err)

		has, err := s.engine.HasOffer(ctx, "conn-not-ready")
		s.Require().NoError(err)
		s.False(has)
	})

	s.Run("missing exchange id is an agent error", func() {
		req := s.seedRequest()
		inv := s.seedInvitation(req, "conn-no-ex", true)
		s.agent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-no-ex").Return(&agent.CredentialExchange{}, nil)

		_, err := s.engine.CreateOffer(ctx, "conn-no-ex", inv)
		s.True(dErrors.HasCode(err, dErrors.CodeAgent))
	})

	s.Run("invitation without a request", func() {
		inv := s.seedInvitation(nil, "conn-orphan", true)

		_, err := s.engine.CreateOffer(ctx, "conn-orphan", inv)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EngineSuite) TestEnsureOffer() {
	ctx := context.Background()

	s.Run("second call finds the existing offer", func() {
		req := s.seedRequest()
		inv := s.seedInvitation(req, "conn-ensure", true)
		s.agent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-ensure").
			Return(&agent.CredentialExchange{CredentialExchangeID: "ex-ensure"}, nil).Times(1)

		first, created, err := s.engine.EnsureOffer(ctx, "conn-ensure", inv)
		s.Require().NoError(err)
		s.True(created)

		second, created, err := s.engine.EnsureOffer(ctx, "conn-ensure", inv)
		s.Require().NoError(err)
		s.False(created)
		s.Equal(first.ID, second.ID)
	})

	s.Run("concurrent schedules send exactly one offer", func() {
		req := s.seedRequest()
		inv := s.seedInvitation(req, "conn-burst", true)
		s.agent.EXPECT().SendCredentialOffer(gomock.Any(), gomock.Any(), "conn-burst").
			Return(&agent.CredentialExchange{CredentialExchangeID: "ex-burst"}, nil).Times(1)

		var wg sync.WaitGroup
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := s.engine.EnsureOffer(ctx, "conn-burst", inv)
				s.NoError(err)
			}()
		}
		wg.Wait()
	})
}

func (s *EngineSuite) TestAcceptOffer() {
	ctx := context.Background()

	s.Run("latest offer flips and a repeat is a no-op", func() {
		req := s.seedRequest()
		older := s.seedOffer(req, "conn-issued", "ex-old", false)
		newer := s.seedOffer(req, "conn-issued", "ex-new", false)

		got, err := s.engine.AcceptOffer(ctx, "conn-issued")
		s.Require().NoError(err)
		s.Equal(newer.ID, got.ID)
		s.True(got.Accepted)

		again, err := s.engine.AcceptOffer(ctx, "conn-issued")
		s.Require().NoError(err)
		s.True(again.Accepted)

		offers, err := s.store.ListOffers(ctx, &req.ID)
		s.Require().NoError(err)
		for _, o := range offers {
			if o.ID == older.ID {
				s.False(o.Accepted)
			}
		}

		state, err := s.engine.State(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(models.StateCredentialAccepted, state)
	})

	s.Run("unknown connection yields nil without error", func() {
		got, err := s.engine.AcceptOffer(ctx, "conn-nobody")
		s.NoError(err)
		s.Nil(got)
	})
}

func (s *EngineSuite) TestSyncOffer() {
	ctx := context.Background()

	s.Run("copies ids from the exchange record", func() {
		req := s.seedRequest()
		offer := s.seedOffer(req, "conn-sync", "ex-sync", true)
		s.agent.EXPECT().CredentialExchange(gomock.Any(), "ex-sync").
			Return(&agent.CredentialExchange{CredentialExchangeID: "ex-sync", RevocationID: "12", CredentialID: "cred-9"}, nil)

		got, err := s.engine.SyncOffer(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(offer.ID, got.ID)
		s.Equal("12", *got.RevocationID)
		s.Equal("cred-9", *got.CredentialID)

		stored, err := s.store.LatestOfferForRequest(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal("cred-9", *stored.CredentialID)
	})

	s.Run("no offer", func() {
		req := s.seedRequest()
		_, err := s.engine.SyncOffer(ctx, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("agent failure leaves the record untouched", func() {
		req := s.seedRequest()
		s.seedOffer(req, "conn-sync-fail", "ex-sync-fail", false)
		s.agent.EXPECT().CredentialExchange(gomock.Any(), "ex-sync-fail").Return(nil, errors.New("dial tcp: refused"))

		_, err := s.engine.SyncOffer(ctx, req.ID)
		s.Error(err)
	})
}
