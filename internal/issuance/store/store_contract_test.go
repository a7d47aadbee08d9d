package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/store"
	pkgerrors "idmanager/pkg/domain-errors"
)

// contractSuite holds the behaviour every Store implementation must share.
// Concrete suites set st and reset.
type contractSuite struct {
	suite.Suite
	st    store.Store
	reset func()
}

func (s *contractSuite) SetupTest() {
	if s.reset != nil {
		s.reset()
	}
}

func (s *contractSuite) seedDefinition(ctx context.Context) *models.CredentialDefinition {
	def := &models.CredentialDefinition{
		ID:                     uuid.New(),
		Name:                   "Membership",
		CredentialID:           "def:" + uuid.NewString(),
		SchemaID:               "schema:1",
		AttributeNames:         []string{"name", "email"},
		RevocationRegistrySize: models.DefaultRevocationRegistrySize,
		Enabled:                true,
	}
	s.Require().NoError(s.st.SaveDefinition(ctx, def))
	return def
}

func (s *contractSuite) seedRequest(ctx context.Context, defID uuid.UUID) *models.CredentialRequest {
	req := &models.CredentialRequest{
		ID:                     uuid.New(),
		Code:                   models.NewCode(),
		CredentialDefinitionID: defID,
		CredentialData:         models.Attributes{{Name: "name", Value: "Jane"}, {Name: "email", Value: "jane@example.org"}},
		Email:                  "jane@example.org",
	}
	s.Require().NoError(s.st.SaveRequest(ctx, req))
	return req
}

func (s *contractSuite) saveInvitation(ctx context.Context, connID string, requestID *uuid.UUID, at time.Time) *models.ConnectionInvitation {
	inv := &models.ConnectionInvitation{
		ID:                  uuid.New(),
		ConnectionID:        connID,
		InvitationJSON:      json.RawMessage(`{"connection_id":"` + connID + `","invitation":{"label":"issuer"}}`),
		CredentialRequestID: requestID,
		CreatedAt:           at,
	}
	s.Require().NoError(s.st.SaveInvitation(ctx, inv))
	return inv
}

func (s *contractSuite) saveOffer(ctx context.Context, connID string, requestID *uuid.UUID, at time.Time) *models.CredentialOffer {
	offer := &models.CredentialOffer{
		ID:                  uuid.New(),
		ConnectionID:        connID,
		OfferJSON:           json.RawMessage(`{"auto_issue":true}`),
		CredExID:            "ex-" + uuid.NewString(),
		CredentialRequestID: requestID,
		CreatedAt:           at,
	}
	s.Require().NoError(s.st.SaveOffer(ctx, offer))
	return offer
}

func (s *contractSuite) TestDefinitions() {
	ctx := context.Background()
	def := s.seedDefinition(ctx)

	s.Run("find by id keeps attribute names", func() {
		found, err := s.st.FindDefinition(ctx, def.ID)
		s.Require().NoError(err)
		s.Equal([]string{"name", "email"}, found.AttributeNames)
		s.Equal(def.CredentialID, found.CredentialID)
	})

	s.Run("find enabled by agent id or name", func() {
		byID, err := s.st.FindEnabledDefinition(ctx, def.CredentialID)
		s.Require().NoError(err)
		s.Equal(def.ID, byID.ID)

		byName, err := s.st.FindEnabledDefinition(ctx, "Membership")
		s.Require().NoError(err)
		s.Equal(def.ID, byName.ID)
	})

	s.Run("duplicate agent id is rejected", func() {
		dup := *def
		dup.ID = uuid.New()
		s.ErrorIs(s.st.SaveDefinition(ctx, &dup), store.ErrDuplicate)
	})

	s.Run("disabled definitions are hidden", func() {
		s.Require().NoError(s.st.SetDefinitionEnabled(ctx, def.ID, false))
		_, err := s.st.FindEnabledDefinition(ctx, def.CredentialID)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

		found, err := s.st.FindDefinition(ctx, def.ID)
		s.Require().NoError(err)
		s.False(found.Enabled)
	})

	s.Run("unknown id", func() {
		s.ErrorIs(s.st.SetDefinitionEnabled(ctx, uuid.New(), false), store.ErrNotFound)
	})
}

func (s *contractSuite) TestRequests() {
	ctx := context.Background()
	def := s.seedDefinition(ctx)
	req := s.seedRequest(ctx, def.ID)

	s.Run("lookup by id and code keep attribute order", func() {
		byID, err := s.st.FindRequest(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal([]string{"name", "email"}, byID.CredentialData.Names())

		byCode, err := s.st.FindRequestByCode(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal(req.ID, byCode.ID)
	})

	s.Run("revoke flips once", func() {
		flipped, err := s.st.MarkRequestRevoked(ctx, req.ID)
		s.Require().NoError(err)
		s.True(flipped)

		flipped, err = s.st.MarkRequestRevoked(ctx, req.ID)
		s.Require().NoError(err)
		s.False(flipped)

		found, err := s.st.FindRequest(ctx, req.ID)
		s.Require().NoError(err)
		s.True(found.Revoked)
	})

	s.Run("revoke of unknown request", func() {
		_, err := s.st.MarkRequestRevoked(ctx, uuid.New())
		s.ErrorIs(err, store.ErrNotFound)
	})

	s.Run("unknown code", func() {
		_, err := s.st.FindRequestByCode(ctx, "nope")
		s.ErrorIs(err, store.ErrNotFound)
	})
}

func (s *contractSuite) TestInvitationsLatestWins() {
	ctx := context.Background()
	def := s.seedDefinition(ctx)
	req := s.seedRequest(ctx, def.ID)
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := s.saveInvitation(ctx, "conn-1", &req.ID, base)
	newer := s.saveInvitation(ctx, "conn-1", &req.ID, base.Add(time.Second))

	latest, err := s.st.LatestInvitationByConnection(ctx, "conn-1")
	s.Require().NoError(err)
	s.Equal(newer.ID, latest.ID)

	pending, err := s.st.LatestPendingInvitationForRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(newer.ID, pending.ID)

	flipped, err := s.st.MarkInvitationAccepted(ctx, newer.ID)
	s.Require().NoError(err)
	s.True(flipped)

	flipped, err = s.st.MarkInvitationAccepted(ctx, newer.ID)
	s.Require().NoError(err)
	s.False(flipped, "second accept must not mutate")

	pending, err = s.st.LatestPendingInvitationForRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(older.ID, pending.ID, "older pending rows are history, not deleted")

	latestForRequest, err := s.st.LatestInvitationForRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.True(latestForRequest.Accepted)

	s.JSONEq(`{"connection_id":"conn-1","invitation":{"label":"issuer"}}`, string(latestForRequest.InvitationJSON))
}

func (s *contractSuite) TestInvitationTieBrokenByInsertionOrder() {
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Millisecond)

	s.saveInvitation(ctx, "conn-tie", nil, at)
	second := s.saveInvitation(ctx, "conn-tie", nil, at)

	latest, err := s.st.LatestInvitationByConnection(ctx, "conn-tie")
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
}

func (s *contractSuite) TestLinkInvitation() {
	ctx := context.Background()
	def := s.seedDefinition(ctx)
	req := s.seedRequest(ctx, def.ID)
	other := s.seedRequest(ctx, def.ID)

	inv := s.saveInvitation(ctx, "conn-ext", nil, time.Time{})

	linked, err := s.st.LinkInvitation(ctx, inv.ID, req.ID)
	s.Require().NoError(err)
	s.True(linked)

	linked, err = s.st.LinkInvitation(ctx, inv.ID, other.ID)
	s.Require().NoError(err)
	s.False(linked, "an invitation serves one request")

	found, err := s.st.LatestInvitationByConnection(ctx, "conn-ext")
	s.Require().NoError(err)
	s.Equal(req.ID, *found.CredentialRequestID)
}

func (s *contractSuite) TestOffers() {
	ctx := context.Background()
	def := s.seedDefinition(ctx)
	req := s.seedRequest(ctx, def.ID)
	base := time.Now().UTC().Truncate(time.Millisecond)

	has, err := s.st.HasOfferForConnection(ctx, "conn-1")
	s.Require().NoError(err)
	s.False(has)

	first := s.saveOffer(ctx, "conn-1", &req.ID, base)
	second := s.saveOffer(ctx, "conn-1", &req.ID, base.Add(time.Second))

	has, err = s.st.HasOfferForConnection(ctx, "conn-1")
	s.Require().NoError(err)
	s.True(has)

	latest, err := s.st.LatestOfferByConnection(ctx, "conn-1")
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
	s.Nil(latest.RevocationID)

	latestForRequest, err := s.st.LatestOfferForRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, latestForRequest.ID)

	s.Run("accept flips once", func() {
		flipped, err := s.st.MarkOfferAccepted(ctx, second.ID)
		s.Require().NoError(err)
		s.True(flipped)
		flipped, err = s.st.MarkOfferAccepted(ctx, second.ID)
		s.Require().NoError(err)
		s.False(flipped)
	})

	s.Run("record ids update lazily", func() {
		s.Require().NoError(s.st.UpdateOfferRecord(ctx, second.ID, models.OptionalString("12"), models.OptionalString("cred-1")))
		found, err := s.st.LatestOfferByConnection(ctx, "conn-1")
		s.Require().NoError(err)
		s.Equal("12", *found.RevocationID)
		s.Equal("cred-1", *found.CredentialID)
		s.True(found.Accepted)
	})

	s.Run("list newest first", func() {
		offers, err := s.st.ListOffers(ctx, &req.ID)
		s.Require().NoError(err)
		s.Require().Len(offers, 2)
		s.Equal(second.ID, offers[0].ID)
		s.Equal(first.ID, offers[1].ID)

		unrelated := uuid.New()
		none, err := s.st.ListOffers(ctx, &unrelated)
		s.Require().NoError(err)
		s.Empty(none)
	})

	s.Run("exchange ids are unique", func() {
		dup := *first
		dup.ID = uuid.New()
		s.ErrorIs(s.st.SaveOffer(ctx, &dup), store.ErrDuplicate)
	})

	s.Run("missing connection", func() {
		_, err := s.st.LatestOfferByConnection(ctx, "conn-unknown")
		s.ErrorIs(err, store.ErrNotFound)
	})
}

func (s *contractSuite) TestConcurrentAcceptFlipsExactlyOnce() {
	ctx := context.Background()
	offer := s.saveOffer(ctx, "conn-race", nil, time.Time{})

	var flips atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			flipped, err := s.st.MarkOfferAccepted(ctx, offer.ID)
			s.NoError(err)
			if flipped {
				flips.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(1), flips.Load())
}

func (s *contractSuite) TestRunInTxRollsBack() {
	ctx := context.Background()
	def := s.seedDefinition(ctx)
	code := models.NewCode()

	err := s.st.RunInTx(ctx, func(tx store.Store) error {
		req := &models.CredentialRequest{
			ID:                     uuid.New(),
			Code:                   code,
			CredentialDefinitionID: def.ID,
			CredentialData:         models.Attributes{},
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeConnectionNotReady, "agent refused offer")
	})
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeConnectionNotReady))

	_, err = s.st.FindRequestByCode(ctx, code)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *contractSuite) TestRunInTxRollbackKeepsConcurrentWrites() {
	ctx := context.Background()
	def := s.seedDefinition(ctx)
	unrelated := s.saveOffer(ctx, "conn-outside", nil, time.Time{})
	code := models.NewCode()

	inTx := make(chan struct{})
	outsideDone := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- s.st.RunInTx(ctx, func(tx store.Store) error {
			req := &models.CredentialRequest{
				ID:                     uuid.New(),
				Code:                   code,
				CredentialDefinitionID: def.ID,
				CredentialData:         models.Attributes{},
			}
			if err := tx.SaveRequest(ctx, req); err != nil {
				return err
			}
			close(inTx)
			<-outsideDone
			return pkgerrors.New(pkgerrors.CodeConnectionNotReady, "agent refused offer")
		})
	}()

	<-inTx
	flipped, err := s.st.MarkOfferAccepted(ctx, unrelated.ID)
	s.Require().NoError(err)
	s.True(flipped)
	outside := s.saveOffer(ctx, "conn-outside-2", nil, time.Time{})
	close(outsideDone)

	s.True(pkgerrors.HasCode(<-errc, pkgerrors.CodeConnectionNotReady))

	_, err = s.st.FindRequestByCode(ctx, code)
	s.ErrorIs(err, store.ErrNotFound)

	latest, err := s.st.LatestOfferByConnection(ctx, "conn-outside")
	s.Require().NoError(err)
	s.True(latest.Accepted)

	kept, err := s.st.LatestOfferByConnection(ctx, "conn-outside-2")
	s.Require().NoError(err)
	s.Equal(outside.ID, kept.ID)
}
