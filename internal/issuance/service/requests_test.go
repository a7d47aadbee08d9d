package service

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/models"
	dErrors "idmanager/pkg/domain-errors"
)

func (s *ServiceSuite) TestCreateRequests() {
	ctx := context.Background()

	s.Run("stores the request, creates an invitation and notifies the holder", func() {
		s.workflowAgent.EXPECT().CreateConnectionInvitation(gomock.Any()).Return(invitationFromAgent("conn-1"), nil)

		issued, err := s.service.CreateRequests(ctx, []CreateRequestCommand{{
			CredentialDefinition: "Employee Badge",
			CredentialData:       janeDoe(),
			Email:                "jane@example.org",
		}})
		s.Require().NoError(err)
		s.Require().Len(issued, 1)

		req := issued[0].Request
		s.Equal(siteURL+"/deep-link-redirect/"+req.Code, issued[0].InvitationURL)
		s.Equal(siteURL+"/connection-check?code="+req.Code, issued[0].ConnectionPollingURL)
		s.Equal(siteURL+"/credential-check?code="+req.Code, issued[0].OfferPollingURL)

		inv, err := s.store.LatestPendingInvitationForRequest(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal("conn-1", inv.ConnectionID)

		s.Require().Len(s.notifier.sent, 1)
		s.Equal("jane@example.org", s.notifier.sent[0].Email)
		s.Equal("Employee Badge", s.notifier.sent[0].CredentialName)
	})

	s.Run("one invalid command rejects the whole batch", func() {
		_, err := s.service.CreateRequests(ctx, []CreateRequestCommand{
			{CredentialDefinition: s.definition.CredentialID, CredentialData: janeDoe(), Email: "a@example.org"},
			{CredentialDefinition: s.definition.CredentialID, CredentialData: models.Attributes{{Name: "name", Value: "Joe"}}, Email: "b@example.org"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "surname")
	})

	s.Run("validation", func() {
		cases := map[string]CreateRequestCommand{
			"missing email":      {CredentialDefinition: s.definition.CredentialID, CredentialData: janeDoe()},
			"bad email":          {CredentialDefinition: s.definition.CredentialID, CredentialData: janeDoe(), Email: "nope"},
			"no data":            {CredentialDefinition: s.definition.CredentialID, Email: "a@example.org"},
			"unknown definition": {CredentialDefinition: "other", CredentialData: janeDoe(), Email: "a@example.org"},
		}
		for name, cmd := range cases {
			_, err := s.service.CreateRequests(ctx, []CreateRequestCommand{cmd})
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
		_, err := s.service.CreateRequests(ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("disabled definitions are rejected", func() {
		s.Require().NoError(s.service.DisableDefinition(ctx, s.definition.ID))
		_, err := s.service.CreateRequests(ctx, []CreateRequestCommand{{
			CredentialDefinition: s.definition.CredentialID, CredentialData: janeDoe(), Email: "a@example.org",
		}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestCreateRequestsAgentFailure() {
	s.workflowAgent.EXPECT().CreateConnectionInvitation(gomock.Any()).
		Return(nil, &agent.Error{Op: "create_connection_invitation", StatusCode: 502})

	_, err := s.service.CreateRequests(context.Background(), []CreateRequestCommand{{
		CredentialDefinition: s.definition.CredentialID, CredentialData: janeDoe(), Email: "a@example.org",
	}})
	s.True(dErrors.HasCode(err, dErrors.CodeAgent))
	s.Empty(s.notifier.sent)
}

func (s *ServiceSuite) TestResolveDeepLink() {
	ctx := context.Background()

	s.Run("reuses the pending invitation", func() {
		req := s.createRequest()

		link, err := s.service.ResolveDeepLink(ctx, req.Code)
		s.Require().NoError(err)
		s.True(strings.HasPrefix(link, "didcomm://launch?c_i="))

		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(link, "didcomm://launch?c_i="))
		s.Require().NoError(err)
		s.JSONEq(`{"label":"idmanager"}`, string(decoded))
	})

	s.Run("connected holder gets an empty invitation", func() {
		req := s.createRequest()
		inv, err := s.store.LatestPendingInvitationForRequest(ctx, req.ID)
		s.Require().NoError(err)
		_, err = s.store.MarkInvitationAccepted(ctx, inv.ID)
		s.Require().NoError(err)

		link, err := s.service.ResolveDeepLink(ctx, req.Code)
		s.Require().NoError(err)
		s.Equal("didcomm://launch?c_i=", link)
	})

	s.Run("accepted credential", func() {
		req := s.createRequest()
		s.Require().NoError(s.store.SaveOffer(ctx, &models.CredentialOffer{
			ID: uuid.New(), ConnectionID: "c", OfferJSON: []byte(`{}`), CredExID: "ex-" + req.Code, Accepted: true, CredentialRequestID: &req.ID,
		}))

		_, err := s.service.ResolveDeepLink(ctx, req.Code)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyAccepted))
	})

	s.Run("unknown code", func() {
		_, err := s.service.ResolveDeepLink(ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestRequestAndRevoke() {
	ctx := context.Background()
	req := s.createRequest()

	got, state, err := s.service.Request(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.Code, got.Code)
	s.Equal(models.StateConnectionPending, state)

	s.Run("revoke without an offer", func() {
		err := s.service.Revoke(ctx, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("revoke failure from the agent", func() {
		s.Require().NoError(s.store.SaveOffer(ctx, &models.CredentialOffer{
			ID: uuid.New(), ConnectionID: "c", OfferJSON: []byte(`{}`), CredExID: "ex-revoke", CredentialRequestID: &req.ID,
		}))
		s.workflowAgent.EXPECT().Revoke(gomock.Any(), agent.RevokeRequest{CredExID: "ex-revoke", Publish: true}).
			Return(nil, &agent.Error{Op: "revoke", StatusCode: 500})

		err := s.service.Revoke(ctx, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAgent))
	})

	s.Run("agent timeout", func() {
		s.workflowAgent.EXPECT().Revoke(gomock.Any(), agent.RevokeRequest{CredExID: "ex-revoke", Publish: true}).
			Return(nil, &agent.Error{Op: "revoke", Err: context.DeadlineExceeded})

		err := s.service.Revoke(ctx, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("unknown request", func() {
		_, _, err := s.service.Request(ctx, uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCredentialOffers() {
	ctx := context.Background()
	req := s.createRequest()
	s.Require().NoError(s.store.SaveOffer(ctx, &models.CredentialOffer{
		ID: uuid.New(), ConnectionID: "c", OfferJSON: []byte(`{}`), CredExID: "ex-list", CredentialRequestID: &req.ID,
	}))

	s.Run("syncs the request's latest offer first", func() {
		s.workflowAgent.EXPECT().CredentialExchange(gomock.Any(), "ex-list").
			Return(&agent.CredentialExchange{CredentialExchangeID: "ex-list", RevocationID: "3", CredentialID: "cred-1"}, nil)

		offers, err := s.service.CredentialOffers(ctx, &req.ID)
		s.Require().NoError(err)
		s.Require().Len(offers, 1)
		s.Equal("3", *offers[0].RevocationID)
	})

	s.Run("lists everything without a filter", func() {
		offers, err := s.service.CredentialOffers(ctx, nil)
		s.Require().NoError(err)
		s.Len(offers, 1)
	})

	s.Run("request without offers", func() {
		other := uuid.New()
		offers, err := s.service.CredentialOffers(ctx, &other)
		s.Require().NoError(err)
		s.Empty(offers)
	})
}
