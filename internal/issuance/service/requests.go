package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/notify"
	"idmanager/internal/issuance/store"
	"idmanager/internal/issuance/workflow"
	dErrors "idmanager/pkg/domain-errors"
)

// CreateRequests validates and stores every command, then prepares an
// invitation for each request and notifies its holder. Nothing is stored
// when any command is invalid.
func (s *Service) CreateRequests(ctx context.Context, cmds []CreateRequestCommand) ([]IssuedRequest, error) {
	if len(cmds) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one credential request is required")
	}

	type pending struct {
		req *models.CredentialRequest
		def *models.CredentialDefinition
	}
	batch := make([]pending, 0, len(cmds))
	for i := range cmds {
		req, def, err := s.newRequest(ctx, &cmds[i])
		if err != nil {
			if len(cmds) > 1 {
				return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("request %d: %s", i, err.Error()))
			}
			return nil, err
		}
		batch = append(batch, pending{req: req, def: def})
	}

	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		for _, p := range batch {
			if err := tx.SaveRequest(ctx, p.req); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential request")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	issued := make([]IssuedRequest, 0, len(batch))
	for _, p := range batch {
		if _, _, err := s.prepareInvitation(ctx, p.req.Code); err != nil {
			return nil, err
		}
		out := IssuedRequest{
			Request:              p.req,
			InvitationURL:        p.req.InvitationURL(s.siteURL),
			ConnectionPollingURL: p.req.ConnectionPollingURL(s.siteURL),
			OfferPollingURL:      p.req.OfferPollingURL(s.siteURL),
		}
		if err := s.notifier.NotifyInvitation(ctx, notify.Invitation{
			Email:          p.req.Email,
			CredentialName: p.def.Name,
			DeepLinkURL:    out.InvitationURL,
			PollingURL:     out.ConnectionPollingURL,
			SiteURL:        s.siteURL,
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to notify holder", "code", p.req.Code, "error", err)
		}
		issued = append(issued, out)
	}
	return issued, nil
}

func (s *Service) newRequest(ctx context.Context, cmd *CreateRequestCommand) (*models.CredentialRequest, *models.CredentialDefinition, error) {
	if err := cmd.Validate(); err != nil {
		return nil, nil, err
	}
	def, err := s.enabledDefinition(ctx, cmd.CredentialDefinition)
	if err != nil {
		return nil, nil, err
	}
	if missing := cmd.CredentialData.Missing(def.AttributeNames); len(missing) > 0 {
		return nil, nil, dErrors.New(dErrors.CodeValidation,
			"credential_data is missing attributes: "+strings.Join(missing, ", "))
	}
	return &models.CredentialRequest{
		ID:                     uuid.New(),
		Code:                   models.NewCode(),
		CredentialDefinitionID: def.ID,
		CredentialData:         cmd.CredentialData,
		Email:                  cmd.Email,
	}, def, nil
}

func (s *Service) enabledDefinition(ctx context.Context, idOrName string) (*models.CredentialDefinition, error) {
	def, err := s.store.FindEnabledDefinition(ctx, idOrName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeValidation, "credential definition not found or disabled: "+idOrName)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential definition")
	}
	return def, nil
}

// prepareInvitation checks the request can still be issued and, unless its
// latest invitation was accepted, ensures a pending invitation. The base64
// invitation is empty when the holder is already connected.
func (s *Service) prepareInvitation(ctx context.Context, code string) (*models.CredentialRequest, string, error) {
	req, err := s.engine.CheckReady(ctx, code)
	if err != nil {
		return nil, "", err
	}

	latest, err := s.store.LatestInvitationForRequest(ctx, req.ID)
	switch {
	case err == nil && latest.Accepted:
		return req, "", nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invitation")
	}

	inv, err := s.engine.EnsureInvitation(ctx, req)
	if err != nil {
		return nil, "", agentFailure(err, "failed to create connection invitation")
	}
	_, b64, err := workflow.InvitationLink(inv)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode invitation")
	}
	return req, b64, nil
}

func (s *Service) Request(ctx context.Context, id uuid.UUID) (*models.CredentialRequest, models.State, error) {
	req, err := s.store.FindRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", dErrors.New(dErrors.CodeNotFound, "credential request not found")
	}
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential request")
	}
	state, err := s.engine.State(ctx, req.Code)
	if err != nil {
		return nil, "", err
	}
	return req, state, nil
}

// Revoke revokes the credential issued for a request.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.engine.Revoke(ctx, id); err != nil {
		return agentFailure(err, "error sending revocation for credential request "+id.String())
	}
	return nil
}

// ResolveDeepLink returns the didcomm URI the holder's wallet opens for code.
func (s *Service) ResolveDeepLink(ctx context.Context, code string) (string, error) {
	_, b64, err := s.prepareInvitation(ctx, code)
	if err != nil {
		return "", err
	}
	return "didcomm://launch?c_i=" + b64, nil
}

// CredentialOffers lists offers newest first. With a request id, the latest
// offer of that request is refreshed from the agent before listing.
func (s *Service) CredentialOffers(ctx context.Context, requestID *uuid.UUID) ([]*models.CredentialOffer, error) {
	if requestID != nil {
		if _, err := s.engine.SyncOffer(ctx, *requestID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, agentFailure(err, "failed to refresh credential offer")
		}
	}
	offers, err := s.store.ListOffers(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credential offers")
	}
	return offers, nil
}
