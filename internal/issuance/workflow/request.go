package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/lock"
	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/store"
)

// CheckReady loads the request for code and refuses it when it is revoked
// or its latest offer was already accepted.
func (e *Engine) CheckReady(ctx context.Context, code string) (*models.CredentialRequest, error) {
	req, err := e.store.FindRequestByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("there is no credential request with code: %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("load credential request: %w", err)
	}
	if req.Revoked {
		return nil, AlreadyRevoked(code)
	}

	offer, err := e.store.LatestOfferForRequest(ctx, req.ID)
	switch {
	case err == nil && offer.Accepted:
		return nil, AlreadyAccepted(code)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load offer: %w", err)
	}
	return req, nil
}

// Revoke revokes the credential issued for a request. Nothing is persisted
// unless the agent confirms the revocation.
func (e *Engine) Revoke(ctx context.Context, requestID uuid.UUID) error {
	req, err := e.store.FindRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundf("credential request not found: %s", requestID)
	}
	if err != nil {
		return fmt.Errorf("load credential request: %w", err)
	}

	release, err := e.acquire(ctx, lock.RequestKey(req.Code))
	if err != nil {
		return err
	}
	defer release()

	if req, err = e.store.FindRequest(ctx, requestID); err != nil {
		return fmt.Errorf("reload credential request: %w", err)
	}
	if req.Revoked {
		return AlreadyRevoked(req.Code)
	}

	offer, err := e.store.LatestOfferForRequest(ctx, requestID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load offer: %w", err)
	}
	if offer == nil || offer.CredExID == "" {
		return notFoundf("no credential offer to revoke for request: %s", requestID)
	}

	if _, err := e.agent.Revoke(ctx, agent.RevokeRequest{CredExID: offer.CredExID, Publish: true}); err != nil {
		e.logger.ErrorContext(ctx, "error sending revocation",
			"request_id", requestID,
			"cred_ex_id", offer.CredExID,
			"error", err,
		)
		return err
	}

	flipped, err := e.store.MarkRequestRevoked(ctx, requestID)
	if err != nil {
		return fmt.Errorf("mark revoked: %w", err)
	}
	if !flipped {
		return AlreadyRevoked(req.Code)
	}
	e.logger.InfoContext(ctx, "credential revoked",
		"request_id", requestID,
		"cred_ex_id", offer.CredExID,
	)
	e.transition(ctx, models.StateRevoked,
		events.New(events.CredentialRevoked, &req.ID, offer.ConnectionID, offer.CredExID))
	return nil
}

// State derives the progress of the request for code from its latest records.
func (e *Engine) State(ctx context.Context, code string) (models.State, error) {
	req, err := e.store.FindRequestByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFoundf("there is no credential request with code: %s", code)
	}
	if err != nil {
		return "", fmt.Errorf("load credential request: %w", err)
	}
	if req.Revoked {
		return models.StateRevoked, nil
	}

	offer, err := e.store.LatestOfferForRequest(ctx, req.ID)
	switch {
	case err == nil && offer.Accepted:
		return models.StateCredentialAccepted, nil
	case err == nil:
		return models.StateOfferSent, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("load offer: %w", err)
	}

	inv, err := e.store.LatestInvitationForRequest(ctx, req.ID)
	switch {
	case err == nil && inv.Accepted:
		return models.StateConnectionAccepted, nil
	case err == nil:
		return models.StateConnectionPending, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("load invitation: %w", err)
	}
	return models.StateRequested, nil
}
