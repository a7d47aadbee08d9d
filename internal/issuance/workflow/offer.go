package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"idmanager/internal/issuance/crafter"
	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/lock"
	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/store"
	dErrors "idmanager/pkg/domain-errors"
)

// CreateOffer crafts and sends a credential offer on connectionID for the
// request inv serves, then records it. Agent failures are returned as is so
// callers can tell a connection that is not ready yet.
func (e *Engine) CreateOffer(ctx context.Context, connectionID string, inv *models.ConnectionInvitation) (*models.CredentialOffer, error) {
	if inv == nil || inv.CredentialRequestID == nil {
		return nil, notFoundf("no credential request linked to connection: %s", connectionID)
	}
	req, err := e.store.FindRequest(ctx, *inv.CredentialRequestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load credential request")
	}
	def, err := e.store.FindDefinition(ctx, req.CredentialDefinitionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load credential definition")
	}

	offer := e.crafters.For(crafter.Params{
		ConnectionID:           connectionID,
		CredentialDefinitionID: def.CredentialID,
		Data:                   req.CredentialData,
	}).Craft()

	exchange, err := e.agent.SendCredentialOffer(ctx, offer, connectionID)
	if err != nil {
		return nil, err
	}
	if exchange.CredentialExchangeID == "" {
		return nil, dErrors.New(dErrors.CodeAgent, "agent returned no credential exchange id")
	}

	offer.ConnectionID = connectionID
	payload, err := json.Marshal(offer)
	if err != nil {
		return nil, fmt.Errorf("encode offer: %w", err)
	}
	record := &models.CredentialOffer{
		ID:                  uuid.New(),
		ConnectionID:        connectionID,
		OfferJSON:           payload,
		CredExID:            exchange.CredentialExchangeID,
		RevocationID:        models.OptionalString(exchange.RevocationID),
		CredentialID:        models.OptionalString(exchange.CredentialID),
		CredentialRequestID: &req.ID,
		CreatedAt:           e.now(),
	}
	if err := e.store.SaveOffer(ctx, record); err != nil {
		return nil, fmt.Errorf("save offer: %w", err)
	}

	e.logger.InfoContext(ctx, "credential offer sent",
		"connection_id", connectionID,
		"cred_ex_id", record.CredExID,
		"request_id", req.ID,
	)
	e.transition(ctx, models.StateOfferSent,
		events.New(events.CredentialOfferSent, &req.ID, connectionID, record.CredExID))
	return record, nil
}

// EnsureOffer creates an offer for connectionID unless one already exists.
// created is false when an earlier offer was found.
func (e *Engine) EnsureOffer(ctx context.Context, connectionID string, inv *models.ConnectionInvitation) (offer *models.CredentialOffer, created bool, err error) {
	release, err := e.acquire(ctx, lock.ConnectionKey(connectionID))
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := e.store.LatestOfferByConnection(ctx, connectionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("load offer: %w", err)
	}

	offer, err = e.CreateOffer(ctx, connectionID, inv)
	if err != nil {
		return nil, false, err
	}
	return offer, true, nil
}

func (e *Engine) HasOffer(ctx context.Context, connectionID string) (bool, error) {
	return e.store.HasOfferForConnection(ctx, connectionID)
}

// AcceptOffer marks the latest offer on connectionID accepted. An unknown
// connection is logged and yields a nil offer.
func (e *Engine) AcceptOffer(ctx context.Context, connectionID string) (*models.CredentialOffer, error) {
	release, err := e.acquire(ctx, lock.ConnectionKey(connectionID))
	if err != nil {
		return nil, err
	}
	defer release()

	offer, err := e.store.LatestOfferByConnection(ctx, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.ErrorContext(ctx, "credential offer not found", "connection_id", connectionID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}
	if offer.Accepted {
		return offer, nil
	}

	flipped, err := e.store.MarkOfferAccepted(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("accept offer: %w", err)
	}
	offer.Accepted = true
	if flipped {
		e.logger.InfoContext(ctx, "credential accepted",
			"connection_id", connectionID,
			"cred_ex_id", offer.CredExID,
		)
		e.transition(ctx, models.StateCredentialAccepted,
			events.New(events.CredentialAccepted, offer.CredentialRequestID, connectionID, offer.CredExID))
	}
	return offer, nil
}

// SyncOffer copies the revocation and credential ids of the latest offer of
// a request from the agent exchange record.
func (e *Engine) SyncOffer(ctx context.Context, requestID uuid.UUID) (*models.CredentialOffer, error) {
	offer, err := e.store.LatestOfferForRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("no credential offer for request: %s", requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}

	exchange, err := e.agent.CredentialExchange(ctx, offer.CredExID)
	if err != nil {
		return nil, err
	}
	revocationID := models.OptionalString(exchange.RevocationID)
	credentialID := models.OptionalString(exchange.CredentialID)
	if err := e.store.UpdateOfferRecord(ctx, offer.ID, revocationID, credentialID); err != nil {
		return nil, fmt.Errorf("update offer record: %w", err)
	}
	offer.RevocationID = revocationID
	offer.CredentialID = credentialID
	return offer, nil
}
