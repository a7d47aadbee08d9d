package workflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/lock"
	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/store"
)

// EnsureInvitation returns the pending invitation of req, creating one with
// the agent only when none is pending. Concurrent calls for the same request
// share a single agent call.
func (e *Engine) EnsureInvitation(ctx context.Context, req *models.CredentialRequest) (*models.ConnectionInvitation, error) {
	v, err, _ := e.inflight.Do("invitation:"+req.Code, func() (any, error) {
		release, err := e.acquire(ctx, lock.RequestKey(req.Code))
		if err != nil {
			return nil, err
		}
		defer release()
		return e.ensureInvitation(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	inv := *v.(*models.ConnectionInvitation)
	return &inv, nil
}

func (e *Engine) ensureInvitation(ctx context.Context, req *models.CredentialRequest) (*models.ConnectionInvitation, error) {
	pending, err := e.store.LatestPendingInvitationForRequest(ctx, req.ID)
	if err == nil {
		return pending, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load pending invitation: %w", err)
	}

	created, err := e.agent.CreateConnectionInvitation(ctx)
	if err != nil {
		return nil, err
	}
	payload := created.Raw
	if len(payload) == 0 {
		if payload, err = json.Marshal(created); err != nil {
			return nil, fmt.Errorf("encode invitation: %w", err)
		}
	}

	requestID := req.ID
	inv := &models.ConnectionInvitation{
		ID:                  uuid.New(),
		ConnectionID:        created.ConnectionID,
		InvitationJSON:      payload,
		CredentialRequestID: &requestID,
		CreatedAt:           e.now(),
	}
	if err := e.store.SaveInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("save invitation: %w", err)
	}

	e.logger.InfoContext(ctx, "connection invitation created",
		"code", req.Code,
		"connection_id", inv.ConnectionID,
	)
	e.transition(ctx, models.StateConnectionPending,
		events.New(events.ConnectionInvitationCreated, &requestID, inv.ConnectionID, ""))
	return inv, nil
}

// InvitationLink extracts the agent invitation URL and the base64 form of the
// invitation message stored with inv.
func InvitationLink(inv *models.ConnectionInvitation) (invitationURL, invitationB64 string, err error) {
	var envelope struct {
		Invitation    json.RawMessage `json:"invitation"`
		InvitationURL string          `json:"invitation_url"`
	}
	if err := json.Unmarshal(inv.InvitationJSON, &envelope); err != nil {
		return "", "", fmt.Errorf("decode invitation %s: %w", inv.ID, err)
	}
	message := envelope.Invitation
	if len(message) == 0 {
		message = inv.InvitationJSON
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, message); err != nil {
		return "", "", fmt.Errorf("compact invitation %s: %w", inv.ID, err)
	}
	return envelope.InvitationURL, base64.StdEncoding.EncodeToString(compact.Bytes()), nil
}

// AcceptConnection marks the latest invitation for connectionID accepted.
// An unknown connection is logged and yields a nil invitation.
func (e *Engine) AcceptConnection(ctx context.Context, connectionID string) (*models.ConnectionInvitation, error) {
	release, err := e.acquire(ctx, lock.ConnectionKey(connectionID))
	if err != nil {
		return nil, err
	}
	defer release()

	inv, err := e.store.LatestInvitationByConnection(ctx, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.ErrorContext(ctx, "connection invitation not found", "connection_id", connectionID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load invitation: %w", err)
	}
	if inv.Accepted {
		return inv, nil
	}

	flipped, err := e.store.MarkInvitationAccepted(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	inv.Accepted = true
	if flipped {
		e.logger.InfoContext(ctx, "connection accepted", "connection_id", connectionID)
		e.transition(ctx, models.StateConnectionAccepted,
			events.New(events.ConnectionAccepted, inv.CredentialRequestID, connectionID, ""))
	}
	return inv, nil
}
