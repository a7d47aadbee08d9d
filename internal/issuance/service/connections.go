package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/store"
	dErrors "idmanager/pkg/domain-errors"
)

// ReceiveInvitation hands an invitation from another agent to ours and
// records the resulting connection as accepted, serving no request yet.
func (s *Service) ReceiveInvitation(ctx context.Context, cmd ReceiveInvitationCommand) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}

	receive := s.agent.ReceiveConnectionInvitation
	if cmd.OutOfBand {
		receive = s.agent.ReceiveOutOfBandInvitation
	}
	conn, err := receive(ctx, cmd.Invitation)
	if err != nil {
		s.logger.ErrorContext(ctx, "error establishing connection", "error", err)
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "error establishing connection")
	}
	if conn.ConnectionID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "error establishing connection: agent returned no connection id")
	}

	inv := &models.ConnectionInvitation{
		ID:             uuid.New(),
		ConnectionID:   conn.ConnectionID,
		InvitationJSON: cmd.Invitation,
		Accepted:       true,
	}
	if err := s.store.SaveInvitation(ctx, inv); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save connection invitation")
	}
	s.logger.InfoContext(ctx, "connection established", "connection_id", conn.ConnectionID)
	return conn.ConnectionID, nil
}

// IssueOnConnection creates a request and sends its offer over an existing
// connection in one transaction. The connection's latest invitation is
// claimed for the request when it serves none, otherwise an accepted copy is
// recorded for the new request.
func (s *Service) IssueOnConnection(ctx context.Context, cmd IssueOnConnectionCommand) (*IssueResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	def, err := s.store.FindEnabledDefinition(ctx, cmd.CredDefID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential definition not found: "+cmd.CredDefID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential definition")
	}
	if missing := cmd.CredentialData.Missing(def.AttributeNames); len(missing) > 0 {
		return nil, dErrors.New(dErrors.CodeValidation,
			"credential_data is missing attributes: "+strings.Join(missing, ", "))
	}

	req := &models.CredentialRequest{
		ID:                     uuid.New(),
		Code:                   models.NewCode(),
		CredentialDefinitionID: def.ID,
		CredentialData:         cmd.CredentialData,
	}
	var offer *models.CredentialOffer
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		if err := tx.SaveRequest(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential request")
		}
		inv, err := s.claimInvitation(ctx, tx, cmd.ConnectionID, req.ID)
		if err != nil {
			return err
		}
		offer, err = s.engine.WithStore(tx).CreateOffer(ctx, cmd.ConnectionID, inv)
		if err != nil {
			if agentErr, ok := agent.AsError(err); ok {
				return dErrors.Wrap(err, dErrors.CodeConnectionNotReady, "connection not ready: "+agentErr.Body)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if offer != nil {
			// the agent holds an exchange this service has no row for
			s.logger.ErrorContext(ctx, "credential offer sent but not recorded",
				"error", err,
				"connection_id", cmd.ConnectionID,
				"cred_ex_id", offer.CredExID,
			)
		}
		return nil, err
	}

	return &IssueResult{
		ConnectionID:        offer.ConnectionID,
		CredDefID:           def.CredentialID,
		CredentialRequestID: req.ID,
	}, nil
}

func (s *Service) claimInvitation(ctx context.Context, tx store.Store, connectionID string, requestID uuid.UUID) (*models.ConnectionInvitation, error) {
	latest, err := tx.LatestInvitationByConnection(ctx, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no connection invitation for connection: "+connectionID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection invitation")
	}

	if latest.CredentialRequestID == nil {
		linked, err := tx.LinkInvitation(ctx, latest.ID, requestID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link connection invitation")
		}
		if linked {
			latest.CredentialRequestID = &requestID
			return latest, nil
		}
	}

	clone := &models.ConnectionInvitation{
		ID:                  uuid.New(),
		ConnectionID:        latest.ConnectionID,
		InvitationJSON:      latest.InvitationJSON,
		Accepted:            true,
		CredentialRequestID: &requestID,
	}
	if err := tx.SaveInvitation(ctx, clone); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save connection invitation")
	}
	return clone, nil
}
