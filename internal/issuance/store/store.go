// Package store persists credential definitions, requests, invitations and offers.
//
// Invitations and offers are append-only; "latest" lookups order by creation
// time then insertion sequence, newest first. Accept and revoke are
// conditional updates that report whether this call performed the flip.
package store

import (
	"context"

	"github.com/google/uuid"

	"idmanager/internal/issuance/models"
	pkgerrors "idmanager/pkg/domain-errors"
)

var (
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	// ErrDuplicate is returned when a unique key (request code, credential
	// definition id, exchange id) is already taken.
	ErrDuplicate = pkgerrors.New(pkgerrors.CodeConflict, "record already exists")
)

type DefinitionStore interface {
	SaveDefinition(ctx context.Context, def *models.CredentialDefinition) error
	FindDefinition(ctx context.Context, id uuid.UUID) (*models.CredentialDefinition, error)
	// FindEnabledDefinition matches the agent credential definition id first, then the name.
	FindEnabledDefinition(ctx context.Context, credDefIDOrName string) (*models.CredentialDefinition, error)
	SetDefinitionEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

type RequestStore interface {
	SaveRequest(ctx context.Context, req *models.CredentialRequest) error
	FindRequest(ctx context.Context, id uuid.UUID) (*models.CredentialRequest, error)
	FindRequestByCode(ctx context.Context, code string) (*models.CredentialRequest, error)
	// MarkRequestRevoked flips revoked from false to true. It returns false
	// when the request was already revoked.
	MarkRequestRevoked(ctx context.Context, id uuid.UUID) (bool, error)
}

type InvitationStore interface {
	SaveInvitation(ctx context.Context, inv *models.ConnectionInvitation) error
	LatestInvitationByConnection(ctx context.Context, connectionID string) (*models.ConnectionInvitation, error)
	LatestInvitationForRequest(ctx context.Context, requestID uuid.UUID) (*models.ConnectionInvitation, error)
	LatestPendingInvitationForRequest(ctx context.Context, requestID uuid.UUID) (*models.ConnectionInvitation, error)
	// LinkInvitation attaches an unlinked invitation to a request. It returns
	// false when the invitation already serves a request.
	LinkInvitation(ctx context.Context, invitationID, requestID uuid.UUID) (bool, error)
	MarkInvitationAccepted(ctx context.Context, invitationID uuid.UUID) (bool, error)
}

type OfferStore interface {
	SaveOffer(ctx context.Context, offer *models.CredentialOffer) error
	LatestOfferByConnection(ctx context.Context, connectionID string) (*models.CredentialOffer, error)
	LatestOfferForRequest(ctx context.Context, requestID uuid.UUID) (*models.CredentialOffer, error)
	HasOfferForConnection(ctx context.Context, connectionID string) (bool, error)
	MarkOfferAccepted(ctx context.Context, offerID uuid.UUID) (bool, error)
	UpdateOfferRecord(ctx context.Context, offerID uuid.UUID, revocationID, credentialID *string) error
	// ListOffers returns offers newest first, optionally restricted to one request.
	ListOffers(ctx context.Context, requestID *uuid.UUID) ([]*models.CredentialOffer, error)
}

// Store is the full persistence surface of the issuance workflow.
type Store interface {
	DefinitionStore
	RequestStore
	InvitationStore
	OfferStore

	// RunInTx runs fn against a store bound to one transaction. fn's error
	// rolls everything back.
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
