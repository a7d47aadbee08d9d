package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"idmanager/internal/issuance/models"
)

const uniqueViolation = "23505"

// PostgresStore persists the issuance records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds a store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issuance tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(NewPostgresTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit issuance tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveDefinition(ctx context.Context, def *models.CredentialDefinition) error {
	names, err := json.Marshal(def.AttributeNames)
	if err != nil {
		return fmt.Errorf("marshal attribute names: %w", err)
	}
	query := `
		INSERT INTO credential_definitions
			(id, name, credential_id, schema_id, attribute_names, support_revocation, revocation_registry_size, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	stamp(&def.CreatedAt)
	_, err = s.execer().ExecContext(ctx, query,
		def.ID, def.Name, def.CredentialID, def.SchemaID, names,
		def.SupportRevocation, def.RevocationRegistrySize, def.Enabled, def.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("save credential definition: %w", err)
	}
	return nil
}

const definitionColumns = `id, name, credential_id, schema_id, attribute_names, support_revocation, revocation_registry_size, enabled, created_at`

func (s *PostgresStore) FindDefinition(ctx context.Context, id uuid.UUID) (*models.CredentialDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM credential_definitions WHERE id = $1`
	return s.oneDefinition(ctx, "find credential definition", query, id)
}

func (s *PostgresStore) FindEnabledDefinition(ctx context.Context, credDefIDOrName string) (*models.CredentialDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM credential_definitions
		WHERE enabled AND (credential_id = $1 OR name = $1)
		ORDER BY (credential_id = $1) DESC, created_at DESC
		LIMIT 1
	`
	return s.oneDefinition(ctx, "find enabled credential definition", query, credDefIDOrName)
}

func (s *PostgresStore) oneDefinition(ctx context.Context, op, query string, args ...any) (*models.CredentialDefinition, error) {
	var def models.CredentialDefinition
	var names []byte
	err := s.execer().QueryRowContext(ctx, query, args...).Scan(
		&def.ID, &def.Name, &def.CredentialID, &def.SchemaID, &names,
		&def.SupportRevocation, &def.RevocationRegistrySize, &def.Enabled, &def.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(names, &def.AttributeNames); err != nil {
		return nil, fmt.Errorf("%s: unmarshal attribute names: %w", op, err)
	}
	return &def, nil
}

func (s *PostgresStore) SetDefinitionEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	res, err := s.execer().ExecContext(ctx, `UPDATE credential_definitions SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set credential definition enabled: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveRequest(ctx context.Context, req *models.CredentialRequest) error {
	data, err := json.Marshal(req.CredentialData)
	if err != nil {
		return fmt.Errorf("marshal credential data: %w", err)
	}
	query := `
		INSERT INTO credential_requests (id, code, credential_definition_id, credential_data, email, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	stamp(&req.CreatedAt)
	_, err = s.execer().ExecContext(ctx, query,
		req.ID, req.Code, req.CredentialDefinitionID, string(data), req.Email, req.Revoked, req.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("save credential request: %w", err)
	}
	return nil
}

const requestColumns = `id, code, credential_definition_id, credential_data, email, revoked, created_at`

func (s *PostgresStore) FindRequest(ctx context.Context, id uuid.UUID) (*models.CredentialRequest, error) {
	return s.oneRequest(ctx, "find credential request", `SELECT `+requestColumns+` FROM credential_requests WHERE id = $1`, id)
}

func (s *PostgresStore) FindRequestByCode(ctx context.Context, code string) (*models.CredentialRequest, error) {
	return s.oneRequest(ctx, "find credential request by code", `SELECT `+requestColumns+` FROM credential_requests WHERE code = $1`, code)
}

func (s *PostgresStore) oneRequest(ctx context.Context, op, query string, args ...any) (*models.CredentialRequest, error) {
	var req models.CredentialRequest
	var data string
	err := s.execer().QueryRowContext(ctx, query, args...).Scan(
		&req.ID, &req.Code, &req.CredentialDefinitionID, &data, &req.Email, &req.Revoked, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal([]byte(data), &req.CredentialData); err != nil {
		return nil, fmt.Errorf("%s: unmarshal credential data: %w", op, err)
	}
	return &req, nil
}

func (s *PostgresStore) MarkRequestRevoked(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.flip(ctx, "mark credential request revoked",
		`UPDATE credential_requests SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`,
		`SELECT 1 FROM credential_requests WHERE id = $1`, id)
}

func (s *PostgresStore) SaveInvitation(ctx context.Context, inv *models.ConnectionInvitation) error {
	query := `
		INSERT INTO connection_invitations (id, connection_id, invitation_json, accepted, credential_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`
	stamp(&inv.CreatedAt)
	err := s.execer().QueryRowContext(ctx, query,
		inv.ID, inv.ConnectionID, string(inv.InvitationJSON), inv.Accepted, inv.CredentialRequestID, inv.CreatedAt,
	).Scan(&inv.Seq)
	if err != nil {
		return fmt.Errorf("save connection invitation: %w", err)
	}
	return nil
}

const invitationColumns = `id, seq, connection_id, invitation_json, accepted, credential_request_id, created_at`

func (s *PostgresStore) LatestInvitationByConnection(ctx context.Context, connectionID string) (*models.ConnectionInvitation, error) {
	return s.oneInvitation(ctx, "latest invitation by connection", `
		SELECT `+invitationColumns+` FROM connection_invitations
		WHERE connection_id = $1
		ORDER BY created_at DESC, seq DESC LIMIT 1`, connectionID)
}

func (s *PostgresStore) LatestInvitationForRequest(ctx context.Context, requestID uuid.UUID) (*models.ConnectionInvitation, error) {
	return s.oneInvitation(ctx, "latest invitation for request", `
		SELECT `+invitationColumns+` FROM connection_invitations
		WHERE credential_request_id = $1
		ORDER BY created_at DESC, seq DESC LIMIT 1`, requestID)
}

func (s *PostgresStore) LatestPendingInvitationForRequest(ctx context.Context, requestID uuid.UUID) (*models.ConnectionInvitation, error) {
	return s.oneInvitation(ctx, "latest pending invitation for request", `
		SELECT `+invitationColumns+` FROM connection_invitations
		WHERE credential_request_id = $1 AND accepted = FALSE
		ORDER BY created_at DESC, seq DESC LIMIT 1`, requestID)
}

func (s *PostgresStore) oneInvitation(ctx context.Context, op, query string, args ...any) (*models.ConnectionInvitation, error) {
	var inv models.ConnectionInvitation
	var payload []byte
	var requestID uuid.NullUUID
	err := s.execer().QueryRowContext(ctx, query, args...).Scan(
		&inv.ID, &inv.Seq, &inv.ConnectionID, &payload, &inv.Accepted, &requestID, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	inv.InvitationJSON = json.RawMessage(payload)
	if requestID.Valid {
		inv.CredentialRequestID = &requestID.UUID
	}
	return &inv, nil
}

func (s *PostgresStore) LinkInvitation(ctx context.Context, invitationID, requestID uuid.UUID) (bool, error) {
	res, err := s.execer().ExecContext(ctx,
		`UPDATE connection_invitations SET credential_request_id = $2 WHERE id = $1 AND credential_request_id IS NULL`,
		invitationID, requestID)
	if err != nil {
		return false, fmt.Errorf("link connection invitation: %w", err)
	}
	return s.flipped(ctx, "link connection invitation", res, `SELECT 1 FROM connection_invitations WHERE id = $1`, invitationID)
}

func (s *PostgresStore) MarkInvitationAccepted(ctx context.Context, invitationID uuid.UUID) (bool, error) {
	return s.flip(ctx, "mark connection invitation accepted",
		`UPDATE connection_invitations SET accepted = TRUE WHERE id = $1 AND accepted = FALSE`,
		`SELECT 1 FROM connection_invitations WHERE id = $1`, invitationID)
}

func (s *PostgresStore) SaveOffer(ctx context.Context, offer *models.CredentialOffer) error {
	query := `
		INSERT INTO credential_offers
			(id, connection_id, offer_json, accepted, cred_ex_id, revocation_id, credential_id, credential_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`
	stamp(&offer.CreatedAt)
	err := s.execer().QueryRowContext(ctx, query,
		offer.ID, offer.ConnectionID, string(offer.OfferJSON), offer.Accepted, offer.CredExID,
		offer.RevocationID, offer.CredentialID, offer.CredentialRequestID, offer.CreatedAt,
	).Scan(&offer.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("save credential offer: %w", err)
	}
	return nil
}

const offerColumns = `id, seq, connection_id, offer_json, accepted, cred_ex_id, revocation_id, credential_id, credential_request_id, created_at`

func (s *PostgresStore) LatestOfferByConnection(ctx context.Context, connectionID string) (*models.CredentialOffer, error) {
	return s.oneOffer(ctx, "latest offer by connection", `
		SELECT `+offerColumns+` FROM credential_offers
		WHERE connection_id = $1
		ORDER BY created_at DESC, seq DESC LIMIT 1`, connectionID)
}

func (s *PostgresStore) LatestOfferForRequest(ctx context.Context, requestID uuid.UUID) (*models.CredentialOffer, error) {
	return s.oneOffer(ctx, "latest offer for request", `
		SELECT `+offerColumns+` FROM credential_offers
		WHERE credential_request_id = $1
		ORDER BY created_at DESC, seq DESC LIMIT 1`, requestID)
}

func (s *PostgresStore) oneOffer(ctx context.Context, op, query string, args ...any) (*models.CredentialOffer, error) {
	offer, err := scanOffer(s.execer().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return offer, nil
}

type offerRow interface {
	Scan(dest ...any) error
}

func scanOffer(row offerRow) (*models.CredentialOffer, error) {
	var offer models.CredentialOffer
	var payload []byte
	var revocationID, credentialID sql.NullString
	var requestID uuid.NullUUID
	if err := row.Scan(
		&offer.ID, &offer.Seq, &offer.ConnectionID, &payload, &offer.Accepted, &offer.CredExID,
		&revocationID, &credentialID, &requestID, &offer.CreatedAt,
	); err != nil {
		return nil, err
	}
	offer.OfferJSON = json.RawMessage(payload)
	if revocationID.Valid {
		offer.RevocationID = &revocationID.String
	}
	if credentialID.Valid {
		offer.CredentialID = &credentialID.String
	}
	if requestID.Valid {
		offer.CredentialRequestID = &requestID.UUID
	}
	return &offer, nil
}

func (s *PostgresStore) HasOfferForConnection(ctx context.Context, connectionID string) (bool, error) {
	var exists bool
	err := s.execer().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credential_offers WHERE connection_id = $1)`, connectionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check offer for connection: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) MarkOfferAccepted(ctx context.Context, offerID uuid.UUID) (bool, error) {
	return s.flip(ctx, "mark credential offer accepted",
		`UPDATE credential_offers SET accepted = TRUE WHERE id = $1 AND accepted = FALSE`,
		`SELECT 1 FROM credential_offers WHERE id = $1`, offerID)
}

func (s *PostgresStore) UpdateOfferRecord(ctx context.Context, offerID uuid.UUID, revocationID, credentialID *string) error {
	res, err := s.execer().ExecContext(ctx,
		`UPDATE credential_offers SET revocation_id = $2, credential_id = $3 WHERE id = $1`,
		offerID, revocationID, credentialID)
	if err != nil {
		return fmt.Errorf("update credential offer record: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListOffers(ctx context.Context, requestID *uuid.UUID) ([]*models.CredentialOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM credential_offers`
	var args []any
	if requestID != nil {
		query += ` WHERE credential_request_id = $1`
		args = append(args, *requestID)
	}
	query += ` ORDER BY created_at DESC, seq DESC`

	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credential offers: %w", err)
	}
	defer rows.Close()

	offers := []*models.CredentialOffer{}
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential offer: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential offers: %w", err)
	}
	return offers, nil
}

// flip runs a conditional update. When it touches no row, existsQuery tells
// "already flipped" (false, nil) apart from "missing" (ErrNotFound).
func (s *PostgresStore) flip(ctx context.Context, op, update, existsQuery string, id uuid.UUID) (bool, error) {
	res, err := s.execer().ExecContext(ctx, update, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return s.flipped(ctx, op, res, existsQuery, id)
}

func (s *PostgresStore) flipped(ctx context.Context, op string, res sql.Result, existsQuery string, id uuid.UUID) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n > 0 {
		return true, nil
	}
	var one int
	if err := s.execer().QueryRowContext(ctx, existsQuery, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return false, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// stamp fills a zero creation time. Postgres keeps microseconds, so the value
// is truncated to match what a later read returns.
func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
	*t = t.Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ Store = (*PostgresStore)(nil)
