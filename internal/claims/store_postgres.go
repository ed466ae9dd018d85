package claims

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// PostgresStore persists claims in the claims table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const claimColumns = `id, address, topic, issuer, data, issued_at, expires_at,
	status, verification_hash, revocation_reason, updated_at`

func (s *PostgresStore) Create(ctx context.Context, claim *Claim) error {
	data := claim.Data
	if data == nil {
		data = map[string]any{}
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal claim data: %w", err)
	}
	const query = `
		INSERT INTO claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		claim.ID.String(), claim.Address.String(), claim.Topic.String(), claim.Issuer.String(),
		dataBytes, claim.IssuedAt, claim.ExpiresAt, string(claim.Status),
		claim.VerificationHash, claim.RevocationReason, claim.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, claimID id.ClaimID) (*Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`, claimID.String())
	return scanClaim(row)
}

func (s *PostgresStore) ListByAddress(ctx context.Context, address id.Address) ([]*Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE address = $1 ORDER BY issued_at`, address.String())
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []*Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, claimID id.ClaimID, validate func(*Claim) error, mutate func(*Claim)) (*Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, claimID.String())
	claim, err := scanClaim(row)
	if err != nil {
		return nil, err
	}
	if err := validate(claim); err != nil {
		return nil, err
	}
	mutate(claim)

	data := claim.Data
	if data == nil {
		data = map[string]any{}
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal claim data: %w", err)
	}
	const update = `
		UPDATE claims
		SET data = $2, expires_at = $3, status = $4, revocation_reason = $5, updated_at = $6
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		claim.ID.String(), dataBytes, claim.ExpiresAt, string(claim.Status),
		claim.RevocationReason, claim.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update claim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim update: %w", err)
	}
	return claim, nil
}

func (s *PostgresStore) Delete(ctx context.Context, claimID id.ClaimID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, claimID.String())
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[id.ClaimStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM claims GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count claims: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.ClaimStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan claim count: %w", err)
		}
		counts[id.ClaimStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanClaim(row interface{ Scan(dest ...any) error }) (*Claim, error) {
	var (
		claim   Claim
		claimID string
		address string
		topic   string
		issuer  string
		status  string
		data    []byte
	)
	err := row.Scan(&claimID, &address, &topic, &issuer, &data,
		&claim.IssuedAt, &claim.ExpiresAt, &status,
		&claim.VerificationHash, &claim.RevocationReason, &claim.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	parsed, err := id.ParseClaimID(claimID)
	if err != nil {
		return nil, fmt.Errorf("corrupt claim id in row: %w", err)
	}
	claim.ID = parsed
	claim.Address = id.Address(address)
	claim.Topic = id.TopicID(topic)
	claim.Issuer = id.IssuerID(issuer)
	claim.Status = id.ClaimStatus(status)
	if err := json.Unmarshal(data, &claim.Data); err != nil {
		return nil, fmt.Errorf("unmarshal claim data: %w", err)
	}
	return &claim, nil
}
