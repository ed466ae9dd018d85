package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// PostgresStore persists identity records. The claim reference projection
// is a JSONB column: it is always read and written whole under the row
// lock, which is exactly the serialization Execute promises.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const identityColumns = `address, user_id, identity_key, status, claims,
	trusted_issuers, created_at, verified_at, last_updated`

func (s *PostgresStore) Create(ctx context.Context, record *Record) error {
	claims, issuers, err := marshalIdentityJSON(record)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		record.Address.String(), record.UserID.String(), record.IdentityKey,
		string(record.Status), claims, issuers,
		record.CreatedAt, record.VerifiedAt, record.LastUpdated)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, address id.Address) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE address = $1`, address.String())
	return scanIdentity(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Execute holds the row lock across validate and mutate, which serializes
// concurrent claim mutations against the same identity.
func (s *PostgresStore) Execute(ctx context.Context, address id.Address, validate func(*Record) error, mutate func(*Record)) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin identity update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE address = $1 FOR UPDATE`, address.String())
	rec, err := scanIdentity(row)
	if err != nil {
		return nil, err
	}
	if err := validate(rec); err != nil {
		return nil, err
	}
	mutate(rec)

	claims, issuers, err := marshalIdentityJSON(rec)
	if err != nil {
		return nil, err
	}
	const update = `
		UPDATE identities
		SET status = $2, claims = $3, trusted_issuers = $4, verified_at = $5, last_updated = $6
		WHERE address = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		rec.Address.String(), string(rec.Status), claims, issuers,
		rec.VerifiedAt, rec.LastUpdated); err != nil {
		return nil, fmt.Errorf("update identity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit identity update: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM identities GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan identity count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func marshalIdentityJSON(record *Record) (claims, issuers []byte, err error) {
	refs := record.Claims
	if refs == nil {
		refs = []ClaimReference{}
	}
	claims, err = json.Marshal(refs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal claim references: %w", err)
	}
	allowed := record.TrustedIssuers
	if allowed == nil {
		allowed = []id.IssuerID{}
	}
	issuers, err = json.Marshal(allowed)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal trusted issuers: %w", err)
	}
	return claims, issuers, nil
}

func scanIdentity(row interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec     Record
		address string
		userID  string
		status  string
		claims  []byte
		issuers []byte
	)
	err := row.Scan(&address, &userID, &rec.IdentityKey, &status, &claims,
		&issuers, &rec.CreatedAt, &rec.VerifiedAt, &rec.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	rec.Address = id.Address(address)
	rec.UserID = id.UserID(userID)
	rec.Status = Status(status)
	if err := json.Unmarshal(claims, &rec.Claims); err != nil {
		return nil, fmt.Errorf("unmarshal claim references: %w", err)
	}
	if err := json.Unmarshal(issuers, &rec.TrustedIssuers); err != nil {
		return nil, fmt.Errorf("unmarshal trusted issuers: %w", err)
	}
	return &rec, nil
}
