package issuers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// PostgresStore persists issuers in the trusted_issuers table. The
// authorized-topic set and metadata live in JSONB columns; they are small,
// read whole, and never queried by key inside the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const issuerColumns = `id, name, authorized_claims, status, metadata,
	issued_claims_count, active_claims_count, registered_at, last_activity`

func (s *PostgresStore) Create(ctx context.Context, issuer *TrustedIssuer) error {
	authorized, metadata, err := marshalIssuerJSON(issuer)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO trusted_issuers (` + issuerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		issuer.ID.String(), issuer.Name, authorized, string(issuer.Status), metadata,
		issuer.IssuedClaimsCount, issuer.ActiveClaimsCount, issuer.RegisteredAt, issuer.LastActivity)
	if err != nil {
		return fmt.Errorf("insert issuer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert issuer: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, issuerID id.IssuerID) (*TrustedIssuer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issuerColumns+` FROM trusted_issuers WHERE id = $1`, issuerID.String())
	return scanIssuer(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*TrustedIssuer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+issuerColumns+` FROM trusted_issuers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var out []*TrustedIssuer
	for rows.Next() {
		issuer, err := scanIssuer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issuer)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, issuerID id.IssuerID, validate func(*TrustedIssuer) error, mutate func(*TrustedIssuer)) (*TrustedIssuer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin issuer update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+issuerColumns+` FROM trusted_issuers WHERE id = $1 FOR UPDATE`, issuerID.String())
	issuer, err := scanIssuer(row)
	if err != nil {
		return nil, err
	}
	if err := validate(issuer); err != nil {
		return nil, err
	}
	mutate(issuer)

	authorized, metadata, err := marshalIssuerJSON(issuer)
	if err != nil {
		return nil, err
	}
	const update = `
		UPDATE trusted_issuers
		SET name = $2, authorized_claims = $3, status = $4, metadata = $5,
		    issued_claims_count = $6, active_claims_count = $7, last_activity = $8
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		issuer.ID.String(), issuer.Name, authorized, string(issuer.Status), metadata,
		issuer.IssuedClaimsCount, issuer.ActiveClaimsCount, issuer.LastActivity); err != nil {
		return nil, fmt.Errorf("update issuer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issuer update: %w", err)
	}
	return issuer, nil
}

func marshalIssuerJSON(issuer *TrustedIssuer) (authorized, metadata []byte, err error) {
	topics := issuer.Topics()
	authorized, err = json.Marshal(topics)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal authorized claims: %w", err)
	}
	meta := issuer.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metadata, err = json.Marshal(meta)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal issuer metadata: %w", err)
	}
	return authorized, metadata, nil
}

func scanIssuer(row interface{ Scan(dest ...any) error }) (*TrustedIssuer, error) {
	var (
		issuer     TrustedIssuer
		issuerID   string
		status     string
		authorized []byte
		metadata   []byte
	)
	err := row.Scan(&issuerID, &issuer.Name, &authorized, &status, &metadata,
		&issuer.IssuedClaimsCount, &issuer.ActiveClaimsCount,
		&issuer.RegisteredAt, &issuer.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan issuer: %w", err)
	}
	issuer.ID = id.IssuerID(issuerID)
	issuer.Status = Status(status)

	var topics []id.TopicID
	if err := json.Unmarshal(authorized, &topics); err != nil {
		return nil, fmt.Errorf("unmarshal authorized claims: %w", err)
	}
	issuer.AuthorizedClaims = make(map[id.TopicID]struct{}, len(topics))
	for _, t := range topics {
		issuer.AuthorizedClaims[t] = struct{}{}
	}
	if err := json.Unmarshal(metadata, &issuer.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal issuer metadata: %w", err)
	}
	return &issuer, nil
}
