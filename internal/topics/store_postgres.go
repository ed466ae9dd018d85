package topics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// PostgresStore persists topic definitions in the claim_topics table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const topicColumns = `id, name, description, required, category, default_expiry_days,
	renewable, chain_code, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, def *Definition) error {
	const query = `
		INSERT INTO claim_topics (` + topicColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		def.ID.String(), def.Name, def.Description, def.Required, string(def.Category),
		def.DefaultExpiryDays, def.Renewable, int64(def.ChainCode), def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, topicID id.TopicID) (*Definition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM claim_topics WHERE id = $1`, topicID.String())
	return scanTopic(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*Definition, error) {
	return s.list(ctx, `SELECT `+topicColumns+` FROM claim_topics ORDER BY id`)
}

func (s *PostgresStore) ListRequired(ctx context.Context) ([]*Definition, error) {
	return s.list(ctx, `SELECT `+topicColumns+` FROM claim_topics WHERE required ORDER BY id`)
}

func (s *PostgresStore) list(ctx context.Context, query string) ([]*Definition, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var out []*Definition
	for rows.Next() {
		def, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// Execute loads the row FOR UPDATE, applies validate then mutate, and
// writes the result back, all in one transaction.
func (s *PostgresStore) Execute(ctx context.Context, topicID id.TopicID, validate func(*Definition) error, mutate func(*Definition)) (*Definition, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin topic update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM claim_topics WHERE id = $1 FOR UPDATE`, topicID.String())
	def, err := scanTopic(row)
	if err != nil {
		return nil, err
	}
	if err := validate(def); err != nil {
		return nil, err
	}
	mutate(def)

	const update = `
		UPDATE claim_topics
		SET name = $2, description = $3, required = $4, default_expiry_days = $5,
		    renewable = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		def.ID.String(), def.Name, def.Description, def.Required,
		def.DefaultExpiryDays, def.Renewable, def.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update topic: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit topic update: %w", err)
	}
	return def, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(row rowScanner) (*Definition, error) {
	var (
		def       Definition
		topicID   string
		category  string
		chainCode int64
	)
	err := row.Scan(&topicID, &def.Name, &def.Description, &def.Required, &category,
		&def.DefaultExpiryDays, &def.Renewable, &chainCode, &def.CreatedAt, &def.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan topic: %w", err)
	}
	def.ID = id.TopicID(topicID)
	def.Category = Category(category)
	def.ChainCode = uint64(chainCode)
	return &def, nil
}
