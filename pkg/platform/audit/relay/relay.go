// Package relay moves audit events from the postgres outbox to Kafka.
// The outbox is written in the same transaction as the domain mutation, so
// the relay only needs at-least-once delivery; consumers deduplicate on the
// event id embedded in the payload.
package relay

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Producer publishes a single record. Satisfied by the franz-go wrapper in
// internal/platform/kafka.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

type Relay struct {
	db        *sql.DB
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func New(db *sql.DB, producer Producer, topic string, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
			}
		}
	}
}

// relayBatch publishes up to batchSize pending rows. SKIP LOCKED lets
// multiple relay instances share the outbox without double-publishing
// within a poll cycle.
func (r *Relay) relayBatch(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return fmt.Errorf("select outbox batch: %w", err)
	}

	type entry struct {
		id      string
		key     string
		payload []byte
	}
	var batch []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.key, &e.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	published := make([]string, 0, len(batch))
	for _, e := range batch {
		if err := r.producer.Produce(ctx, r.topic, []byte(e.key), e.payload); err != nil {
			// Publish the rows that made it; the rest retry next cycle.
			r.logger.WarnContext(ctx, "outbox publish failed", "outbox_id", e.id, "error", err)
			break
		}
		published = append(published, e.id)
	}
	if len(published) == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`,
		pq.Array(published),
	); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return tx.Commit()
}
