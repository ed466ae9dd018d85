// Package postgres implements the audit store with the transactional outbox
// pattern. Events are written to the outbox table in the caller's
// transaction when one is present, and relayed to Kafka by the outbox
// worker. Kafka is the source of truth for downstream consumers; the
// audit_events table keeps a queryable local copy.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "attesta/pkg/domain"
	audit "attesta/pkg/platform/audit"
	txcontext "attesta/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure published to Kafka. Field names are
// the canonical contract for cross-boundary consumers.
type outboxPayload struct {
	ID        string            `json:"id"`
	Category  string            `json:"category"`
	Operation string            `json:"operation"`
	Timestamp string            `json:"timestamp"`
	Address   string            `json:"address,omitempty"`
	ClaimID   string            `json:"claim_id,omitempty"`
	Topic     string            `json:"topic,omitempty"`
	Issuer    string            `json:"issuer,omitempty"`
	Operator  string            `json:"operator,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Changes   map[string]string `json:"changes,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// Append writes the event to audit_events and the outbox in one statement
// pair. When the caller carries a transaction in context both writes join
// it, which is what makes claim mutations and their audit entries atomic.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := event.Operation.Category()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Operation: string(event.Operation),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Address:   event.Address.String(),
		Topic:     event.Topic.String(),
		Issuer:    event.Issuer.String(),
		Operator:  event.Operator,
		Reason:    event.Reason,
		Changes:   event.Changes,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		UserAgent: event.UserAgent,
	}
	if !event.ClaimID.IsNil() {
		payload.ClaimID = event.ClaimID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	changesBytes, err := json.Marshal(event.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	exec := txcontext.ExecutorFrom(ctx, s.db)

	const insertEvent = `
		INSERT INTO audit_events (
			id, category, operation, occurred_at, address, claim_id,
			topic, issuer, operator, reason, changes, request_id,
			client_ip, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	var claimID any
	if !event.ClaimID.IsNil() {
		claimID = event.ClaimID.String()
	}
	if _, err := exec.ExecContext(ctx, insertEvent,
		eventID, string(category), string(event.Operation), event.Timestamp,
		nullable(event.Address.String()), claimID,
		nullable(event.Topic.String()), nullable(event.Issuer.String()),
		nullable(event.Operator), nullable(event.Reason), changesBytes,
		nullable(event.RequestID), nullable(event.ClientIP), nullable(event.UserAgent),
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	const insertOutbox = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	aggregateType, aggregateID := "audit", eventID.String()
	if !event.Address.IsNil() {
		aggregateType, aggregateID = "identity", event.Address.String()
	}
	if _, err := exec.ExecContext(ctx, insertOutbox,
		uuid.New(), aggregateType, aggregateID, string(event.Operation),
		payloadBytes, event.Timestamp,
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}

	return nil
}

func (s *Store) ListByAddress(ctx context.Context, address id.Address) ([]audit.Event, error) {
	const query = `
		SELECT operation, occurred_at, address, claim_id, topic, issuer,
		       operator, reason, changes, request_id, client_ip, user_agent
		FROM audit_events
		WHERE address = $1
		ORDER BY occurred_at ASC
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, address.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			op       string
			addr     sql.NullString
			claimID  sql.NullString
			topic    sql.NullString
			issuer   sql.NullString
			operator sql.NullString
			reason   sql.NullString
			changes  []byte
			reqID    sql.NullString
			ip       sql.NullString
			ua       sql.NullString
		)
		if err := rows.Scan(&op, &e.Timestamp, &addr, &claimID, &topic, &issuer,
			&operator, &reason, &changes, &reqID, &ip, &ua); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Operation = audit.Operation(op)
		e.Address = id.Address(addr.String)
		if claimID.Valid {
			cid, err := id.ParseClaimID(claimID.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt claim id in audit row: %w", err)
			}
			e.ClaimID = cid
		}
		e.Topic = id.TopicID(topic.String)
		e.Issuer = id.IssuerID(issuer.String)
		e.Operator = operator.String
		e.Reason = reason.String
		e.RequestID = reqID.String
		e.ClientIP = ip.String
		e.UserAgent = ua.String
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal audit changes: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountByOperation(ctx context.Context) (map[audit.Operation]int, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT operation, COUNT(*) FROM audit_events GROUP BY operation`)
	if err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}
	defer rows.Close()

	counts := make(map[audit.Operation]int)
	for rows.Next() {
		var op string
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		counts[audit.Operation(op)] = n
	}
	return counts, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
