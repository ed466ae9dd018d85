//go:build integration

package relay_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"attesta/internal/platform/kafka"
	id "attesta/pkg/domain"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/audit/relay"
	auditpg "attesta/pkg/platform/audit/store/postgres"
	"attesta/pkg/testutil/containers"
)

const relayTestTopic = "attesta.audit.test"

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *auditpg.Store
	producer *kafka.Producer
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.redpanda = containers.NewRedpandaContainer(s.T())
	s.store = auditpg.New(s.postgres.DB)

	var err error
	s.producer, err = kafka.NewProducer([]string{s.redpanda.Broker})
	s.Require().NoError(err)
	s.T().Cleanup(s.producer.Close)

	s.Require().NoError(s.producer.EnsureTopic(context.Background(), relayTestTopic, 1))
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"audit_events", "outbox"))
}

// TestOutboxDelivery appends events through the postgres store and verifies
// the relay delivers each payload to the broker exactly once per row.
func (s *RelaySuite) TestOutboxDelivery() {
	ctx := context.Background()
	addr := id.Address("0x1111111111111111111111111111111111111111")

	events := []audit.Event{
		{Operation: audit.OpClaimIssue, Timestamp: time.Now().UTC(), Address: addr, Topic: "KYC_APPROVED", Issuer: "sumsub"},
		{Operation: audit.OpClaimRevoke, Timestamp: time.Now().UTC(), Address: addr, Topic: "KYC_APPROVED", Reason: "document forgery"},
	}
	for _, e := range events {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	r := relay.New(s.postgres.DB, s.producer, relayTestTopic, slog.Default(),
		relay.WithInterval(100*time.Millisecond))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = r.Run(runCtx)
	}()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(relayTestTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	seen := make(map[string]int)
	deadline := time.Now().Add(15 * time.Second)
	for len(seen) < len(events) && time.Now().Before(deadline) {
		fetchCtx, fetchCancel := context.WithTimeout(ctx, time.Second)
		fetches := consumer.PollFetches(fetchCtx)
		fetchCancel()
		fetches.EachRecord(func(record *kgo.Record) {
			var payload struct {
				Operation string `json:"operation"`
				Address   string `json:"address"`
			}
			s.Require().NoError(json.Unmarshal(record.Value, &payload))
			s.Equal(addr.String(), payload.Address)
			s.Equal(addr.String(), string(record.Key))
			seen[payload.Operation]++
		})
	}

	s.Equal(1, seen[string(audit.OpClaimIssue)])
	s.Equal(1, seen[string(audit.OpClaimRevoke)])

	s.Require().Eventually(func() bool {
		var pending int
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending)
		return err == nil && pending == 0
	}, 10*time.Second, 200*time.Millisecond, "outbox rows should be marked published")
}
