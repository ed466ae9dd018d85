package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"attesta/internal/admintoken"
	"attesta/internal/claims"
	"attesta/internal/compliance"
	"attesta/internal/identity"
	"attesta/internal/issuers"
	"attesta/internal/platform/config"
	"attesta/internal/platform/httpserver"
	"attesta/internal/platform/kafka"
	"attesta/internal/platform/logger"
	"attesta/internal/platform/postgres"
	platformredis "attesta/internal/platform/redis"
	"attesta/internal/topics"
	httptransport "attesta/internal/transport/http"
	"attesta/internal/verification"
	"attesta/internal/verification/metrics"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/audit/relay"
	auditmem "attesta/pkg/platform/audit/store/memory"
	auditpg "attesta/pkg/platform/audit/store/postgres"
	"attesta/pkg/platform/audit/worker"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		auditStore audit.Store

		topicStore    topics.Store
		issuerStore   issuers.Store
		identityStore identity.Store
		claimStore    claims.Store
	)

	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}

		auditStore = auditpg.New(db)
		topicStore = topics.NewPostgresStore(db)
		issuerStore = issuers.NewPostgresStore(db)
		identityStore = identity.NewPostgresStore(db)
		claimStore = claims.NewPostgresStore(db)

		// The outbox relay only makes sense against the durable store; it
		// reads unpublished rows from the same database the stores write.
		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers)
			if err != nil {
				log.Error("kafka producer init failed", "error", err)
				os.Exit(1)
			}
			defer producer.Close()

			if err := producer.EnsureTopic(ctx, cfg.AuditTopic, 3); err != nil {
				log.Error("audit topic provisioning failed", "error", err)
				os.Exit(1)
			}

			rel := relay.New(db, producer, cfg.AuditTopic, log)
			go func() {
				if err := rel.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("audit relay stopped", "error", err)
				}
			}()
		}
	} else {
		log.Info("no postgres DSN configured, using in-memory stores")
		auditStore = auditmem.New()
		topicStore = topics.NewInMemoryStore()
		issuerStore = issuers.NewInMemoryStore()
		identityStore = identity.NewInMemoryStore()
		claimStore = claims.NewInMemoryStore()
	}

	// Compliance-relevant mutations record audit events synchronously and
	// fail closed. Catalog and directory changes go through the buffered
	// inbox; losing one of those under backpressure is acceptable.
	syncAudit := audit.NewSyncPublisher(auditStore, log)

	inbox := make(chan audit.Event, 1024)
	opsAudit := audit.NewInboxPublisher(inbox, log)
	auditWorker := worker.New(auditStore, inbox, log)
	go func() {
		if err := auditWorker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	topicRegistry, err := topics.New(topicStore,
		topics.WithLogger(log),
		topics.WithAuditPublisher(opsAudit),
	)
	if err != nil {
		log.Error("topic registry init failed", "error", err)
		os.Exit(1)
	}
	if err := topicRegistry.Seed(ctx); err != nil {
		log.Error("topic seeding failed", "error", err)
		os.Exit(1)
	}

	issuerDirectory, err := issuers.New(issuerStore,
		issuers.WithLogger(log),
		issuers.WithAuditPublisher(opsAudit),
	)
	if err != nil {
		log.Error("issuer directory init failed", "error", err)
		os.Exit(1)
	}

	identityRegistry, err := identity.New(identityStore,
		identity.WithLogger(log),
		identity.WithAuditPublisher(syncAudit),
	)
	if err != nil {
		log.Error("identity registry init failed", "error", err)
		os.Exit(1)
	}

	ledger, err := claims.New(claimStore, issuerDirectory, topicRegistry, identityRegistry,
		claims.WithLogger(log),
		claims.WithAuditPublisher(syncAudit),
	)
	if err != nil {
		log.Error("claim ledger init failed", "error", err)
		os.Exit(1)
	}

	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	var cache *verification.Cache
	if rdb != nil {
		defer rdb.Close()
		cache = verification.NewCache(rdb.Client, cfg.VerificationCacheTTL)
	}

	verifier := verification.New(identityRegistry, ledger, topicRegistry,
		verification.WithLogger(log),
		verification.WithCache(cache),
		verification.WithMetrics(metrics.New()),
	)

	reporter := compliance.New(identityRegistry, ledger, issuerDirectory, topicRegistry, cfg.Score,
		compliance.WithAuditSource(auditStore),
	)

	tokens := admintoken.New(cfg.AdminJWTKey, "attesta")

	handler := httptransport.NewHandler(log,
		topicRegistry, issuerDirectory, identityRegistry, ledger,
		verifier, reporter, auditStore,
	)
	router := httptransport.NewRouter(handler, tokens)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting attesta", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
