// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production
// deployments override via env.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures server level configuration.
type Config struct {
	Addr string

	// PostgresDSN enables the postgres stores and the audit outbox when set.
	PostgresDSN string

	// RedisURL enables the verification result cache when set.
	RedisURL string

	// KafkaBrokers enables the audit outbox relay when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// AdminJWTKey signs/validates operator tokens on the admin surface.
	AdminJWTKey string

	// VerificationCacheTTL bounds staleness of cached verification results.
	// The cache is an optimization only; correctness comes from re-derivation.
	VerificationCacheTTL time.Duration

	// Compliance score weights, applied to violation ratios (see the
	// compliance package). Tunable because the exact formula is a product
	// decision, not a fixed rule.
	Score ScoreWeights
}

// ScoreWeights weight the violation ratios that lower the compliance score.
type ScoreWeights struct {
	RevokedIdentities float64
	ExpiredRequired   float64
	Unverified        float64
}

// DefaultScoreWeights is the baseline weighting used when env overrides are
// absent.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		RevokedIdentities: 40,
		ExpiredRequired:   35,
		Unverified:        25,
	}
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                 envOr("ATTESTA_ADDR", ":8080"),
		PostgresDSN:          os.Getenv("ATTESTA_POSTGRES_DSN"),
		RedisURL:             os.Getenv("ATTESTA_REDIS_URL"),
		AuditTopic:           envOr("ATTESTA_AUDIT_TOPIC", "attesta.audit.v1"),
		AdminJWTKey:          envOr("ATTESTA_ADMIN_JWT_KEY", "dev-secret-key-change-in-production"),
		VerificationCacheTTL: envDuration("ATTESTA_VERIFICATION_CACHE_TTL", 30*time.Second),
		Score:                DefaultScoreWeights(),
	}

	if brokers := os.Getenv("ATTESTA_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	cfg.Score.RevokedIdentities = envFloat("ATTESTA_SCORE_WEIGHT_REVOKED", cfg.Score.RevokedIdentities)
	cfg.Score.ExpiredRequired = envFloat("ATTESTA_SCORE_WEIGHT_EXPIRED", cfg.Score.ExpiredRequired)
	cfg.Score.Unverified = envFloat("ATTESTA_SCORE_WEIGHT_UNVERIFIED", cfg.Score.Unverified)

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
