package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures server-level configuration. Built once in main from
// ATTESTA_* environment variables so the rest of the tree never reads the
// environment.
type Config struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string

	// BootstrapIdentity receives all four capabilities at startup.
	BootstrapIdentity string

	MaxVerifyBatch int
	VerifyCacheTTL time.Duration
	AuditBuffer    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// Empty PostgresDSN, RedisURL, or KafkaBrokers select the in-memory or no-op
// implementation of the respective concern.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("ATTESTA_ADDR", ":8080"),
		PostgresDSN:       os.Getenv("ATTESTA_POSTGRES_DSN"),
		RedisURL:          os.Getenv("ATTESTA_REDIS_URL"),
		AuditTopic:        envOr("ATTESTA_AUDIT_TOPIC", "attesta.audit"),
		JWTSigningKey:     envOr("ATTESTA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		BootstrapIdentity: os.Getenv("ATTESTA_BOOTSTRAP_IDENTITY"),
		MaxVerifyBatch:    envIntOr("ATTESTA_MAX_VERIFY_BATCH", 100),
		VerifyCacheTTL:    envDurationOr("ATTESTA_VERIFY_CACHE_TTL", 30*time.Second),
		AuditBuffer:       envIntOr("ATTESTA_AUDIT_BUFFER", 1024),
		HTTPReadTimeout:   envDurationOr("ATTESTA_HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:  envDurationOr("ATTESTA_HTTP_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:   envDurationOr("ATTESTA_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if brokers := os.Getenv("ATTESTA_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
