package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "DB_NAME", "REDIS_DB", "QUERY_TIMEOUT", "MINIO_USE_SSL"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	// empty values are still "set", so string settings keep them
	if cfg.ServerPort != "" {
		t.Fatalf("expected explicit empty SERVER_PORT to win, got %q", cfg.ServerPort)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("expected RedisDB fallback 0, got %d", cfg.RedisDB)
	}
	if cfg.QueryTimeout != 5*time.Second {
		t.Fatalf("expected default query timeout, got %s", cfg.QueryTimeout)
	}
	if cfg.MinioUseSSL {
		t.Fatalf("expected MinioUseSSL false")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("QUERY_TIMEOUT", "750ms")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("DB_LOG_SQL", "not-a-bool")

	cfg := FromEnv()

	if cfg.ServerPort != "9090" {
		t.Fatalf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("RedisDB = %d", cfg.RedisDB)
	}
	if cfg.QueryTimeout != 750*time.Millisecond {
		t.Fatalf("QueryTimeout = %s", cfg.QueryTimeout)
	}
	if !cfg.MinioUseSSL {
		t.Fatalf("MinioUseSSL = false, want true")
	}
	if cfg.DBLogSQL {
		t.Fatalf("invalid bool should fall back to false")
	}
}

func TestIdempotencyTTLCanBeDisabled(t *testing.T) {
	t.Setenv("IDEMPOTENCY_TTL", "0")
	if cfg := FromEnv(); cfg.IdempotencyTTL != 0 {
		t.Fatalf("IdempotencyTTL = %s, want 0", cfg.IdempotencyTTL)
	}

	t.Setenv("IDEMPOTENCY_TTL", "-5s")
	if cfg := FromEnv(); cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("negative TTL should fall back, got %s", cfg.IdempotencyTTL)
	}
}
