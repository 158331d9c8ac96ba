package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	cfg := PostgresPoolConfig{}.withDefaults()

	if cfg.MaxOpenConns <= 0 || cfg.MaxIdleConns <= 0 {
		t.Fatalf("expected positive pool sizes, got %+v", cfg)
	}
	if cfg.PingTimeout <= 0 {
		t.Fatalf("expected ping timeout default, got %v", cfg.PingTimeout)
	}
}

func TestPostgresPoolConfig_KeepsExplicitValues(t *testing.T) {
	in := PostgresPoolConfig{MaxOpenConns: 7, PingTimeout: time.Second}
	cfg := in.withDefaults()

	if cfg.MaxOpenConns != 7 {
		t.Fatalf("expected explicit MaxOpenConns kept, got %d", cfg.MaxOpenConns)
	}
	if cfg.PingTimeout != time.Second {
		t.Fatalf("expected explicit PingTimeout kept, got %v", cfg.PingTimeout)
	}
}
