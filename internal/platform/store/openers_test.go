package store

import (
	"context"
	"testing"
	"time"
)

func fastFailPGURL() string {
	// user/pass/db don't matter; 127.0.0.1:1 is a closed port on all systems
	return "postgres://u:p@127.0.0.1:1/db?sslmode=disable"
}

func testConfig() Config {
	return Config{
		PG: PGConfig{
			URL:         fastFailPGURL(),
			MaxConns:    2,
			SlowQueryMs: 500,
		},
		CH: CHConfig{
			Enabled: true,
			URL:     "clickhouse://u:p@127.0.0.1:1/default",
		},
	}
}

func TestOpenPG_ParentAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	s := &Store{}

	start := time.Now()
	txr, err := openPG(ctx, cfg, s)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected error due to canceled context, got nil (txr=%T)", txr)
	}
	if txr != nil {
		t.Fatalf("expected nil TxRunner on canceled context, got %T", txr)
	}
	if elapsed > time.Second {
		t.Fatalf("expected quick failure, got %v", elapsed)
	}
}

func TestOpenCH_Disabled(t *testing.T) {
	t.Parallel()
	c, err := openCH(context.Background(), CHConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("expected nil error for disabled CH, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil client for disabled CH")
	}
}

func TestOpenCH_EmptyURL(t *testing.T) {
	t.Parallel()
	_, err := openCH(context.Background(), CHConfig{Enabled: true, URL: "  "}, nil)
	if err == nil {
		t.Fatalf("expected error for empty CH url")
	}
}

func TestOpenCH_UnreachableFailsFast(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	_, err := openCH(ctx, CHConfig{Enabled: true, URL: "clickhouse://u:p@127.0.0.1:1/default"}, nil)
	if err == nil {
		t.Fatalf("expected error connecting to closed port")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("expected openCH to respect context deadline")
	}
}

func TestOpenRDS_Disabled(t *testing.T) {
	t.Parallel()
	c, err := openRDS(context.Background(), RedisConfig{Enabled: false})
	if err != nil {
		t.Fatalf("expected nil error for disabled RDS, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil client for disabled RDS")
	}
}

func TestOpenRDS_EmptyAddr(t *testing.T) {
	t.Parallel()
	_, err := openRDS(context.Background(), RedisConfig{Enabled: true, Addr: ""})
	if err == nil {
		t.Fatalf("expected error for empty redis addr")
	}
}

func TestOpenRDS_UnreachableFailsFast(t *testing.T) {
	t.Parallel()
	start := time.Now()
	_, err := openRDS(context.Background(), RedisConfig{Enabled: true, Addr: "127.0.0.1:1"})
	if err == nil {
		t.Fatalf("expected error connecting to closed port")
	}
	if time.Since(start) > 6*time.Second {
		t.Fatalf("expected openRDS to fail within its dial timeout")
	}
}
