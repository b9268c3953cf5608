package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"locnorm/internal/platform/testkit"

	"github.com/rs/zerolog"
)

// 127.0.0.1:1 is closed everywhere, so pings fail fast with connection refused
const closedPortURL = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"

func TestOpenPG_ParentAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Store{Log: zerolog.Nop()}
	txr, err := openPG(ctx, Config{PG: PGConfig{URL: closedPortURL, ConnectRetries: 5}}, s)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if txr != nil {
		t.Fatalf("expected nil TxRunner on canceled context, got %T", txr)
	}
}

func TestOpenPG_RetriesThenGivesUp(t *testing.T) {
	testkit.Serial(t)

	var sleeps []time.Duration
	testkit.Swap(t, &sleep, func(d time.Duration) { sleeps = append(sleeps, d) })

	s := &Store{Log: zerolog.Nop()}
	cfg := Config{PG: PGConfig{URL: closedPortURL, ConnectRetries: 4, PingTimeout: time.Second}}
	txr, err := openPG(context.Background(), cfg, s)
	if err == nil {
		t.Fatalf("expected ping failure, got %T", txr)
	}
	if len(sleeps) != 3 {
		t.Fatalf("expected 3 backoff sleeps between 4 attempts, got %d (%v)", len(sleeps), sleeps)
	}
	for i := 1; i < len(sleeps); i++ {
		if sleeps[i] < sleeps[i-1] {
			t.Fatalf("backoff must not shrink: %v", sleeps)
		}
	}
}

func TestPGConfig_Defaults(t *testing.T) {
	t.Parallel()

	var c PGConfig
	if c.retries() != defaultConnectRetries || c.pingTimeout() != defaultPingTimeout {
		t.Fatalf("zero PGConfig should use defaults, got %d %v", c.retries(), c.pingTimeout())
	}
	c = PGConfig{ConnectRetries: 2, PingTimeout: time.Second}
	if c.retries() != 2 || c.pingTimeout() != time.Second {
		t.Fatalf("explicit PGConfig ignored, got %d %v", c.retries(), c.pingTimeout())
	}
}
