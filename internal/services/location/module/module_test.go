package module

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"locnorm/internal/modkit"
	"locnorm/internal/platform/config"
	perr "locnorm/internal/platform/errors"
	kit "locnorm/internal/platform/testkit"
	"locnorm/internal/services/location/domain"
	"locnorm/internal/services/location/repo/repotest"
)

func TestFromConfig_Defaults(t *testing.T) {
	o := FromConfig(config.New())
	if o.WritesPerSec != 0 || !o.EnableLeases || o.LeaseTTL != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", o)
	}
	if o.LockTimeout != 5*time.Second || o.MetricsJob != "locnorm" || o.ISOCodesDir != "" {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}

func TestFromConfig_Env(t *testing.T) {
	t.Setenv("LOCNORM_WRITES_PER_SEC", "20")
	t.Setenv("LOCNORM_LEASES", "false")
	t.Setenv("LOCNORM_LEASE_TTL", "2m")
	t.Setenv("LOCNORM_RUN_TIMEOUT", "1h")
	t.Setenv("LOCNORM_PG_LOCK_TIMEOUT", "750ms")
	t.Setenv("LOCNORM_METRICS_PUSH_URL", "http://pushgateway:9091")
	t.Setenv("LOCNORM_METRICS_JOB", "nightly")

	o := FromConfig(config.New())
	if o.WritesPerSec != 20 || o.EnableLeases || o.LeaseTTL != 2*time.Minute || o.RunTimeout != time.Hour {
		t.Fatalf("env not applied: %+v", o)
	}
	if o.LockTimeout != 750*time.Millisecond || o.MetricsPushURL != "http://pushgateway:9091" || o.MetricsJob != "nightly" {
		t.Fatalf("env not applied: %+v", o)
	}

	t.Setenv("LOCNORM_METRICS_PUSH_URL", "relative/path")
	kit.MustPanic(t, func() { _ = FromConfig(config.New()) })
}

func TestNew_RequiresPG(t *testing.T) {
	kit.MustPanic(t, func() { _, _ = New(modkit.Deps{Cfg: config.New()}) })
}

func TestNew_BadISODir(t *testing.T) {
	t.Setenv("LOCNORM_ISO_CODES_DIR", t.TempDir())
	m := repotest.NewMemory()
	_, err := NewWithBinder(modkit.Deps{Cfg: config.New(), PG: m}, m)
	if err == nil {
		t.Fatal("expected error for a directory without iso-codes files")
	}
	if !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("code = %v, want config", perr.CodeOf(err))
	}
}

func TestNewWithBinder_RunsOverMemory(t *testing.T) {
	t.Setenv("LOCNORM_LEASES", "false")
	m := repotest.NewMemory()
	mod, err := NewWithBinder(modkit.Deps{Cfg: config.New(), PG: m}, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if mod.Name() != "location" || mod.Ports().Normalizer == nil {
		t.Fatal("module not wired")
	}

	reps, err := mod.Ports().Normalizer.Run(context.Background(), domain.Plan{Kind: domain.KindCountry, LoadOfficial: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reps) != 1 || reps[0].Created == 0 {
		t.Fatalf("reports = %+v", reps)
	}
}

func TestPushMetrics(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("LOCNORM_LEASES", "false")
	t.Setenv("LOCNORM_METRICS_PUSH_URL", srv.URL)
	m := repotest.NewMemory()
	mod, err := NewWithBinder(modkit.Deps{Cfg: config.New(), PG: m}, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mod.Metrics().AddOutcome("countries", "clean", "cleaned", 1)
	mod.PushMetrics(context.Background(), domain.KindCountry)
	if hits.Load() == 0 {
		t.Fatal("pushgateway was not called")
	}
}
