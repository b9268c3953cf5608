// Package module wires up the location normalization service
package module

import (
	"context"

	"github.com/google/uuid"

	"locnorm/internal/adapters/iso3166"
	"locnorm/internal/core/fuzzy"
	"locnorm/internal/modkit"
	"locnorm/internal/modkit/repokit"
	"locnorm/internal/platform/logger"
	"locnorm/internal/platform/metrics"
	"locnorm/internal/services/location/domain"
	"locnorm/internal/services/location/guardrails"
	"locnorm/internal/services/location/repo"
	"locnorm/internal/services/location/service"
)

// Ports exported by the location module
type Ports struct {
	Normalizer domain.NormalizerPort
}

// Module holds the wired normalization service
type Module struct {
	deps    modkit.Deps
	opts    Options
	ports   Ports
	metrics *metrics.Metrics
}

// New constructs and wires the location module using deps.Cfg.
// It fails when the reference dataset cannot be read.
func New(deps modkit.Deps) (*Module, error) {
	return NewWithBinder(deps, repo.NewPG())
}

// NewWithBinder wires the module over a caller supplied repo binder
func NewWithBinder(deps modkit.Deps, binder repokit.Binder[domain.StorageRepo]) (*Module, error) {
	opts := FromConfig(deps.Cfg)

	ds, err := iso3166.Load(opts.ISOCodesDir)
	if err != nil {
		return nil, err
	}
	ref := iso3166.NewReference(ds)
	deps.Log.Debug().
		Str("source", ds.Source).
		Int("countries", len(ds.Countries())).
		Msg("location: reference dataset loaded")

	db := repokit.WithBeginHooks(deps.MustPG(), repokit.SetLocal("lock_timeout", opts.LockTimeout))

	var lease guardrails.LeaseFunc = guardrails.NoLease
	if opts.EnableLeases {
		lease = guardrails.MakeLease(deps, uuid.New(), opts.LeaseTTL)
	}

	m := &Module{deps: deps, opts: opts, metrics: metrics.New()}
	svc := service.New(
		db,
		binder,
		ref,
		fuzzy.Score,
		service.Config{
			WritesPerSec: opts.WritesPerSec,
			RunTimeout:   opts.RunTimeout,
			EnableLeases: opts.EnableLeases,
		},
		lease,
	)
	svc.Metrics = m.metrics
	m.ports = Ports{Normalizer: svc}
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return "location" }

// Ports returns the module ports
func (m *Module) Ports() Ports { return m.ports }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Metrics returns the run collectors
func (m *Module) Metrics() *metrics.Metrics { return m.metrics }

// PushMetrics sends run metrics to the pushgateway when one is configured
func (m *Module) PushMetrics(ctx context.Context, entity domain.Kind) {
	if m.opts.MetricsPushURL == "" {
		return
	}
	if err := m.metrics.Push(ctx, m.opts.MetricsPushURL, m.opts.MetricsJob, string(entity)); err != nil {
		logger.C(ctx).Warn().Err(err).Str("url", m.opts.MetricsPushURL).Msg("location: metrics push failed")
	}
}
