// Package service provides the location normalization engine
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"locnorm/internal/core/fuzzy"
	"locnorm/internal/modkit/repokit"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/logger"
	"locnorm/internal/platform/metrics"
	"locnorm/internal/platform/validate"
	"locnorm/internal/services/location/domain"
	"locnorm/internal/services/location/guardrails"
)

// Config controls pacing and safety behavior
type Config struct {
	// WritesPerSec caps write transactions per second; zero means unlimited
	WritesPerSec int

	// RunTimeout bounds one Run; zero means no budget
	RunTimeout time.Duration

	// EnableLeases takes the per-entity single writer lease around Run
	EnableLeases bool
}

// Service wires TxRunner + Binder into the normalization actions
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.StorageRepo]
	Ref    domain.Reference
	Score  fuzzy.Scorer
	Cfg    Config

	// Metrics is optional; nil records nothing
	Metrics *metrics.Metrics

	// Lease(ctx, entity, do) should hold the entity lease while do runs
	Lease guardrails.LeaseFunc

	limiter *rate.Limiter
}

var _ domain.NormalizerPort = (*Service)(nil)

// New constructs the normalization service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	ref domain.Reference,
	score fuzzy.Scorer,
	cfg Config,
	lease guardrails.LeaseFunc,
) *Service {
	if db == nil {
		panic("location.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("location.Service requires a non nil Repo binder")
	}
	if score == nil {
		score = fuzzy.Score
	}
	s := &Service{DB: db, Binder: binder, Ref: ref, Score: score, Cfg: cfg, Lease: lease}
	if cfg.WritesPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.WritesPerSec), 1)
	}
	return s
}

// tx runs one paced write transaction
func (s *Service) tx(ctx context.Context, fn func(r domain.StorageRepo) error) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return repokit.WithTx(ctx, s.DB, s.Binder, fn)
}

// read runs fn in its own transaction without pacing
func (s *Service) read(ctx context.Context, fn func(r domain.StorageRepo) error) error {
	return repokit.WithTx(ctx, s.DB, s.Binder, fn)
}

// Run validates the plan and executes its actions in pipeline order under the entity lease.
// Reports of the actions that ran are returned even when a later one aborts.
func (s *Service) Run(ctx context.Context, p domain.Plan) ([]domain.Report, error) {
	if err := CheckPlan(p); err != nil {
		return nil, err
	}
	if logger.RunID(ctx) == "" {
		ctx = logger.WithRun(ctx, uuid.NewString(), "")
	}
	ctx, cancel := guardrails.WithBudget(ctx, s.Cfg.RunTimeout)
	defer cancel()

	var reports []domain.Report
	run := func(ctx context.Context) error {
		before, err := s.countLocations(ctx)
		if err != nil {
			return err
		}
		for _, a := range p.Actions() {
			rep, err := s.runAction(ctx, p, a)
			reports = append(reports, rep)
			if err != nil {
				return err
			}
		}
		after, err := s.countLocations(ctx)
		if err != nil {
			return err
		}
		if after > before {
			logger.C(ctx).Error().
				Str("entity", string(p.Kind)).
				Int("locations_before", before).
				Int("locations_after", after).
				Msg("location: run grew the location graph")
			return perr.Anomalyf("location graph grew from %d to %d during the run", before, after)
		}
		logger.C(ctx).Info().
			Str("entity", string(p.Kind)).
			Int("locations_before", before).
			Int("locations_after", after).
			Msg("location: run finished")
		return nil
	}

	if s.Lease != nil && s.Cfg.EnableLeases {
		return reports, s.Lease(ctx, string(p.Kind), run)
	}
	return reports, run(ctx)
}

func (s *Service) countLocations(ctx context.Context) (n int, err error) {
	err = s.read(ctx, func(r domain.StorageRepo) error {
		n, err = r.CountLocations(ctx)
		return err
	})
	return n, err
}

func (s *Service) runAction(ctx context.Context, p domain.Plan, a domain.Action) (domain.Report, error) {
	switch a {
	case domain.ActionClean:
		return s.Clean(ctx, p.Kind)
	case domain.ActionUnificate:
		return s.Unificate(ctx, p.Kind)
	case domain.ActionLoadOfficial:
		return s.LoadOfficial(ctx, p.Kind)
	case domain.ActionFuzzyMatch:
		return s.FuzzyMatch(ctx, p.Kind, p.Threshold, p.Reprocess)
	case domain.ActionApplyMatches:
		return s.ApplyMatches(ctx, p.Kind, p.Name)
	case domain.ActionUnsetMatches:
		return s.UnsetMatches(ctx, p.Kind, p.Name)
	}
	return domain.Report{Entity: p.Kind, Action: a}, perr.InvalidArgf("unknown action %q", a)
}

// CheckPlan rejects invocations the pipeline cannot run
func CheckPlan(p domain.Plan) error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if len(p.Actions()) == 0 {
		return perr.InvalidArgf("at least one action is required")
	}
	if !p.Kind.Matchable() && (p.LoadOfficial || p.FuzzyMatch || p.ApplyMatches || p.UnsetMatches) {
		return perr.InvalidArgf("%s support only clean and unificate", p.Kind)
	}
	if p.Reprocess && !p.FuzzyMatch {
		return perr.WithField(perr.InvalidArgf("reprocess modifies fuzzy-match"), "reprocess")
	}
	if p.Name != "" && !p.ApplyMatches && !p.UnsetMatches {
		return perr.WithField(perr.InvalidArgf("name filters apply-matches or unset-matches"), "name")
	}
	return nil
}

// action stamps ctx, times fn and records the report
func (s *Service) action(ctx context.Context, k domain.Kind, a domain.Action, fn func(ctx context.Context, rep *domain.Report) error) (domain.Report, error) {
	ctx = logger.WithRun(ctx, "", string(a))
	rep := domain.Report{Entity: k, Action: a}
	start := time.Now()

	err := fn(ctx, &rep)
	rep.Elapsed = time.Since(start)

	for outcome, n := range rep.Outcomes() {
		s.Metrics.AddOutcome(string(k), string(a), outcome, n)
	}
	s.Metrics.ObserveRun(string(k), string(a), rep.Elapsed, err == nil)

	l := logger.C(ctx)
	ev := l.Info()
	if err != nil {
		ev = l.Error().Err(err)
	}
	ev.Str("entity", string(k)).
		Int("scanned", rep.Scanned).
		Int("failed", rep.Failed).
		Dur("elapsed", rep.Elapsed).
		Msg("location: action done")
	return rep, err
}

// note starts the per record log line with the stable fields
func note(ctx context.Context, lvl zerolog.Level, k domain.Kind, key, outcome string) *zerolog.Event {
	return logger.C(ctx).WithLevel(lvl).
		Str("entity", string(k)).
		Str("key", key).
		Str("outcome", outcome)
}

// recordErr keeps per record failures local; infrastructure failures abort the action
func recordErr(ctx context.Context, rep *domain.Report, k domain.Kind, key, op string, err error) error {
	if perr.IsInfrastructure(err) {
		return err
	}
	rep.Failed++
	ev := note(ctx, zerolog.ErrorLevel, k, key, "failed").Str("op", op).Err(err)
	if pe, ok := perr.As(err); ok {
		ev = ev.Str("code", pe.Code().String())
	}
	ev.Msg("location: record failed")
	return nil
}

func keyOf(e domain.Entity) string {
	if e.Acronym == nil {
		return e.NameOr()
	}
	return e.NameOr() + "|" + *e.Acronym
}
