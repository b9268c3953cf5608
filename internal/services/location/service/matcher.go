package service

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"locnorm/internal/core/fuzzy"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/logger"
	"locnorm/internal/services/location/domain"
)

// FuzzyMatch links non-official records to the best scoring OFFICIAL record at or above threshold.
// With reprocess, existing matches are dropped first and MATCHED records are scored again.
func (s *Service) FuzzyMatch(ctx context.Context, k domain.Kind, threshold int, reprocess bool) (domain.Report, error) {
	return s.action(ctx, k, domain.ActionFuzzyMatch, func(ctx context.Context, rep *domain.Report) error {
		if !k.Matchable() {
			return perr.InvalidArgf("%s are not matched against a reference", k)
		}
		if threshold < 0 || threshold > 100 {
			return perr.WithField(perr.InvalidArgf("threshold %d outside [0, 100]", threshold), "fuzzy-match")
		}

		statuses := []domain.Status{domain.StatusCleaned}
		if reprocess {
			statuses = append(statuses, domain.StatusMatched)
			var dropped int
			if err := s.tx(ctx, func(r domain.StorageRepo) (err error) {
				dropped, err = r.DeleteMatches(ctx, k)
				return err
			}); err != nil {
				return err
			}
			logger.C(ctx).Info().Str("entity", string(k)).Int("dropped", dropped).Msg("location: previous matches discarded")
		}

		var officials, cands []domain.Entity
		err := s.read(ctx, func(r domain.StorageRepo) (err error) {
			if officials, err = r.ListEntities(ctx, k, domain.EntityFilter{
				Statuses: []domain.Status{domain.StatusOfficial},
				HasName:  true,
			}); err != nil {
				return err
			}
			cands, err = r.ListEntities(ctx, k, domain.EntityFilter{Statuses: statuses, HasName: true})
			return err
		})
		if err != nil {
			return err
		}
		if len(officials) == 0 {
			logger.C(ctx).Warn().Str("entity", string(k)).Msg("location: no official records; run load-official first")
			return nil
		}

		space := newSearchSpace(k, officials)
		for _, e := range cands {
			rep.Scanned++
			if err := s.matchOne(ctx, rep, space, e, threshold, reprocess); err != nil {
				return err
			}
		}
		return nil
	})
}

// searchSpace is the keyed set of official records
type searchSpace struct {
	byKey    map[string]domain.Entity
	keys     []string
	acronyms map[string]bool
}

func newSearchSpace(k domain.Kind, officials []domain.Entity) searchSpace {
	sp := searchSpace{byKey: map[string]domain.Entity{}, acronyms: map[string]bool{}}
	for _, o := range officials {
		key := searchKey(k, o)
		if _, dup := sp.byKey[key]; !dup {
			sp.byKey[key] = o
			sp.keys = append(sp.keys, key)
		}
		if k == domain.KindCountry {
			for _, a := range []*string{o.Acronym, o.Acron3} {
				if a != nil {
					sp.acronyms[strings.ToUpper(*a)] = true
				}
			}
		}
	}
	slices.Sort(sp.keys)
	return sp
}

// searchKey is the string scored against: name for countries, "name|acronym" for states
func searchKey(k domain.Kind, e domain.Entity) string {
	if k == domain.KindState {
		return e.NameOr() + "|" + e.AcronymOr()
	}
	return e.NameOr()
}

// acronymAsName flags a country whose name field carries an ISO code instead of a name
func (sp searchSpace) acronymAsName(k domain.Kind, e domain.Entity) bool {
	if k != domain.KindCountry {
		return false
	}
	n := strings.TrimSpace(e.NameOr())
	if l := utf8.RuneCountInString(n); l < 2 || l > 3 {
		return false
	}
	return sp.acronyms[strings.ToUpper(n)]
}

func (s *Service) matchOne(ctx context.Context, rep *domain.Report, sp searchSpace, e domain.Entity, threshold int, reprocess bool) error {
	k := e.Kind
	key := searchKey(k, e)
	if sp.acronymAsName(k, e) {
		rep.Anomalies++
		note(ctx, zerolog.WarnLevel, k, key, "anomaly").Int64("id", e.ID).Msg("location: name holds a country code")
		return nil
	}

	best, ok := fuzzy.ExtractOne(key, sp.keys, s.Score, threshold)
	if !ok {
		if reprocess && e.Status == domain.StatusMatched {
			err := s.tx(ctx, func(r domain.StorageRepo) error {
				_, err := r.SetStatus(ctx, k, []int64{e.ID}, []domain.Status{domain.StatusMatched}, domain.StatusCleaned)
				return err
			})
			if err != nil {
				return recordErr(ctx, rep, k, key, "revert", err)
			}
		}
		rep.Skipped++
		note(ctx, zerolog.DebugLevel, k, key, "below_threshold").Int64("id", e.ID).Int("threshold", threshold).Msg("location: no official record close enough")
		return nil
	}

	off := sp.byKey[best.Choice]
	err := s.tx(ctx, func(r domain.StorageRepo) error {
		mid, err := r.UpsertMatch(ctx, k, off.ID, best.Score)
		if err != nil {
			return err
		}
		if err := r.AddMatchMember(ctx, k, mid, e.ID); err != nil {
			return err
		}
		_, err = r.SetStatus(ctx, k, []int64{e.ID},
			[]domain.Status{domain.StatusCleaned, domain.StatusMatched}, domain.StatusMatched)
		return err
	})
	if err != nil {
		return recordErr(ctx, rep, k, key, "match", err)
	}

	rep.Matched++
	note(ctx, zerolog.InfoLevel, k, key, "matched").
		Int64("id", e.ID).
		Int64("official", off.ID).
		Str("official_key", best.Choice).
		Int("score", best.Score).
		Msg("location: matched")
	return nil
}
