package service

import (
	"context"

	"github.com/rs/zerolog"

	perr "locnorm/internal/platform/errors"
	"locnorm/internal/services/location/domain"
)

// officialsNamed lists OFFICIAL records, narrowed to one name when given.
// A name that matches nothing is a not found error.
func (s *Service) officialsNamed(ctx context.Context, k domain.Kind, name string) ([]domain.Entity, error) {
	var out []domain.Entity
	err := s.read(ctx, func(r domain.StorageRepo) (err error) {
		out, err = r.ListEntities(ctx, k, domain.EntityFilter{
			Statuses: []domain.Status{domain.StatusOfficial},
			NameFold: name,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if name != "" && len(out) == 0 {
		return nil, perr.WithField(perr.NotFoundf("no official %s named %q", k, name), "name")
	}
	return out, nil
}

// matchedOfficials loads the official record of every match row holding members
func (s *Service) matchedOfficials(ctx context.Context, k domain.Kind) ([]domain.Entity, error) {
	var out []domain.Entity
	err := s.read(ctx, func(r domain.StorageRepo) error {
		out = out[:0]
		ms, err := r.ListMatches(ctx, k)
		if err != nil {
			return err
		}
		for _, mt := range ms {
			if len(mt.Members) == 0 {
				continue
			}
			off, err := r.GetEntity(ctx, k, mt.OfficialID)
			if err != nil {
				return err
			}
			if off.Status != domain.StatusOfficial {
				continue
			}
			out = append(out, off)
		}
		return nil
	})
	return out, err
}

// ApplyMatches rewrites locations of every matched member onto its official record
// and marks the members PROCESSED. Each official record is one transaction.
func (s *Service) ApplyMatches(ctx context.Context, k domain.Kind, name string) (domain.Report, error) {
	return s.action(ctx, k, domain.ActionApplyMatches, func(ctx context.Context, rep *domain.Report) error {
		if !k.Matchable() {
			return perr.InvalidArgf("%s have no matches to apply", k)
		}
		var (
			officials []domain.Entity
			err       error
		)
		if name == "" {
			officials, err = s.matchedOfficials(ctx, k)
		} else {
			officials, err = s.officialsNamed(ctx, k, name)
		}
		if err != nil {
			return err
		}
		for _, off := range officials {
			rep.Scanned++
			if err := s.applyOne(ctx, rep, off); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) applyOne(ctx context.Context, rep *domain.Report, off domain.Entity) error {
	k := off.Kind
	var (
		mt      domain.Match
		found   bool
		total   relinkCount
		applied int
	)
	err := s.tx(ctx, func(r domain.StorageRepo) error {
		total, applied = relinkCount{}, 0
		var err error
		if mt, found, err = r.GetMatch(ctx, k, off.ID); err != nil || !found || len(mt.Members) == 0 {
			return err
		}
		for _, m := range mt.Members {
			c, err := relink(ctx, r, k, m, off.ID)
			if err != nil {
				return err
			}
			total.add(c)
		}
		applied, err = r.SetStatus(ctx, k, mt.Members, []domain.Status{domain.StatusMatched}, domain.StatusProcessed)
		return err
	})
	if err != nil {
		return recordErr(ctx, rep, k, keyOf(off), "apply", err)
	}
	if !found || len(mt.Members) == 0 {
		note(ctx, zerolog.DebugLevel, k, keyOf(off), "skipped").Int64("official", off.ID).Msg("location: nothing matched to official record")
		return nil
	}

	rep.Applied += applied
	rep.LocationsMoved += total.moved
	rep.LocationsCollapsed += total.collapsed
	note(ctx, zerolog.InfoLevel, k, keyOf(off), "applied").
		Int64("official", off.ID).
		Int("score", mt.Score).
		Int("members", len(mt.Members)).
		Int("processed", applied).
		Int("locations_moved", total.moved).
		Int("locations_collapsed", total.collapsed).
		Msg("location: matches applied")
	return nil
}

// UnsetMatches empties the member set of the named official record.
// Members still MATCHED go back to CLEANED; locations are not touched.
func (s *Service) UnsetMatches(ctx context.Context, k domain.Kind, name string) (domain.Report, error) {
	return s.action(ctx, k, domain.ActionUnsetMatches, func(ctx context.Context, rep *domain.Report) error {
		if !k.Matchable() {
			return perr.InvalidArgf("%s have no matches to unset", k)
		}
		if name == "" {
			return perr.WithField(perr.InvalidArgf("unset-matches requires a name"), "name")
		}
		officials, err := s.officialsNamed(ctx, k, name)
		if err != nil {
			return err
		}
		for _, off := range officials {
			rep.Scanned++
			if err := s.unsetOne(ctx, rep, off); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) unsetOne(ctx context.Context, rep *domain.Report, off domain.Entity) error {
	k := off.Kind
	var (
		members  []int64
		reverted int
	)
	err := s.tx(ctx, func(r domain.StorageRepo) error {
		members, reverted = nil, 0
		mt, ok, err := r.GetMatch(ctx, k, off.ID)
		if err != nil || !ok {
			return err
		}
		if members, err = r.ClearMatchMembers(ctx, k, mt.ID); err != nil {
			return err
		}
		reverted, err = r.SetStatus(ctx, k, members, []domain.Status{domain.StatusMatched}, domain.StatusCleaned)
		return err
	})
	if err != nil {
		return recordErr(ctx, rep, k, keyOf(off), "unset", err)
	}
	if len(members) == 0 {
		rep.Skipped++
		note(ctx, zerolog.DebugLevel, k, keyOf(off), "skipped").Int64("official", off.ID).Msg("location: no members to unset")
		return nil
	}
	rep.Unset += len(members)
	note(ctx, zerolog.InfoLevel, k, keyOf(off), "unset").
		Int64("official", off.ID).
		Int("members", len(members)).
		Int("reverted", reverted).
		Msg("location: matches unset")
	return nil
}
