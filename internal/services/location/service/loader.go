package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	perr "locnorm/internal/platform/errors"
	pstr "locnorm/internal/platform/strings"
	"locnorm/internal/services/location/domain"
)

// LoadOfficial populates OFFICIAL countries, or the subdivisions of OFFICIAL countries as states.
// Existing records with the same name (any case) and acronym are promoted in place.
func (s *Service) LoadOfficial(ctx context.Context, k domain.Kind) (domain.Report, error) {
	return s.action(ctx, k, domain.ActionLoadOfficial, func(ctx context.Context, rep *domain.Report) error {
		if s.Ref == nil {
			return perr.Configf("location: no reference dataset configured")
		}
		switch k {
		case domain.KindCountry:
			return s.loadCountries(ctx, rep)
		case domain.KindState:
			return s.loadStates(ctx, rep)
		}
		return perr.InvalidArgf("%s have no reference dataset", k)
	})
}

func (s *Service) loadCountries(ctx context.Context, rep *domain.Report) error {
	for _, c := range s.Ref.Countries() {
		rep.Scanned++
		e := domain.Entity{Kind: domain.KindCountry, Name: pstr.Ptr(c.Name), Acronym: pstr.Ptr(c.Alpha2), Acron3: pstr.Ptr(c.Alpha3)}
		if err := s.upsertOfficial(ctx, rep, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadStates(ctx context.Context, rep *domain.Report) error {
	var countries []domain.Entity
	err := s.read(ctx, func(r domain.StorageRepo) (err error) {
		countries, err = r.ListEntities(ctx, domain.KindCountry, domain.EntityFilter{
			Statuses: []domain.Status{domain.StatusOfficial},
		})
		return err
	})
	if err != nil {
		return err
	}

	for _, c := range countries {
		if c.Acronym == nil {
			rep.Skipped++
			note(ctx, zerolog.DebugLevel, domain.KindCountry, keyOf(c), "skipped").Msg("location: official country has no alpha-2")
			continue
		}
		subs, err := s.Ref.Subdivisions(*c.Acronym)
		if errors.Is(err, domain.ErrNoSubdivisions) || (err == nil && len(subs) == 0) {
			rep.Skipped++
			note(ctx, zerolog.DebugLevel, domain.KindCountry, keyOf(c), "skipped").Msg("location: no subdivisions in reference")
			continue
		}
		if err != nil {
			if err := recordErr(ctx, rep, domain.KindCountry, keyOf(c), "subdivisions", err); err != nil {
				return err
			}
			continue
		}

		for _, sub := range subs {
			rep.Scanned++
			e := domain.Entity{Kind: domain.KindState, Name: pstr.Ptr(sub.Name), Acronym: pstr.Ptr(sub.Acronym)}
			if err := s.upsertOfficial(ctx, rep, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// upsertOfficial promotes the record holding e's key or inserts e as OFFICIAL.
// A case variant taking the dataset spelling absorbs the record already holding it.
func (s *Service) upsertOfficial(ctx context.Context, rep *domain.Report, e domain.Entity) error {
	var (
		outcome string
		id      int64
		merged  int64
		moved   relinkCount
	)
	err := s.tx(ctx, func(r domain.StorageRepo) error {
		merged, moved = 0, relinkCount{}
		cur, ok, err := r.FindByNameFold(ctx, e.Kind, e.NameOr(), e.Acronym)
		if err != nil {
			return err
		}
		if !ok {
			e.Status = domain.StatusOfficial
			id, err = r.InsertEntity(ctx, e)
			outcome = "created"
			return err
		}

		id = cur.ID
		next := cur
		next.Name = e.Name
		if next.Acron3 == nil {
			next.Acron3 = e.Acron3
		}
		next.Status = domain.StatusOfficial
		if next.Status == cur.Status && samePtr(next.Name, cur.Name) && samePtr(next.Acron3, cur.Acron3) {
			outcome = "unchanged"
			return nil
		}
		if !cur.Status.CanBecome(domain.StatusOfficial) {
			outcome = "skipped"
			return nil
		}

		if !samePtr(next.Name, cur.Name) {
			sib, taken, err := r.FindByKey(ctx, e.Kind, e.NameOr(), e.Acronym)
			if err != nil {
				return err
			}
			if taken && sib.ID != cur.ID {
				if moved, err = relink(ctx, r, e.Kind, sib.ID, cur.ID); err != nil {
					return err
				}
				if err := r.DeleteEntity(ctx, e.Kind, sib.ID); err != nil {
					return err
				}
				merged = sib.ID
			}
		}
		outcome = "promoted"
		return r.UpdateEntity(ctx, next)
	})
	if err != nil {
		return recordErr(ctx, rep, e.Kind, keyOf(e), "load-official", err)
	}

	lvl := zerolog.InfoLevel
	switch outcome {
	case "created":
		rep.Created++
	case "promoted":
		rep.Promoted++
	case "skipped":
		rep.Skipped++
	default:
		rep.Unchanged++
		lvl = zerolog.DebugLevel
	}
	if merged != 0 {
		rep.Merged++
		rep.Deleted++
		rep.LocationsMoved += moved.moved
		rep.LocationsCollapsed += moved.collapsed
		note(ctx, zerolog.InfoLevel, e.Kind, keyOf(e), "merged").
			Int64("id", merged).
			Int64("survivor", id).
			Int("locations_moved", moved.moved).
			Int("locations_collapsed", moved.collapsed).
			Msg("location: case variant merged into official record")
	}
	note(ctx, lvl, e.Kind, keyOf(e), outcome).Int64("id", id).Msg("location: official record loaded")
	return nil
}
