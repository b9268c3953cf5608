package service

import (
	"context"

	"github.com/rs/zerolog"

	"locnorm/internal/core/clean"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/services/location/domain"
)

// Clean normalizes names and acronyms of RAW and CLEANED records and marks them CLEANED.
// A record whose cleaned key is taken by a sibling is merged into it and deleted.
func (s *Service) Clean(ctx context.Context, k domain.Kind) (domain.Report, error) {
	return s.action(ctx, k, domain.ActionClean, func(ctx context.Context, rep *domain.Report) error {
		var ents []domain.Entity
		err := s.read(ctx, func(r domain.StorageRepo) (err error) {
			ents, err = r.ListEntities(ctx, k, domain.EntityFilter{
				Statuses: []domain.Status{domain.StatusRaw, domain.StatusCleaned},
				HasName:  true,
			})
			return err
		})
		if err != nil {
			return err
		}
		for _, e := range ents {
			rep.Scanned++
			if err := s.cleanOne(ctx, rep, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// cleaned returns e with normalized strings and whether anything changed
func cleaned(e domain.Entity) (domain.Entity, bool) {
	out := e
	name := clean.Name(e.NameOr())
	out.Name = &name
	out.Acronym = clean.AcronymPtr(e.Acronym)
	if e.Kind == domain.KindCountry {
		out.Acron3 = clean.AcronymPtr(e.Acron3)
	}
	changed := name != e.NameOr() ||
		!samePtr(out.Acronym, e.Acronym) ||
		!samePtr(out.Acron3, e.Acron3)
	return out, changed
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Service) cleanOne(ctx context.Context, rep *domain.Report, e domain.Entity) error {
	key := keyOf(e)
	next, changed := cleaned(e)
	if next.NameOr() == "" {
		rep.Anomalies++
		note(ctx, zerolog.WarnLevel, e.Kind, key, "anomaly").
			Int64("id", e.ID).
			Msg("location: name is empty after cleaning")
		if e.Status != domain.StatusCleaned {
			return nil
		}
		// a CLEANED row never keeps a dirty name; it is cleared instead
		next.Name = nil
		if err := s.tx(ctx, func(r domain.StorageRepo) error { return r.UpdateEntity(ctx, next) }); err != nil {
			return recordErr(ctx, rep, e.Kind, key, "update", err)
		}
		return nil
	}
	if !changed && e.Status == domain.StatusCleaned {
		rep.Unchanged++
		note(ctx, zerolog.DebugLevel, e.Kind, key, "unchanged").Int64("id", e.ID).Msg("location: already clean")
		return nil
	}
	next.Status = domain.StatusCleaned

	err := s.tx(ctx, func(r domain.StorageRepo) error { return r.UpdateEntity(ctx, next) })
	if err == nil {
		rep.Cleaned++
		note(ctx, zerolog.InfoLevel, e.Kind, keyOf(next), "cleaned").
			Int64("id", e.ID).
			Str("from", key).
			Msg("location: cleaned")
		return nil
	}
	if !perr.IsDuplicateKey(err) {
		return recordErr(ctx, rep, e.Kind, key, "update", err)
	}
	return s.mergeIntoSibling(ctx, rep, e, next)
}

// mergeIntoSibling moves the locations of e to the record already holding its cleaned key, then deletes e
func (s *Service) mergeIntoSibling(ctx context.Context, rep *domain.Report, e, next domain.Entity) error {
	var (
		survivor domain.Entity
		moved    relinkCount
	)
	err := s.tx(ctx, func(r domain.StorageRepo) error {
		moved = relinkCount{}
		sib, ok, err := r.FindByKey(ctx, e.Kind, next.NameOr(), next.Acronym)
		if err != nil {
			return err
		}
		if !ok {
			return perr.Conflictf("%s %q collided but no sibling holds the key", e.Kind, keyOf(next))
		}
		survivor = sib
		if moved, err = relink(ctx, r, e.Kind, e.ID, sib.ID); err != nil {
			return err
		}
		return r.DeleteEntity(ctx, e.Kind, e.ID)
	})
	if err != nil {
		return recordErr(ctx, rep, e.Kind, keyOf(e), "merge", err)
	}
	rep.Merged++
	rep.Deleted++
	rep.LocationsMoved += moved.moved
	rep.LocationsCollapsed += moved.collapsed
	note(ctx, zerolog.InfoLevel, e.Kind, keyOf(next), "merged").
		Int64("id", e.ID).
		Int64("survivor", survivor.ID).
		Int("locations_moved", moved.moved).
		Int("locations_collapsed", moved.collapsed).
		Msg("location: cleaned key taken; merged into sibling")
	return nil
}
