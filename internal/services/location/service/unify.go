package service

import (
	"context"

	"github.com/rs/zerolog"

	"locnorm/internal/services/location/domain"
)

// Unificate collapses CLEANED records sharing a name into one canonical record.
// Each group runs in its own transaction.
func (s *Service) Unificate(ctx context.Context, k domain.Kind) (domain.Report, error) {
	return s.action(ctx, k, domain.ActionUnificate, func(ctx context.Context, rep *domain.Report) error {
		var ents []domain.Entity
		err := s.read(ctx, func(r domain.StorageRepo) (err error) {
			ents, err = r.ListEntities(ctx, k, domain.EntityFilter{
				Statuses: []domain.Status{domain.StatusCleaned},
				HasName:  true,
			})
			return err
		})
		if err != nil {
			return err
		}
		rep.Scanned = len(ents)

		for _, group := range groupByName(ents) {
			if len(group) < 2 {
				continue
			}
			if err := s.unifyGroup(ctx, rep, k, group); err != nil {
				return err
			}
		}
		return nil
	})
}

// groupByName splits a name-ordered listing into runs of equal names
func groupByName(ents []domain.Entity) [][]domain.Entity {
	var out [][]domain.Entity
	for i := 0; i < len(ents); {
		j := i + 1
		for j < len(ents) && ents[j].NameOr() == ents[i].NameOr() {
			j++
		}
		out = append(out, ents[i:j])
		i = j
	}
	return out
}

func (s *Service) unifyGroup(ctx context.Context, rep *domain.Report, k domain.Kind, group []domain.Entity) error {
	canon := pickCanonical(k, group)
	var (
		total   relinkCount
		removed int
	)
	err := s.tx(ctx, func(r domain.StorageRepo) error {
		total, removed = relinkCount{}, 0
		for _, d := range group {
			if d.ID == canon.ID {
				continue
			}
			c, err := relink(ctx, r, k, d.ID, canon.ID)
			if err != nil {
				return err
			}
			total.add(c)
			if err := r.DeleteEntity(ctx, k, d.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return recordErr(ctx, rep, k, canon.NameOr(), "unificate", err)
	}

	rep.Merged += removed
	rep.Deleted += removed
	rep.LocationsMoved += total.moved
	rep.LocationsCollapsed += total.collapsed
	note(ctx, zerolog.InfoLevel, k, keyOf(canon), "merged").
		Int64("canonical", canon.ID).
		Int("duplicates", removed).
		Int("locations_moved", total.moved).
		Int("locations_collapsed", total.collapsed).
		Msg("location: group unified")
	return nil
}
