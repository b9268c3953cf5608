package service

import (
	"cmp"
	"context"
	"slices"

	"locnorm/internal/services/location/domain"
)

// relinkCount tallies location rows touched by relink
type relinkCount struct {
	moved     int
	collapsed int
}

func (c *relinkCount) add(o relinkCount) {
	c.moved += o.moved
	c.collapsed += o.collapsed
}

// relink points every location referencing from at to.
// A compound location whose target triple already exists is deleted instead.
func relink(ctx context.Context, r domain.StorageRepo, k domain.Kind, from, to int64) (relinkCount, error) {
	var c relinkCount
	if from == to {
		return c, nil
	}
	locs, err := r.LocationsReferencing(ctx, k, from)
	if err != nil {
		return c, err
	}
	for _, l := range locs {
		target := l.With(k, to)
		if target.Compound() {
			_, exists, err := r.FindLocation(ctx, target.CountryID, target.StateID, target.CityID, l.ID)
			if err != nil {
				return c, err
			}
			if exists {
				if err := r.DeleteLocation(ctx, l.ID); err != nil {
					return c, err
				}
				c.collapsed++
				continue
			}
		}
		if err := r.SetLocationRef(ctx, l.ID, k, to); err != nil {
			return c, err
		}
		c.moved++
	}
	return c, nil
}

// pickCanonical orders a group by completeness, then age, then id
func pickCanonical(k domain.Kind, group []domain.Entity) domain.Entity {
	rank := func(e domain.Entity) int {
		n := 0
		if e.Acronym != nil {
			n++
			if k == domain.KindCountry && e.Acron3 != nil {
				n++
			}
		}
		return n
	}
	return slices.MinFunc(group, func(a, b domain.Entity) int {
		if c := cmp.Compare(rank(b), rank(a)); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
