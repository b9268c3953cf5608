// Package repo provides postgres access for location normalization
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"locnorm/internal/modkit/repokit"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/store"
	"locnorm/internal/services/location/domain"
)

type (
	// PG is a Postgres binder for domain.StorageRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

func scanEntity(k domain.Kind) func(store.Row) (domain.Entity, error) {
	return func(r store.Row) (domain.Entity, error) {
		var (
			e      domain.Entity
			status string
		)
		err := r.Scan(&e.ID, &e.Name, &e.Acronym, &e.Acron3, &e.Region, &status, &e.CreatedAt)
		e.Kind = k
		e.Status = domain.Status(status)
		return e, err
	}
}

func statusStrings(ss []domain.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// ListEntities returns rows ordered by name, created_at, id
func (r *queries) ListEntities(ctx context.Context, k domain.Kind, f domain.EntityFilter) ([]domain.Entity, error) {
	t, err := tableOf(k)
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		args = append(args, statusStrings(f.Statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d::text[])", len(args)))
	}
	if f.NameFold != "" {
		args = append(args, f.NameFold)
		where = append(where, fmt.Sprintf("lower(name) = lower($%d)", len(args)))
	}
	if f.HasName {
		where = append(where, "name IS NOT NULL")
	}
	sql := "SELECT " + t.sel + " FROM " + t.name
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY name, created_at, id"

	out, err := store.Many(ctx, r.q, scanEntity(k), sql, args...)
	return out, perr.FromPostgres(err, "list "+string(k))
}

// GetEntity loads one row or returns a not found error
func (r *queries) GetEntity(ctx context.Context, k domain.Kind, id int64) (domain.Entity, error) {
	t, err := tableOf(k)
	if err != nil {
		return domain.Entity{}, err
	}
	e, err := store.One(ctx, r.q, scanEntity(k), "SELECT "+t.sel+" FROM "+t.name+" WHERE id = $1", id)
	if errors.Is(err, perr.ErrNotFound) {
		return e, perr.NotFoundf("%s %d not found", k, id)
	}
	return e, err
}

// FindByKey matches the unique key exactly; cities ignore acronym
func (r *queries) FindByKey(ctx context.Context, k domain.Kind, name string, acronym *string) (domain.Entity, bool, error) {
	t, err := tableOf(k)
	if err != nil {
		return domain.Entity{}, false, err
	}
	if k == domain.KindCity {
		return r.findOne(ctx, k, "SELECT "+t.sel+" FROM "+t.name+" WHERE name = $1", name)
	}
	return r.findOne(ctx, k,
		"SELECT "+t.sel+" FROM "+t.name+" WHERE name = $1 AND acronym IS NOT DISTINCT FROM $2",
		name, acronym)
}

// FindByNameFold matches name case-insensitively and acronym exactly.
// Official rows win, then the exact spelling, then the lowest id.
func (r *queries) FindByNameFold(ctx context.Context, k domain.Kind, name string, acronym *string) (domain.Entity, bool, error) {
	t, err := tableOf(k)
	if err != nil {
		return domain.Entity{}, false, err
	}
	sql := "SELECT " + t.sel + " FROM " + t.name + " WHERE lower(name) = lower($1)"
	args := []any{name}
	if k != domain.KindCity {
		sql += " AND acronym IS NOT DISTINCT FROM $2"
		args = append(args, acronym)
	}
	sql += " ORDER BY (status = 'OFFICIAL') DESC, (name = $1) DESC, id LIMIT 1"
	return r.findOne(ctx, k, sql, args...)
}

func (r *queries) findOne(ctx context.Context, k domain.Kind, sql string, args ...any) (domain.Entity, bool, error) {
	e, err := store.One(ctx, r.q, scanEntity(k), sql, args...)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Entity{}, false, nil
	}
	if err != nil {
		return domain.Entity{}, false, err
	}
	return e, true, nil
}

// InsertEntity creates a row and returns its id
func (r *queries) InsertEntity(ctx context.Context, e domain.Entity) (int64, error) {
	var (
		sql  string
		args []any
	)
	switch e.Kind {
	case domain.KindCountry:
		sql = `INSERT INTO location_country (name, acronym, acron3, status) VALUES ($1, $2, $3, $4) RETURNING id`
		args = []any{e.Name, e.Acronym, e.Acron3, string(e.Status)}
	case domain.KindState:
		sql = `INSERT INTO location_state (name, acronym, region, status) VALUES ($1, $2, $3, $4) RETURNING id`
		args = []any{e.Name, e.Acronym, e.Region, string(e.Status)}
	case domain.KindCity:
		sql = `INSERT INTO location_city (name, status) VALUES ($1, $2) RETURNING id`
		args = []any{e.Name, string(e.Status)}
	default:
		return 0, perr.InvalidArgf("repo: unknown entity kind %q", e.Kind)
	}
	return store.Scalar[int64](ctx, r.q, sql, args...)
}

// UpdateEntity writes name, acronym, acron3, region and status
func (r *queries) UpdateEntity(ctx context.Context, e domain.Entity) error {
	var (
		sql  string
		args []any
	)
	switch e.Kind {
	case domain.KindCountry:
		sql = `UPDATE location_country SET name = $2, acronym = $3, acron3 = $4, status = $5, updated_at = now() WHERE id = $1`
		args = []any{e.ID, e.Name, e.Acronym, e.Acron3, string(e.Status)}
	case domain.KindState:
		sql = `UPDATE location_state SET name = $2, acronym = $3, region = $4, status = $5, updated_at = now() WHERE id = $1`
		args = []any{e.ID, e.Name, e.Acronym, e.Region, string(e.Status)}
	case domain.KindCity:
		sql = `UPDATE location_city SET name = $2, status = $3, updated_at = now() WHERE id = $1`
		args = []any{e.ID, e.Name, string(e.Status)}
	default:
		return perr.InvalidArgf("repo: unknown entity kind %q", e.Kind)
	}
	err := store.ExecOne(ctx, r.q, sql, args...)
	if errors.Is(err, store.ErrNotOneRow) {
		return perr.NotFoundf("%s %d not found", e.Kind, e.ID)
	}
	return err
}

// SetStatus moves ids to status to, optionally only from the given statuses
func (r *queries) SetStatus(ctx context.Context, k domain.Kind, ids []int64, from []domain.Status, to domain.Status) (int, error) {
	t, err := tableOf(k)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	n, err := store.ExecCount(ctx, r.q, `
		UPDATE `+t.name+` SET status = $3, updated_at = now()
		WHERE id = ANY($1::bigint[])
		  AND status <> $3
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
	`, ids, statusStrings(from), string(to))
	return int(n), err
}

// DeleteEntity removes one row; locations must have been moved first
func (r *queries) DeleteEntity(ctx context.Context, k domain.Kind, id int64) error {
	t, err := tableOf(k)
	if err != nil {
		return err
	}
	err = store.ExecOne(ctx, r.q, "DELETE FROM "+t.name+" WHERE id = $1", id)
	if errors.Is(err, store.ErrNotOneRow) {
		return perr.NotFoundf("%s %d not found", k, id)
	}
	return err
}
