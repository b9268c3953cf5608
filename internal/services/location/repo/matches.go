package repo

import (
	"context"

	"locnorm/internal/platform/store"
	"locnorm/internal/services/location/domain"
)

// GetMatch loads the match row of an official record with its members
func (r *queries) GetMatch(ctx context.Context, k domain.Kind, officialID int64) (domain.Match, bool, error) {
	ms, err := r.matches(ctx, k, "WHERE m.official_id = $1", officialID)
	if err != nil || len(ms) == 0 {
		return domain.Match{}, false, err
	}
	return ms[0], true, nil
}

// ListMatches loads every match row of a kind
func (r *queries) ListMatches(ctx context.Context, k domain.Kind) ([]domain.Match, error) {
	return r.matches(ctx, k, "")
}

func (r *queries) matches(ctx context.Context, k domain.Kind, where string, args ...any) ([]domain.Match, error) {
	t, err := matchTableOf(k)
	if err != nil {
		return nil, err
	}
	sql := `
		SELECT m.id, m.official_id, m.score,
		       coalesce(array_agg(mm.` + t.memberCol + ` ORDER BY mm.` + t.memberCol + `)
		                FILTER (WHERE mm.` + t.memberCol + ` IS NOT NULL), '{}')
		FROM ` + t.match + ` m
		LEFT JOIN ` + t.member + ` mm ON mm.matched_id = m.id
		` + where + `
		GROUP BY m.id, m.official_id, m.score
		ORDER BY m.official_id`
	return store.Many(ctx, r.q, func(row store.Row) (domain.Match, error) {
		m := domain.Match{Kind: k}
		err := row.Scan(&m.ID, &m.OfficialID, &m.Score, &m.Members)
		return m, err
	}, sql, args...)
}

// UpsertMatch returns the match row for officialID, creating it when missing
func (r *queries) UpsertMatch(ctx context.Context, k domain.Kind, officialID int64, score int) (int64, error) {
	t, err := matchTableOf(k)
	if err != nil {
		return 0, err
	}
	return store.Scalar[int64](ctx, r.q, `
		INSERT INTO `+t.match+` (official_id, score)
		VALUES ($1, $2)
		ON CONFLICT (official_id) DO UPDATE SET score = EXCLUDED.score, updated_at = now()
		RETURNING id
	`, officialID, score)
}

// AddMatchMember attaches an entity to a match row (idempotent)
func (r *queries) AddMatchMember(ctx context.Context, k domain.Kind, matchID, memberID int64) error {
	t, err := matchTableOf(k)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO `+t.member+` (matched_id, `+t.memberCol+`)
		VALUES ($1, $2)
		ON CONFLICT (matched_id, `+t.memberCol+`) DO NOTHING
	`, matchID, memberID)
	return err
}

// ClearMatchMembers empties the member set and returns what it held
func (r *queries) ClearMatchMembers(ctx context.Context, k domain.Kind, matchID int64) ([]int64, error) {
	t, err := matchTableOf(k)
	if err != nil {
		return nil, err
	}
	return store.Many(ctx, r.q, func(row store.Row) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	}, "DELETE FROM "+t.member+" WHERE matched_id = $1 RETURNING "+t.memberCol, matchID)
}

// DeleteMatches drops every match row of a kind; members cascade
func (r *queries) DeleteMatches(ctx context.Context, k domain.Kind) (int, error) {
	t, err := matchTableOf(k)
	if err != nil {
		return 0, err
	}
	n, err := store.ExecCount(ctx, r.q, "DELETE FROM "+t.match)
	return int(n), err
}
