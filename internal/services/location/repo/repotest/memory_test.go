package repotest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locnorm/internal/modkit/repokit"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/services/location/domain"
)

func sp(s string) *string { return &s }

func ip(i int64) *int64 { return &i }

func seed(t *testing.T, m *Memory, k domain.Kind, name, acronym *string, st domain.Status) int64 {
	t.Helper()
	id, err := m.InsertEntity(context.Background(), domain.Entity{Kind: k, Name: name, Acronym: acronym, Status: st})
	require.NoError(t, err)
	return id
}

func TestMemory_EntityKeyIsNullsNotDistinct(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m, domain.KindCountry, sp("Brasil"), nil, domain.StatusRaw)

	_, err := m.InsertEntity(ctx, domain.Entity{Kind: domain.KindCountry, Name: sp("Brasil")})
	assert.True(t, perr.IsDuplicateKey(err), "null acronyms collide")

	_, err = m.InsertEntity(ctx, domain.Entity{Kind: domain.KindCountry, Name: sp("Brasil"), Acronym: sp("BR")})
	assert.NoError(t, err)

	// unnamed rows never collide
	seed(t, m, domain.KindCountry, nil, nil, domain.StatusRaw)
	seed(t, m, domain.KindCountry, nil, nil, domain.StatusRaw)
}

func TestMemory_CityKeyIgnoresAcronym(t *testing.T) {
	m := NewMemory()
	seed(t, m, domain.KindCity, sp("Lima"), nil, domain.StatusRaw)
	_, err := m.InsertEntity(context.Background(), domain.Entity{Kind: domain.KindCity, Name: sp("Lima"), Acronym: sp("X")})
	assert.True(t, perr.IsDuplicateKey(err))
}

func TestMemory_ListEntitiesOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	b2 := seed(t, m, domain.KindState, sp("Bahia"), sp("BA"), domain.StatusCleaned)
	a := seed(t, m, domain.KindState, sp("Acre"), nil, domain.StatusRaw)
	b1 := seed(t, m, domain.KindState, sp("Bahia"), nil, domain.StatusCleaned)
	n := seed(t, m, domain.KindState, nil, nil, domain.StatusRaw)

	all, err := m.ListEntities(ctx, domain.KindState, domain.EntityFilter{})
	require.NoError(t, err)
	var ids []int64
	for _, e := range all {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{a, b2, b1, n}, ids, "name, then created_at, nulls last")

	cleaned, err := m.ListEntities(ctx, domain.KindState, domain.EntityFilter{Statuses: []domain.Status{domain.StatusCleaned}})
	require.NoError(t, err)
	assert.Len(t, cleaned, 2)

	fold, err := m.ListEntities(ctx, domain.KindState, domain.EntityFilter{NameFold: "BAHIA"})
	require.NoError(t, err)
	assert.Len(t, fold, 2)

	named, err := m.ListEntities(ctx, domain.KindState, domain.EntityFilter{HasName: true})
	require.NoError(t, err)
	assert.Len(t, named, 3)
}

func TestMemory_FindByNameFoldPrefersOfficial(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m, domain.KindCountry, sp("brazil"), sp("BR"), domain.StatusCleaned)
	off := seed(t, m, domain.KindCountry, sp("Brazil"), sp("BR"), domain.StatusOfficial)

	e, ok, err := m.FindByNameFold(ctx, domain.KindCountry, "BRAZIL", sp("BR"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, off, e.ID)

	_, ok, err = m.FindByNameFold(ctx, domain.KindCountry, "Brazil", nil)
	require.NoError(t, err)
	assert.False(t, ok, "acronym must match exactly")
}

func TestMemory_FindByNameFoldPrefersExactSpelling(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m, domain.KindCountry, sp("BRAZIL"), sp("BR"), domain.StatusRaw)
	exact := seed(t, m, domain.KindCountry, sp("Brazil"), sp("BR"), domain.StatusRaw)

	e, ok, err := m.FindByNameFold(ctx, domain.KindCountry, "Brazil", sp("BR"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, exact, e.ID)
}

func TestMemory_SetStatusFromGuard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := seed(t, m, domain.KindCountry, sp("A"), nil, domain.StatusMatched)
	b := seed(t, m, domain.KindCountry, sp("B"), nil, domain.StatusCleaned)
	c := seed(t, m, domain.KindCountry, sp("C"), nil, domain.StatusProcessed)

	n, err := m.SetStatus(ctx, domain.KindCountry, []int64{a, b, c}, []domain.Status{domain.StatusMatched}, domain.StatusProcessed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := m.GetEntity(ctx, domain.KindCountry, b)
	assert.Equal(t, domain.StatusCleaned, got.Status)
}

func TestMemory_DeleteReferencedEntityFails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := seed(t, m, domain.KindCountry, sp("Peru"), nil, domain.StatusRaw)
	_, err := m.InsertLocation(ctx, domain.Location{CountryID: ip(id)})
	require.NoError(t, err)

	err = m.DeleteEntity(ctx, domain.KindCountry, id)
	assert.True(t, perr.IsForeignKeyViolation(err))
}

func TestMemory_LocationTripleOnlyForCompound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := seed(t, m, domain.KindCountry, sp("Brasil"), nil, domain.StatusRaw)
	s := seed(t, m, domain.KindState, sp("Bahia"), nil, domain.StatusRaw)

	_, err := m.InsertLocation(ctx, domain.Location{CountryID: ip(c)})
	require.NoError(t, err)
	_, err = m.InsertLocation(ctx, domain.Location{CountryID: ip(c)})
	require.NoError(t, err, "single-reference rows are not unique")

	_, err = m.InsertLocation(ctx, domain.Location{CountryID: ip(c), StateID: ip(s)})
	require.NoError(t, err)
	_, err = m.InsertLocation(ctx, domain.Location{CountryID: ip(c), StateID: ip(s)})
	assert.True(t, perr.IsDuplicateKey(err))

	_, err = m.InsertLocation(ctx, domain.Location{CountryID: ip(999)})
	assert.True(t, perr.IsForeignKeyViolation(err))
}

func TestMemory_TxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	err := m.Tx(ctx, func(q repokit.Queryer) error {
		r := m.Bind(q)
		if _, err := r.InsertEntity(ctx, domain.Entity{Kind: domain.KindCity, Name: sp("Quito")}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, m.Entities(domain.KindCity))

	err = m.Tx(ctx, func(q repokit.Queryer) error {
		_, err := m.Bind(q).InsertEntity(ctx, domain.Entity{Kind: domain.KindCity, Name: sp("Quito")})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, m.Entities(domain.KindCity), 1)
}

func TestMemory_TxHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewMemory().Tx(ctx, func(repokit.Queryer) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemory_MatchMembers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	off := seed(t, m, domain.KindState, sp("Minas Gerais"), sp("MG"), domain.StatusOfficial)
	off2 := seed(t, m, domain.KindState, sp("Bahia"), sp("BA"), domain.StatusOfficial)
	a := seed(t, m, domain.KindState, sp("Minas Geraes"), sp("MG"), domain.StatusCleaned)

	mid, err := m.UpsertMatch(ctx, domain.KindState, off, 90)
	require.NoError(t, err)
	again, err := m.UpsertMatch(ctx, domain.KindState, off, 95)
	require.NoError(t, err)
	assert.Equal(t, mid, again)

	require.NoError(t, m.AddMatchMember(ctx, domain.KindState, mid, a))
	require.NoError(t, m.AddMatchMember(ctx, domain.KindState, mid, a), "re-adding is a no-op")

	other, err := m.UpsertMatch(ctx, domain.KindState, off2, 80)
	require.NoError(t, err)
	assert.True(t, perr.IsDuplicateKey(m.AddMatchMember(ctx, domain.KindState, other, a)))

	mt, ok, err := m.GetMatch(ctx, domain.KindState, off)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 95, mt.Score)
	assert.Equal(t, []int64{a}, mt.Members)

	ids, err := m.ClearMatchMembers(ctx, domain.KindState, mid)
	require.NoError(t, err)
	assert.Equal(t, []int64{a}, ids)

	n, err := m.DeleteMatches(ctx, domain.KindState)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = m.UpsertMatch(ctx, domain.KindCity, off, 90)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}

func TestMemory_FailHookAborts(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")
	m.Fail = func(op string, _ int64) error {
		if op == "insert_entity" {
			return boom
		}
		return nil
	}
	_, err := m.InsertEntity(context.Background(), domain.Entity{Kind: domain.KindCity, Name: sp("Cusco")})
	assert.ErrorIs(t, err, boom)
}
