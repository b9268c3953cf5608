//go:build integration_pg

package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locnorm/internal/modkit/repokit"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/logger"
	"locnorm/internal/platform/store"
	"locnorm/internal/platform/testkit"
	"locnorm/internal/services/location/domain"
)

func openPG(t *testing.T) *store.Store {
	t.Helper()
	dsn := testkit.StartPostgres(t)
	_, err := store.Migrate(dsn, Migrations, MigrationsDir, store.MigrateUp, *logger.Get())
	require.NoError(t, err)

	st, err := store.Open(context.Background(), store.Config{AppName: "locnorm-test", PG: store.PGConfig{URL: dsn}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func TestPG_EntityLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openPG(t)
	b := NewPG()

	err := repokit.WithTx(ctx, st.PG, b, func(r domain.StorageRepo) error {
		_, err := r.InsertEntity(ctx, domain.Entity{Kind: domain.KindCountry, Name: sp("Brasil"), Status: domain.StatusRaw})
		require.NoError(t, err)

		_, err = r.InsertEntity(ctx, domain.Entity{Kind: domain.KindCountry, Name: sp("Brasil"), Status: domain.StatusRaw})
		assert.True(t, perr.IsDuplicateKey(err), "null acronyms collide")
		return err
	})
	// the duplicate aborted the transaction
	require.Error(t, err)

	err = repokit.WithTx(ctx, st.PG, b, func(r domain.StorageRepo) error {
		br, err := r.InsertEntity(ctx, domain.Entity{Kind: domain.KindCountry, Name: sp("Brasil"), Status: domain.StatusRaw})
		require.NoError(t, err)
		ba, err := r.InsertEntity(ctx, domain.Entity{Kind: domain.KindState, Name: sp("Bahia"), Acronym: sp("BA"), Status: domain.StatusCleaned})
		require.NoError(t, err)

		got, ok, err := r.FindByKey(ctx, domain.KindCountry, "Brasil", nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, br, got.ID)

		fold, ok, err := r.FindByNameFold(ctx, domain.KindState, "BAHIA", sp("BA"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ba, fold.ID)

		n, err := r.SetStatus(ctx, domain.KindCountry, []int64{br}, nil, domain.StatusCleaned)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		loc, err := r.(LocationWriter).InsertLocation(ctx, domain.Location{CountryID: ip(br), StateID: ip(ba)})
		require.NoError(t, err)

		_, err = r.(LocationWriter).InsertLocation(ctx, domain.Location{CountryID: ip(br)})
		require.NoError(t, err)

		found, ok, err := r.FindLocation(ctx, ip(br), ip(ba), nil, 0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, loc, found.ID)

		_, ok, err = r.FindLocation(ctx, ip(br), ip(ba), nil, loc)
		require.NoError(t, err)
		assert.False(t, ok)

		refs, err := r.LocationsReferencing(ctx, domain.KindCountry, br)
		require.NoError(t, err)
		assert.Len(t, refs, 2)

		cnt, err := r.CountLocations(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, cnt)
		return nil
	})
	require.NoError(t, err)
}

func TestPG_Matches(t *testing.T) {
	ctx := context.Background()
	st := openPG(t)

	err := repokit.WithTx(ctx, st.PG, NewPG(), func(r domain.StorageRepo) error {
		off, err := r.InsertEntity(ctx, domain.Entity{Kind: domain.KindState, Name: sp("Minas Gerais"), Acronym: sp("MG"), Status: domain.StatusOfficial})
		require.NoError(t, err)
		mem, err := r.InsertEntity(ctx, domain.Entity{Kind: domain.KindState, Name: sp("Minas Geraes"), Acronym: sp("MG"), Status: domain.StatusCleaned})
		require.NoError(t, err)

		mid, err := r.UpsertMatch(ctx, domain.KindState, off, 92)
		require.NoError(t, err)
		again, err := r.UpsertMatch(ctx, domain.KindState, off, 93)
		require.NoError(t, err)
		assert.Equal(t, mid, again)

		require.NoError(t, r.AddMatchMember(ctx, domain.KindState, mid, mem))
		require.NoError(t, r.AddMatchMember(ctx, domain.KindState, mid, mem))

		mt, ok, err := r.GetMatch(ctx, domain.KindState, off)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 93, mt.Score)
		assert.Equal(t, []int64{mem}, mt.Members)

		ids, err := r.ClearMatchMembers(ctx, domain.KindState, mid)
		require.NoError(t, err)
		assert.Equal(t, []int64{mem}, ids)

		all, err := r.ListMatches(ctx, domain.KindState)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Empty(t, all[0].Members)

		n, err := r.DeleteMatches(ctx, domain.KindState)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}
