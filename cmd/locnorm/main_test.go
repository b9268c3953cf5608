package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locnorm/internal/modkit"
	"locnorm/internal/platform/config"
	perr "locnorm/internal/platform/errors"
	kit "locnorm/internal/platform/testkit"
	"locnorm/internal/platform/store"
	"locnorm/internal/services/location/domain"
	"locnorm/internal/services/location/guardrails"
	locmod "locnorm/internal/services/location/module"
	"locnorm/internal/services/location/repo/repotest"
)

// memEngine swaps openEngine for a module over an in-memory catalog
func memEngine(t *testing.T) *repotest.Memory {
	t.Helper()
	t.Setenv("LOCNORM_LEASES", "false")
	m := repotest.NewMemory()
	kit.Swap(t, &openEngine, func(ctx context.Context) (*engine, error) {
		mod, err := locmod.NewWithBinder(modkit.Deps{Cfg: config.New(), PG: m}, m)
		if err != nil {
			return nil, err
		}
		return &engine{mod: mod, close: func() {}}, nil
	})
	return m
}

// noEngine fails the test when a command reaches the store
func noEngine(t *testing.T) {
	t.Helper()
	kit.Swap(t, &openEngine, func(ctx context.Context) (*engine, error) {
		t.Fatal("store opened for an invalid invocation")
		return nil, nil
	})
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errw bytes.Buffer
	code := execute(args, &out, &errw)
	return code, out.String(), errw.String()
}

func seedCountry(t *testing.T, m *repotest.Memory, name string, st domain.Status) int64 {
	t.Helper()
	id, err := m.InsertEntity(context.Background(), domain.Entity{Kind: domain.KindCountry, Name: &name, Status: st})
	require.NoError(t, err)
	return id
}

func TestExitCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", perr.InvalidArgf("bad"), ExitInvalidArgs},
		{"validation", perr.New(perr.ErrorCodeValidation, "bad"), ExitInvalidArgs},
		{"unknown name", perr.WithField(perr.NotFoundf("no official named x"), "name"), ExitInvalidArgs},
		{"config", perr.Configf("missing"), ExitConfigError},
		{"lease held", perr.Wrapf(guardrails.ErrLeaseHeld, perr.ErrorCodeLeaseHeld, "countries busy"), ExitLeaseHeld},
		{"unavailable", perr.Unavailablef("down"), ExitError},
		{"plain", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeOf(tt.err); got != tt.want {
				t.Fatalf("exitCodeOf = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvalidInvocations(t *testing.T) {
	noEngine(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no action", []string{"countries"}},
		{"cities cannot match", []string{"cities", "--fuzzy-match", "80"}},
		{"unknown flag", []string{"states", "--bogus"}},
		{"threshold out of range", []string{"countries", "--fuzzy-match", "101"}},
		{"reprocess without fuzzy", []string{"countries", "--reprocess"}},
		{"unset without name", []string{"states", "--unset-matches"}},
		{"name without apply or unset", []string{"countries", "--clean", "--name", "Brazil"}},
		{"positional argument", []string{"countries", "brazil", "--clean"}},
		{"migrate sideways", []string{"migrate", "sideways"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := run(t, tt.args...)
			assert.Equal(t, ExitInvalidArgs, code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCountries_CleanJSON(t *testing.T) {
	m := memEngine(t)
	seedCountry(t, m, "  brasil<br> ", domain.StatusRaw)

	code, out, _ := run(t, "countries", "--clean", "--unificate")
	require.Equal(t, ExitSuccess, code, out)

	var resp RunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, domain.KindCountry, resp.Entity)
	require.Len(t, resp.Reports, 2)
	assert.Equal(t, domain.ActionClean, resp.Reports[0].Action)
	assert.Equal(t, 1, resp.Reports[0].Cleaned)
	assert.Equal(t, domain.ActionUnificate, resp.Reports[1].Action)

	es := m.Entities(domain.KindCountry)
	require.Len(t, es, 1)
	assert.Equal(t, "Brasil", es[0].NameOr())
}

func TestCountries_Human(t *testing.T) {
	memEngine(t)
	code, out, _ := run(t, "--human", "countries", "--load-official")
	require.Equal(t, ExitSuccess, code, out)
	kit.MustContain(t, out, "run ")
	kit.MustContain(t, out, "load-official")
	kit.MustContain(t, out, "created=")
}

func TestCountries_UnknownOfficialName(t *testing.T) {
	m := memEngine(t)
	seedCountry(t, m, "Brazil", domain.StatusOfficial)

	code, out, _ := run(t, "countries", "--apply-matches", "--name", "Atlantis")
	assert.Equal(t, ExitInvalidArgs, code)
	kit.MustContain(t, out, `"field": "name"`)
}

func TestCountries_HumanErrorGoesToStderr(t *testing.T) {
	noEngine(t)
	code, out, errw := run(t, "--human", "countries")
	assert.Equal(t, ExitInvalidArgs, code)
	assert.Empty(t, out)
	kit.MustContain(t, errw, "error: ")
}

func TestCities_FlagsLimited(t *testing.T) {
	var human bool
	root := newRootCmd(&human)
	cities, _, err := root.Find([]string{"cities"})
	require.NoError(t, err)
	assert.NotNil(t, cities.Flags().Lookup("clean"))
	assert.NotNil(t, cities.Flags().Lookup("unificate"))
	assert.Nil(t, cities.Flags().Lookup("fuzzy-match"))
	assert.Nil(t, cities.Flags().Lookup("apply-matches"))
}

func TestEngine_MissingDBURL(t *testing.T) {
	t.Setenv("LOCNORM_PG_DBURL", "")
	code, out, _ := run(t, "countries", "--clean")
	assert.Equal(t, ExitConfigError, code)
	kit.MustContain(t, out, "LOCNORM_PG_DBURL")
}

func TestConfigGuard(t *testing.T) {
	t.Setenv("LOCNORM_METRICS_PUSH_URL", "not/absolute")
	err := configGuard(func() { _ = locmod.FromConfig(config.New()) })
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeConfig))

	assert.NoError(t, configGuard(func() {}))
}

func TestPGConfig_Defaults(t *testing.T) {
	t.Setenv("LOCNORM_PG_DBURL", "postgres://localhost/locnorm")
	cfg, err := pgConfig(config.New())
	require.NoError(t, err)
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, 500, cfg.SlowQueryMs)
	assert.False(t, cfg.LogSQL)
}

func TestMigrate(t *testing.T) {
	t.Setenv("LOCNORM_PG_DBURL", "postgres://localhost/locnorm")
	var gotDir store.MigrateDirection
	kit.Swap(t, &runMigrate, func(dsn string, dir store.MigrateDirection) (store.MigrateResult, error) {
		gotDir = dir
		return store.MigrateResult{From: 0, To: 3, Changed: true}, nil
	})

	code, out, _ := run(t, "migrate", "up")
	require.Equal(t, ExitSuccess, code, out)
	assert.Equal(t, store.MigrateUp, gotDir)

	var resp MigrateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, MigrateResponse{Direction: "up", To: 3, Changed: true}, resp)
}

func TestMigrate_Failure(t *testing.T) {
	t.Setenv("LOCNORM_PG_DBURL", "postgres://localhost/locnorm")
	kit.Swap(t, &runMigrate, func(string, store.MigrateDirection) (store.MigrateResult, error) {
		return store.MigrateResult{}, errors.New("dirty database version 2")
	})
	code, _, _ := run(t, "migrate", "down")
	assert.Equal(t, ExitError, code)
}
