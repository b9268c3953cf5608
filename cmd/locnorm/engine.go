package main

import (
	"context"
	"fmt"

	"locnorm/internal/modkit"
	"locnorm/internal/platform/config"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/logger"
	"locnorm/internal/platform/store"
	locmod "locnorm/internal/services/location/module"
)

// engine is an opened store with the location module wired on top
type engine struct {
	mod   *locmod.Module
	close func()
}

// pgConfig reads LOCNORM_PG_*; a missing DBURL is a config error
func pgConfig(root config.Conf) (store.PGConfig, error) {
	pg := root.Prefix("LOCNORM_PG_")
	if !pg.Has("DBURL") {
		return store.PGConfig{}, perr.Configf("LOCNORM_PG_DBURL is required")
	}
	return store.PGConfig{
		URL:         pg.MustString("DBURL"),
		MaxConns:    int32(pg.MayInt("MAX_CONNS", 4)),
		SlowQueryMs: pg.MayInt("SLOW_MS", 500),
		LogSQL:      pg.MayBool("LOG_SQL", false),
	}, nil
}

// configGuard turns a config panic into a coded error so the exit code reflects it
func configGuard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.Configf("invalid configuration: %v", r)
		}
	}()
	fn()
	return nil
}

// openEngine connects to postgres and wires the location module.
// Tests swap it for an in-memory engine.
var openEngine = func(ctx context.Context) (*engine, error) {
	root := config.New()
	pgCfg, err := pgConfig(root)
	if err != nil {
		return nil, err
	}

	l := logger.Get()
	st, err := store.Open(ctx, store.Config{AppName: "locnorm", PG: pgCfg}, store.WithLogger(*l))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "open store")
	}
	closeStore := func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}

	var mod *locmod.Module
	if gerr := configGuard(func() {
		mod, err = locmod.New(modkit.Deps{Log: *l, Cfg: root, PG: st.PG})
	}); gerr != nil {
		closeStore()
		return nil, gerr
	}
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("location module: %w", err)
	}
	return &engine{mod: mod, close: closeStore}, nil
}
