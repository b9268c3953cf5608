package main

import (
	"github.com/spf13/cobra"

	"locnorm/internal/platform/config"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/logger"
	"locnorm/internal/platform/store"
	"locnorm/internal/services/location/repo"
)

// runMigrate applies the embedded schema; tests swap it
var runMigrate = func(dsn string, dir store.MigrateDirection) (store.MigrateResult, error) {
	return store.Migrate(dsn, repo.Migrations, repo.MigrationsDir, dir, *logger.Get())
}

func newMigrateCmd(human *bool) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or revert the database schema",
		ValidArgs: []string{string(store.MigrateUp), string(store.MigrateDown)},
		Args:      migrateArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := pgConfig(config.New())
			if err != nil {
				return err
			}
			dir := store.MigrateDirection(args[0])
			res, err := runMigrate(pg.URL, dir)
			if err != nil {
				return perr.Wrapf(err, perr.ErrorCodeDB, "migrate %s", dir)
			}
			return printMigrate(cmd.OutOrStdout(), *human, dir, res)
		},
	}
}

func migrateArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return perr.InvalidArgf("migrate takes exactly one direction, up or down")
	}
	switch store.MigrateDirection(args[0]) {
	case store.MigrateUp, store.MigrateDown:
		return nil
	}
	return perr.WithField(perr.InvalidArgf("unknown direction %q, want up or down", args[0]), "direction")
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return perr.InvalidArgf("%s takes no arguments, got %q", cmd.CommandPath(), args[0])
	}
	return nil
}
