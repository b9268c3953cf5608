package store

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"locnorm/internal/platform/logger"

	"github.com/golang-migrate/migrate/v4"
	// registers the "pgx5" database scheme
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

// MigrateDirection selects which way Migrate walks the schema
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// MigrateResult reports the version before and after a migration run
type MigrateResult struct {
	From    uint
	To      uint
	Changed bool
}

// Migrate applies (or reverts) the embedded migrations found under dir in fsys
// A dirty database is refused; it needs manual repair first
func Migrate(dsn string, fsys fs.FS, dir string, direction MigrateDirection, log logger.Logger) (MigrateResult, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("migrate: open source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5DSN(dsn))
	if err != nil {
		return MigrateResult{}, fmt.Errorf("migrate: init: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Error().Err(srcErr).Msg("migrate source close failed")
		}
		if dbErr != nil {
			log.Error().Err(dbErr).Msg("migrate db close failed")
		}
	}()
	m.Log = migrateLogger{log: log}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrateResult{}, fmt.Errorf("migrate: read version: %w", err)
	}
	if dirty {
		return MigrateResult{From: from}, fmt.Errorf("migrate: database is dirty at version %d", from)
	}

	switch direction {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	default:
		return MigrateResult{From: from}, fmt.Errorf("migrate: unknown direction %q", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Uint("version", from).Msg("schema already current")
		return MigrateResult{From: from, To: from}, nil
	}
	if err != nil {
		return MigrateResult{From: from}, fmt.Errorf("migrate: %s: %w", direction, err)
	}

	to, _, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return MigrateResult{From: from}, fmt.Errorf("migrate: read version: %w", verr)
	}
	log.Info().Uint("from", from).Uint("to", to).Str("direction", string(direction)).Msg("schema migrated")
	return MigrateResult{From: from, To: to, Changed: true}, nil
}

// pgx5DSN rewrites postgres:// and postgresql:// urls to the pgx5:// scheme golang-migrate expects
func pgx5DSN(dsn string) string {
	for _, p := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, p); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger bridges golang-migrate's logger onto zerolog
type migrateLogger struct{ log logger.Logger }

func (l migrateLogger) Printf(format string, args ...any) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l migrateLogger) Verbose() bool { return l.log.GetLevel() <= zerolog.TraceLevel }
