package main

import (
	"flag"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mysellum/marketplace-api/internal/config"
	"github.com/mysellum/marketplace-api/internal/obs"
)

func main() {
	var (
		dir  = flag.String("dir", "db/migrations", "migrations directory")
		down = flag.Bool("down", false, "roll back one migration instead of migrating up")
	)
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "migrate").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	dsn := cfg.DatabaseURL
	if strings.HasPrefix(dsn, "postgres://") {
		dsn = "pgx5://" + strings.TrimPrefix(dsn, "postgres://")
	}

	m, err := migrate.New("file://"+*dir, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise migrate")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrate")
		}
	}()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		logger.Error().Err(err).Msg("run migrations")
		os.Exit(1)
	}
	logger.Info().Msg("migrations applied")
}
