package database

import (
	"embed"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func migrationSource() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}
}

// MigrateUp applies all pending migrations and returns how many ran.
func MigrateUp(db *sqlx.DB) (int, error) {
	n, err := migrate.Exec(db.DB, "postgres", migrationSource(), migrate.Up)
	if err != nil {
		return 0, err
	}
	log.Info().Int("applied", n).Msg("Database migrations applied")
	return n, nil
}

// MigrateDown rolls back at most steps migrations. steps <= 0 rolls back everything.
func MigrateDown(db *sqlx.DB, steps int) (int, error) {
	n, err := migrate.ExecMax(db.DB, "postgres", migrationSource(), migrate.Down, steps)
	if err != nil {
		return 0, err
	}
	log.Info().Int("rolled_back", n).Msg("Database migrations rolled back")
	return n, nil
}
