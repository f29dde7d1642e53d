package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed *.sql
var embedMigrations embed.FS

// Migrate applies every pending migration to the database at pgurl.
func Migrate(pgurl string) error {
	migrationDB, err := sql.Open("pgx", pgurl)
	if err != nil {
		return fmt.Errorf("open migration db: %w", err)
	}
	defer migrationDB.Close()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(migrationDB, "."); err != nil {
		return fmt.Errorf("run up migrations: %w", err)
	}

	log.Info().Msg("migrations applied")
	return nil
}
