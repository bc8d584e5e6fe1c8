// Package migrations embeds the application database's goose migration
// files and runs them at startup, ahead of task.Registry.HealthCheck, so
// the task/stage-record/prefecture tables always exist before a
// scheduler starts picking work. There is no SQL in the retrieved
// original_source tree (it managed its schema outside the repository),
// so these migrations are a SPEC_FULL supplement rather than a port of
// existing DDL.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// Run applies every pending migration in lexical filename order against
// db, using the mysql dialect goose understands.
func Run(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("migrations: setting dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("migrations: applying migrations: %w", err)
	}
	return nil
}
