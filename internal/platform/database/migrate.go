package database

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"libraryapi/db"
)

// Migrate applies every embedded migration for the database's dialect.
func Migrate(ctx context.Context, d *DB) error {
	goose.SetBaseFS(db.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(d.dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, d.DB.DB, db.MigrationsDir(d.dialect)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
