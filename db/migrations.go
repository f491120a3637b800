// Package db embeds the goose migrations for every supported SQL dialect.
package db

import "embed"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var Migrations embed.FS

// MigrationsDir returns the embedded directory holding migrations for dialect.
func MigrationsDir(dialect string) string {
	if dialect == "sqlite3" {
		return "migrations/sqlite"
	}
	return "migrations/postgres"
}
