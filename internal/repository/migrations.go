package repository

import "embed"

// MigrationsFS содержит миграции для обоих драйверов: migrations/postgres и migrations/sqlite.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationsFS embed.FS

const (
	PostgresMigrationsPath = "migrations/postgres"
	SQLiteMigrationsPath   = "migrations/sqlite"
)
