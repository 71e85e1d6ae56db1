package postgres

import "embed"

// Migrations holds the embedded goose SQL migrations for this package's
// schema. The server applies them at startup; tests can apply them against
// a throwaway database.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the path of the migration files inside Migrations.
const MigrationsDir = "migrations"
