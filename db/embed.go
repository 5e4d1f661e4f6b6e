// Package db embeds the SQL migrations applied by the migration runner.
package db

import "embed"

// Migrations holds goose migration files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
