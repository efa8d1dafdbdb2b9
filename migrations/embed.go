// Package migrations embeds the goose SQL migrations applied by cmd/migrate.
package migrations

import "embed"

// Postgres holds the postgres schema migrations under the postgres directory
//
//go:embed postgres/*.sql
var Postgres embed.FS

// PostgresDir is the directory inside Postgres that goose reads from
const PostgresDir = "postgres"
