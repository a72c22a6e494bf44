// Package migrations embeds the SQL files that define the groups, messages
// and items schema. They are applied by database.ApplyMigrations.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
