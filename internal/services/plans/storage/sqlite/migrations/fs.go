// Package migrations embeds the plans SQLite schema migrations.
package migrations

import "embed"

// FS holds the ordered migration files for the plans store.
//
//go:embed *.sql
var FS embed.FS
