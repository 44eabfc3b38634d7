// Package migrations embeds the SQL migrations of the SQLite durable index.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
