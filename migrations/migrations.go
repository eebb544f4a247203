// Package migrations embeds the SQL schema migrations for the postgres platform.
package migrations

import "embed"

// FS holds the *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
