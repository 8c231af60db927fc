// Package migrations embeds the Postgres migration files.
package migrations

import "embed"

// FS contains the *_up.sql and *_down.sql migrations, applied in
// lexical order by the migrate command.
//
//go:embed *.sql
var FS embed.FS
