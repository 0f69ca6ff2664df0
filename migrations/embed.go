package migrations

import "embed"

// FS holds the schema in the Postgres dialect. Other dialects translate it
// while applying.
//
//go:embed *.sql
var FS embed.FS
