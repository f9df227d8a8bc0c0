package migrations

import "embed"

// FS holds goose SQL migrations.
//
//go:embed *.sql
var FS embed.FS
