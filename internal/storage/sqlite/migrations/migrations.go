package migrations

import "embed"

// FS holds the participant schema migrations in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
