// Package migrations holds the PostgreSQL schema as golang-migrate file pairs.
package migrations

import "embed"

// FS contains every *.up.sql and *.down.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
