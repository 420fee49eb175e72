// Package migrations embeds the SQL schema so the binary can migrate itself.
package migrations

import "embed"

// FS holds every goose migration.
//
//go:embed *.sql
var FS embed.FS
