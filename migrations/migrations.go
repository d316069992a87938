// Package migrations embeds the SQL migration files so they can be applied at
// startup without shipping them separately.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
