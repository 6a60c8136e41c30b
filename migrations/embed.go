// Package migrations holds the SQL schema, applied in filename order by the
// db migrator.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
