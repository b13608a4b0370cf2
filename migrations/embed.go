// Package migrations holds the SQL schema applied by cmd/migrate and AUTO_MIGRATE.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
