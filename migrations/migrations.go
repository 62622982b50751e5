// Package migrations embeds the SQL migration files so the binaries can
// apply them without a repo checkout next to the executable.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
