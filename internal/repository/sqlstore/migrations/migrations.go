// Package migrations embeds the goose SQL migrations for every dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
