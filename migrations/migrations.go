// Package migrations embeds the SQL schema, one directory per SQL driver.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
