// Package migrations embeds the device-local sqlite schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
