// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations all:templates assets
var FS embed.FS

// MigrationsDir returns the migrations directory of the given database engine.
func MigrationsDir(engine string) string {
	return "migrations/" + engine
}
