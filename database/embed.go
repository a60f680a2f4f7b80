package database

import "embed"

// EmbeddedMigrations holds migrations/*.sql. Use fs.Sub(EmbeddedMigrations,
// "migrations") to get the directory itself.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
