// Package migrations embeds the SQL schema into the binary.
//
// The sqlite set uses the YYYYMMDD_HHMMSS_name.up.sql / .down.sql layout read
// by database.Migrate. The postgres set uses goose annotations and is applied
// by postgres.Migrate.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

// SQLite returns the SQLite migrations rooted at the directory holding them.
func SQLite() fs.FS {
	return mustSub(sqliteFS, "sqlite")
}

// Postgres returns the goose migrations for PostgreSQL.
func Postgres() fs.FS {
	return mustSub(postgresFS, "postgres")
}

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		// Only reachable if the embed directive and dir disagree.
		panic(err)
	}
	return sub
}
