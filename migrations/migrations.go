// Package migrations embeds the schema migrations for each supported database.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

// SQLite returns the SQLite migrations
func SQLite() fs.FS {
	return mustSub(sqliteFS, "sqlite")
}

// Postgres returns the PostgreSQL migrations
func Postgres() fs.FS {
	return mustSub(postgresFS, "postgres")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
