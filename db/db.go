package db

import (
	"embed"
	"io/fs"
)

//go:embed pg/*.sql
var files embed.FS

// Migrations returns the schema migrations rooted at the migration directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(files, "pg")
	if err != nil {
		panic(err)
	}
	return sub
}
