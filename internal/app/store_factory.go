package app

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/shrimpsizemoose/fypalloc/internal/store"
	"github.com/shrimpsizemoose/fypalloc/internal/store/postgres"
	"github.com/shrimpsizemoose/fypalloc/internal/store/sqlite"
	"github.com/shrimpsizemoose/fypalloc/migrations"
)

// NewStore opens the store named by dsn. Migrations come from migrationsDir
// when set and from the embedded set otherwise.
func NewStore(dsn, migrationsDir string) (store.EntityStore, error) {
	dbType := store.DBTypeSQLite
	if strings.HasPrefix(dsn, "postgres") {
		dbType = store.DBTypePostgres
	}

	var fsys fs.FS = migrations.FS
	if migrationsDir != "" {
		fsys = os.DirFS(migrationsDir)
	}

	switch dbType {
	case store.DBTypePostgres:
		s, err := postgres.NewPostgresStore(dsn, fsys)
		if err != nil {
			return nil, err
		}
		return s, nil
	case store.DBTypeSQLite:
		s, err := sqlite.NewSQLiteStore(dsn, fsys)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
