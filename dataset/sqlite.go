package dataset

import (
	"database/sql"
	"fmt"

	// Imported for its side effect of registering the "sqlite3" driver,
	// the same blank-import-for-driver-registration pattern
	// pkg/bio/sql/sqlite3adapter uses.
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens an SQLite3 database file holding the
// examples/example_labels/example_features tables SQLReader expects.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3 database %s: %w", path, err)
	}
	return db, nil
}
