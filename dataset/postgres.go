package dataset

import (
	"database/sql"
	"fmt"

	// Import of PostgreSQL driver, the same blank-import pattern
	// set/sqlset/pgadapter uses.
	_ "github.com/lib/pq"
)

// OpenPostgres opens a PostgreSQL connection (dsn in lib/pq's
// "postgres://..." or key=value form) holding the
// examples/example_labels/example_features tables SQLReader expects.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	return db, nil
}
