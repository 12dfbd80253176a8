package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/vector"
)

// SQLReader reads examples out of a *sql.DB holding three tables:
//
//	examples(id INTEGER PRIMARY KEY)
//	example_labels(example_id INTEGER, label INTEGER)
//	example_features(example_id INTEGER, feature_index INTEGER, value REAL)
//
// Grounded on pbanos-botanic's pkg/bio/sql adapter/query style
// (prepared SELECTs iterated with rows.Scan), simplified from that
// package's generic discrete/continuous feature-column schema to the
// sparse (example, label) and (example, feature, value) row shape
// this domain's examples need. database/sql is driver-agnostic, so
// the same SQLReader works unchanged against both OpenSQLite and
// OpenPostgres connections.
type SQLReader struct {
	db *sql.DB
}

// NewSQLReader wraps an already-open *sql.DB (see OpenSQLite,
// OpenPostgres) for reading.
func NewSQLReader(db *sql.DB) *SQLReader {
	return &SQLReader{db: db}
}

func (s *SQLReader) Read(ctx context.Context) ([]*example.Example, error) {
	ids, err := s.exampleIDs(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*example.Example, len(ids))
	examples := make([]*example.Example, len(ids))
	for i, id := range ids {
		e := &example.Example{Features: &vector.Sparse{}}
		byID[id] = e
		examples[i] = e
	}

	if err := s.loadLabels(ctx, byID); err != nil {
		return nil, err
	}
	if err := s.loadFeatures(ctx, byID); err != nil {
		return nil, err
	}
	return examples, nil
}

func (s *SQLReader) exampleIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM examples ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing examples: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning example id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLReader) loadLabels(ctx context.Context, byID map[int64]*example.Example) error {
	rows, err := s.db.QueryContext(ctx, "SELECT example_id, label FROM example_labels ORDER BY example_id")
	if err != nil {
		return fmt.Errorf("listing example labels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var label int32
		if err := rows.Scan(&id, &label); err != nil {
			return fmt.Errorf("scanning example label: %w", err)
		}
		if e, ok := byID[id]; ok {
			e.Labels = append(e.Labels, label)
		}
	}
	return rows.Err()
}

func (s *SQLReader) loadFeatures(ctx context.Context, byID map[int64]*example.Example) error {
	rows, err := s.db.QueryContext(ctx, "SELECT example_id, feature_index, value FROM example_features ORDER BY example_id, feature_index")
	if err != nil {
		return fmt.Errorf("listing example features: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var idx int32
		var value float64
		if err := rows.Scan(&id, &idx, &value); err != nil {
			return fmt.Errorf("scanning example feature: %w", err)
		}
		if e, ok := byID[id]; ok {
			e.Features.Indices = append(e.Features.Indices, idx)
			e.Features.Values = append(e.Features.Values, value)
		}
	}
	return rows.Err()
}
