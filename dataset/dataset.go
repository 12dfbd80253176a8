/*
Package dataset reads labeled examples from the formats §6 names: the
sparse text format, CSV, and SQLite/PostgreSQL/MongoDB-backed tables.
Every reader in this package produces the same []*example.Example the
tree/assign/model/online/plg packages train and infer against, the
same role pbanos-botanic's dataset.Dataset plays for that project's
feature.Sample rows.
*/
package dataset

import (
	"context"

	"github.com/pbanos/napkinxc/example"
)

// Reader reads a full example set from some backend.
type Reader interface {
	Read(ctx context.Context) ([]*example.Example, error)
}

// Info carries the dimensions the sparse text format's header line
// declares: total example count, feature space size and label space
// size. Callers checking these against config.Args.Arity/MaxLeaves
// catch mismatched datasets before training starts.
type Info struct {
	Examples int
	Features int32
	Labels   int32
}
