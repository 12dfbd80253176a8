/*
Package base defines the BaseLearner contract (§6 of the design):
the binary classifier trained at every tree/graph node. napkinxc
consumes base learners through this interface everywhere - tree
construction, node assignment and training, batch and online
inference - and never depends on a concrete implementation directly.

The package also carries the serialization args needed to select and
configure a concrete learner when loading a model from disk.
*/
package base

import (
	"io"

	"github.com/pbanos/napkinxc/vector"
)

// Learner is a single binary classifier attached to one tree node or
// graph edge. Implementations must be safe for concurrent Update calls
// only to the extent documented by the caller (OnlinePLT serializes
// base updates by holding its tree lock exclusively while it applies
// them; it does not assume internal locking beyond that).
type Learner interface {
	// Train fits the classifier from scratch on the given binary
	// targets (0.0/1.0) and feature vectors, optionally weighted.
	// len(targets) == len(features) == len(weights) (or weights is nil).
	Train(targets []float64, features []*vector.Sparse, weights []float64, args Args) error

	// Update performs one online step toward target (0.0 or 1.0) for
	// a single example.
	Update(target float64, features *vector.Sparse, args Args) error

	// PredictProbability returns P(label | x) in [0, 1].
	PredictProbability(features *vector.Sparse) float64

	// PredictValue returns the raw (pre-sigmoid) score for x, used by
	// HSM's multi-ary softmax.
	PredictValue(features *vector.Sparse) float64

	// Save/Load (de)serialize the learner's weights.
	Save(w io.Writer) error
	Load(r io.Reader) error

	// Copy returns an independent deep copy of the learner.
	Copy() Learner

	// CopyInverted returns a deep copy with its weight vector negated,
	// used to seed a freshly split online subtree as the logical
	// complement of its parent.
	CopyInverted() Learner
}

// Args carries the subset of configuration a base learner needs to
// train: regularization, learning rate and the optimizer choice. It is
// deliberately decoupled from config.Args so this package has no
// dependency on the CLI configuration layer.
type Args struct {
	Eta      float64 // learning rate / AdaGrad base step
	L1       float64
	L2       float64
	Epochs   int
	Optimizer string // "sgd" or "adagrad"
	Seed     int64
}

// DefaultArgs returns the defaults the original napkinXC ships for its
// logistic regression base learner.
func DefaultArgs() Args {
	return Args{Eta: 1.0, L1: 0, L2: 1.0, Epochs: 1, Optimizer: "adagrad", Seed: 0}
}

// Factory builds a fresh, untrained Learner. BaseTrainerPool calls it
// once per node so that every node gets an independent weight vector.
type Factory func() Learner
