/*
Package assign implements the per-node training-set assignment of
§4.2: walking a dataset and, for every tree node, producing the
aligned (binLabels, binFeatures[, binWeights]) lists its base learner
must fit. This is the step that turns a label tree plus a dataset into
the per-node binary sub-problems trainpool.Pool actually trains.

PLT and HSM share the "walk from a label's leaf toward the root,
deciding a target at each node along the way" shape; BR/OVR need no
tree at all since every label is its own flat binary problem. All
three report UnknownLabel/MultiLabelInSingleLabelModel rows as skipped
rather than failing the whole pass, per §7.
*/
package assign

import (
	"fmt"

	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/tree"
	"github.com/pbanos/napkinxc/vector"
)

// Assignment is the per-node (or, for BR, per-label) training data:
// Targets[i]/Features[i]/Weights[i] are the parallel binLabels,
// binFeatures and binWeights lists for node (or label) i.
type Assignment struct {
	Targets  [][]float64
	Features [][]*vector.Sparse
	Weights  [][]float64
	Skipped  int
}

func newAssignment(size int32) *Assignment {
	return &Assignment{
		Targets:  make([][]float64, size),
		Features: make([][]*vector.Sparse, size),
		Weights:  make([][]float64, size),
	}
}

func (a *Assignment) add(node int32, target float64, features *vector.Sparse, weight float64) {
	a.Targets[node] = append(a.Targets[node], target)
	a.Features[node] = append(a.Features[node], features)
	a.Weights[node] = append(a.Weights[node], weight)
}

// PLT implements the PLT rule of §4.2: positives are the union of
// every label's ancestors (including the leaf) plus the root itself;
// from the root, a breadth-first walk through positive children marks
// every non-positive child of a visited node as a negative without
// descending into it. An example with no labels trains the root alone
// with target 0.0.
func PLT(t *tree.Tree, examples []*example.Example) *Assignment {
	a := newAssignment(t.NumNodes())
	for _, e := range examples {
		if len(e.Labels) == 0 {
			a.add(t.Root, 0.0, e.Features, 1.0)
			continue
		}
		positive, ok := positiveClosure(t, e.Labels)
		if !ok {
			a.Skipped++
			continue
		}
		a.add(t.Root, 1.0, e.Features, 1.0)
		queue := []int32{t.Root}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			for _, c := range t.Node(n).Children {
				if positive[c] {
					a.add(c, 1.0, e.Features, 1.0)
					queue = append(queue, c)
				} else {
					a.add(c, 0.0, e.Features, 1.0)
				}
			}
		}
	}
	return a
}

// positiveClosure returns the set of node indices on the root-to-leaf
// path of every label in labels (ancestors plus the leaf itself), or
// ok=false if any label has no leaf in the tree (UnknownLabel).
func positiveClosure(t *tree.Tree, labels []int32) (map[int32]bool, bool) {
	positive := make(map[int32]bool)
	for _, l := range labels {
		path, err := t.PathToRoot(l)
		if err != nil {
			return nil, false
		}
		for _, n := range path {
			positive[n] = true
		}
	}
	return positive, true
}

// HSM implements the hierarchical-softmax rule of §4.2: a single-label
// example walks leaf to root; at each step's parent p, a degenerate
// 1-child parent marks the child positive, a 2-child parent trains
// only child 0's base (positive iff the walked node is child 0), and
// a >2-child parent is one-vs-rest across all of p's children. When
// pickOneLabelWeighting is set, multi-label examples contribute one
// walk per label, each weighted 1/|labels(example)| instead of being
// rejected as MultiLabelInSingleLabelModel.
func HSM(t *tree.Tree, examples []*example.Example, pickOneLabelWeighting bool) *Assignment {
	a := newAssignment(t.NumNodes())
	for _, e := range examples {
		if pickOneLabelWeighting {
			if len(e.Labels) == 0 {
				a.Skipped++
				continue
			}
			weight := 1.0 / float64(len(e.Labels))
			for _, l := range e.Labels {
				if err := hsmWalk(t, a, l, e.Features, weight); err != nil {
					a.Skipped++
				}
			}
			continue
		}
		if len(e.Labels) != 1 {
			a.Skipped++
			continue
		}
		if err := hsmWalk(t, a, e.Labels[0], e.Features, 1.0); err != nil {
			a.Skipped++
		}
	}
	return a
}

func hsmWalk(t *tree.Tree, a *Assignment, label int32, features *vector.Sparse, weight float64) error {
	n, ok := t.LeafForLabel(label)
	if !ok {
		return fmt.Errorf("assign: no leaf for label %d", label)
	}
	for {
		node := t.Node(n)
		p := node.Parent
		if p < 0 {
			return nil
		}
		parent := t.Node(p)
		switch len(parent.Children) {
		case 1:
			a.add(n, 1.0, features, weight)
		case 2:
			c0 := parent.Children[0]
			target := 0.0
			if n == c0 {
				target = 1.0
			}
			a.add(c0, target, features, weight)
		default:
			for _, c := range parent.Children {
				target := 0.0
				if c == n {
					target = 1.0
				}
				a.add(c, target, features, weight)
			}
		}
		n = p
	}
}

// BR implements binary relevance / one-vs-rest: every label is its
// own flat binary problem, indexed 0..k-1 with no tree involved.
// ovr enforces MultiLabelInSingleLabelModel (every example must carry
// exactly one label); plain BR accepts any label subset. The design
// note's `parts` windowing is preserved as a capability by letting
// the caller shard labels into windows before calling BR per window;
// in practice a single part (the whole label range) is always used.
func BR(k int32, examples []*example.Example, ovr bool) *Assignment {
	a := newAssignment(k)
	for _, e := range examples {
		if ovr && len(e.Labels) != 1 {
			a.Skipped++
			continue
		}
		positive := make(map[int32]bool, len(e.Labels))
		for _, l := range e.Labels {
			positive[l] = true
		}
		for l := int32(0); l < k; l++ {
			target := 0.0
			if positive[l] {
				target = 1.0
			}
			a.add(l, target, e.Features, 1.0)
		}
	}
	return a
}
