package tree

import (
	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/trainpool"
	"github.com/pbanos/napkinxc/vector"
)

// TopDownResult is the output of BuildTopDown: the tree shape plus
// one trained base.Learner per non-root node, already indexed by node
// index exactly as the PLT/HSM node assigners would expect from
// model.Train, since the top-down strategy trains each node's
// classifier as a side effect of deciding the tree shape instead of
// leaving that to a later assign+train pass.
type TopDownResult struct {
	Tree  *Tree
	Bases []base.Learner // indexed by node index; Bases[Tree.Root] is always nil
}

// topDownJob is one node awaiting a split: the label subset it
// covers and the indices (into the example slice passed to
// BuildTopDown) of the examples currently attracted to it.
type topDownJob struct {
	node      int32
	labels    []int32
	positives []int
}

// BuildTopDown builds the topDown strategy of §4.1: starting from the
// full label set at the root, recursively splits the current node's
// labels into `arity` contiguous blocks (the same splitBlocks rule
// BuildBalanced uses) and trains one binary classifier per block on
// the node's currently attracted examples, where the positive class
// is "this example has a label inside the block." That classifier
// becomes the block's node base; recursion into the block continues
// with exactly the examples whose true labels intersect it, so the
// tree shape is fixed by ground-truth label co-occurrence while the
// per-node classifier learns to approximate it from features alone.
func BuildTopDown(allLabels []int32, examples []*example.Example, arity int, factory base.Factory, bargs base.Args, pool *trainpool.Pool) (*TopDownResult, error) {
	k := int32(len(allLabels))
	t := newTree(k)
	root := t.addNode(-1, -1)
	t.Root = root

	rootPositives := make([]int, 0, len(examples))
	for i, e := range examples {
		if len(e.Labels) > 0 {
			rootPositives = append(rootPositives, i)
		}
	}

	bases := make([]base.Learner, 1)
	level := []topDownJob{{node: root, labels: allLabels, positives: rootPositives}}

	for len(level) > 0 {
		var next []topDownJob
		var trainJobs []trainpool.Job
		// childParent maps a newly created child's index back to the
		// positives of the parent job it split from, so the second
		// pass below can compute its own attracted positives once
		// training has finished.
		childParent := make(map[int32][]int)
		childLabels := make(map[int32][]int32)

		for _, j := range level {
			if len(j.labels) == 1 {
				continue
			}
			blocks := splitBlocks(j.labels, arity)
			for _, block := range blocks {
				if len(block) == 0 {
					continue
				}
				var idx int32
				if len(block) == 1 {
					idx = t.addNode(block[0], j.node)
				} else {
					idx = t.addNode(-1, j.node)
				}
				for int(idx) >= len(bases) {
					bases = append(bases, nil)
				}
				childParent[idx] = j.positives
				childLabels[idx] = block
				trainJobs = append(trainJobs, trainpool.Job{
					Index:    int(idx),
					Targets:  blockTargets(examples, j.positives, block),
					Features: blockFeatures(examples, j.positives),
				})
			}
		}
		if len(trainJobs) == 0 {
			break
		}
		trained, err := pool.Train(trainJobs)
		if err != nil {
			return nil, err
		}
		for idx, l := range trained {
			if l != nil {
				bases[idx] = l
			}
		}

		for idx, block := range childLabels {
			if len(block) == 1 {
				continue // leaf, no further split
			}
			attracted := attractedPositives(examples, childParent[idx], block)
			next = append(next, topDownJob{node: idx, labels: block, positives: attracted})
		}
		level = next
	}

	return &TopDownResult{Tree: t, Bases: bases}, nil
}

// blockTargets returns, for each positive example at the parent node,
// 1.0 if it has a label inside block and 0.0 otherwise.
func blockTargets(examples []*example.Example, positives []int, block []int32) []float64 {
	targets := make([]float64, len(positives))
	for i, exIdx := range positives {
		if examples[exIdx].IntersectsAny(block) {
			targets[i] = 1.0
		}
	}
	return targets
}

// blockFeatures returns the feature vectors of the given positive
// example indices, parallel to blockTargets' output.
func blockFeatures(examples []*example.Example, positives []int) []*vector.Sparse {
	features := make([]*vector.Sparse, len(positives))
	for i, exIdx := range positives {
		features[i] = examples[exIdx].Features
	}
	return features
}

// attractedPositives filters positives down to the examples that
// actually carry a label inside block, the ground-truth set the
// block's subtree is recursively grown from.
func attractedPositives(examples []*example.Example, positives []int, block []int32) []int {
	var out []int
	for _, exIdx := range positives {
		if examples[exIdx].IntersectsAny(block) {
			out = append(out, exIdx)
		}
	}
	return out
}
