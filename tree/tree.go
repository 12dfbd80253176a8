package tree

import (
	"math/rand"
	"sort"
)

// BuildComplete builds the "complete" strategy of §4.1: a perfectly
// regular arity-ary tree where every internal node has exactly arity
// children (the last one possibly partially filled), labels assigned
// to leaves left to right. If shuffle is true the label order is
// permuted first using seed, matching the "random leaf order" option.
func BuildComplete(k int32, arity int, shuffle bool, seed int64) *Tree {
	labels := make([]int32, k)
	for i := range labels {
		labels[i] = int32(i)
	}
	if shuffle {
		rand.New(rand.NewSource(seed)).Shuffle(len(labels), func(i, j int) {
			labels[i], labels[j] = labels[j], labels[i]
		})
	}
	if arity < 2 || k < 2 {
		return buildRegular(labels, arity)
	}
	a := int32(arity)
	total := (a*k + a - 3) / (a - 1) // ceil((a*k-1)/(a-1)); the last k nodes are the leaves
	t := newTree(k)
	for i := int32(0); i < total; i++ {
		parent, label := int32(-1), int32(-1)
		if i > 0 {
			parent = (i - 1) / a
		}
		if i >= total-k {
			label = labels[i-(total-k)]
		}
		t.addNode(label, parent)
	}
	return t
}

// BuildBalanced builds the "balanced" strategy: the label list is
// split recursively into up to arity contiguous, near-equal-size
// blocks until each block holds a single label, so sibling leaves
// always carry adjacent entries of labels. This is the split rule
// BuildTopDown also uses for partitioning a label set that has no
// natural similarity ordering.
func BuildBalanced(labels []int32, arity int) *Tree {
	return buildRegular(labels, arity)
}

// buildRegular grows a tree top-down by repeatedly splitting the
// current label set into up to `arity` contiguous blocks until each
// block has a single label, which becomes a leaf. This mirrors the
// breadth-first "create all children of the current level before
// recursing" index assignment pbanos/botanic's grow command uses so
// sibling nodes always get contiguous indices.
func buildRegular(labels []int32, arity int) *Tree {
	k := int32(len(labels))
	t := newTree(k)
	root := t.addNode(-1, -1)
	t.Root = root

	type job struct {
		node   int32
		labels []int32
	}
	queue := []job{{root, labels}}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		if len(j.labels) == 1 {
			t.promoteToLeaf(j.node, j.labels[0])
			continue
		}
		blocks := splitBlocks(j.labels, arity)
		for _, block := range blocks {
			if len(block) == 0 {
				continue
			}
			if len(block) == 1 {
				child := t.addNode(block[0], j.node)
				_ = child
				continue
			}
			child := t.addNode(-1, j.node)
			queue = append(queue, job{child, block})
		}
	}
	return t
}

// promoteToLeaf relabels a just-created internal node as the leaf for
// label l, used when a root-only tree collapses to a single leaf.
func (t *Tree) promoteToLeaf(idx, label int32) {
	n := t.Nodes[idx]
	n.Label = label
	t.Leaves[label] = idx
}

// splitBlocks partitions labels into up to arity contiguous,
// near-equal-size blocks.
func splitBlocks(labels []int32, arity int) [][]int32 {
	if arity < 2 {
		arity = 2
	}
	n := len(labels)
	if n < arity {
		arity = n
	}
	blocks := make([][]int32, arity)
	base := n / arity
	rem := n % arity
	pos := 0
	for i := 0; i < arity; i++ {
		size := base
		if i < rem {
			size++
		}
		blocks[i] = labels[pos : pos+size]
		pos += size
	}
	return blocks
}

// BuildHuffman builds the frequency-weighted Huffman strategy of
// §4.1: labels with higher training frequency end up closer to the
// root (shorter root-to-leaf path), minimizing the expected number of
// node classifier evaluations at inference time. freq must contain an
// entry for every label 0..k-1.
func BuildHuffman(k int32, freq map[int32]int64, arity int) *Tree {
	if arity < 2 {
		arity = 2
	}
	t := newTree(k)

	items := make([]huffmanItem, 0, k)
	for l := int32(0); l < k; l++ {
		items = append(items, huffmanItem{weight: freq[l], node: -1, label: l})
	}

	pop := func(n int) []huffmanItem {
		sort.Slice(items, func(i, j int) bool { return items[i].weight < items[j].weight })
		if n > len(items) {
			n = len(items)
		}
		taken := items[:n]
		items = items[n:]
		return taken
	}
	for len(items) > 1 {
		group := pop(arity)
		var weight int64
		for _, it := range group {
			weight += it.weight
		}
		parent := t.addNode(-1, -1) // parent linkage fixed up below
		parentNode := t.Nodes[parent]
		parentNode.Parent = -1
		for _, it := range group {
			child := materializeUnder(t, it, parent)
			parentNode.Children = append(parentNode.Children, child)
		}
		items = append(items, huffmanItem{weight: weight, node: parent})
	}
	t.Root = items[0].node
	if t.Root < 0 {
		// Degenerate: a single label with no merges performed.
		t.Root = materializeUnder(t, items[0], -1)
	}
	fixParents(t, t.Root, -1)
	return t
}

// huffmanItem is either a raw label awaiting its leaf (node == -1) or
// an already-materialized subtree root carrying the summed weight of
// everything merged into it so far.
type huffmanItem struct {
	weight int64
	node   int32
	label  int32
}

// materializeUnder returns the node index for a huffmanItem without
// linking it to its final parent: leaf nodes are created with parent
// -1 and already-materialized subtrees keep whatever parent they had,
// since the caller appends the returned index to the real parent's
// Children itself and fixParents fixes every Parent pointer in one
// pass once the full tree shape is known.
func materializeUnder(t *Tree, it huffmanItem, parent int32) int32 {
	if it.node >= 0 {
		return it.node
	}
	return t.addNode(it.label, -1)
}

// fixParents walks the tree fixing up Parent pointers after Huffman
// merges, whose intermediate internal nodes are created before their
// final parent is known.
func fixParents(t *Tree, node, parent int32) {
	t.Nodes[node].Parent = parent
	for _, c := range t.Nodes[node].Children {
		fixParents(t, c, node)
	}
}
