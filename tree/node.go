/*
Package tree implements the label hierarchy of §4: an array of Node
records with contiguous 0..T-1 indices, a single root, and a label
carried only by leaves. The six build strategies of §4.1 (complete,
balanced, huffman, hierarchicalKMeans, randomProjectionKMeans and
topDown) all produce the same Tree shape so the rest of the pipeline
(assign, model, infer, online) never needs to know which one built it.

The array-of-structs layout, parent/children indices instead of
pointers, and the breadth-first index assignment that keeps siblings
contiguous follow pbanos/botanic's tree.Node, whose nodes are also
addressed by a stable identifier into a flat store rather than by
pointer, adapted here to plain integer indices since the hierarchy is
never distributed across a NodeStore the way botanic's growing
decision trees are.
*/
package tree

import "fmt"

// Node is one vertex of the hierarchy. Label is -1 for internal nodes.
// Parent is -1 only for the root.
type Node struct {
	Index    int32
	Label    int32
	Parent   int32
	Children []int32
}

// IsLeaf reports whether n carries a label.
func (n *Node) IsLeaf() bool {
	return n.Label >= 0
}

// Tree is an immutable, array-indexed label hierarchy built by one of
// the New* constructors. Index i always refers to Nodes[i]; the slice
// is never reordered after construction.
type Tree struct {
	Nodes  []*Node
	Root   int32
	Leaves map[int32]int32 // label -> node index
	K      int32           // number of labels
}

// newTree allocates an empty Tree over k labels.
func newTree(k int32) *Tree {
	return &Tree{Leaves: make(map[int32]int32, k), K: k}
}

// addNode appends a node with the given label (-1 if internal) and
// parent, assigning it the next contiguous index.
func (t *Tree) addNode(label, parent int32) int32 {
	idx := int32(len(t.Nodes))
	n := &Node{Index: idx, Label: label, Parent: parent}
	t.Nodes = append(t.Nodes, n)
	if parent >= 0 {
		t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
	}
	if label >= 0 {
		t.Leaves[label] = idx
	}
	return idx
}

// NumNodes returns T, the total node count (internal + leaves).
func (t *Tree) NumNodes() int32 {
	return int32(len(t.Nodes))
}

// Node returns the node at index i.
func (t *Tree) Node(i int32) *Node {
	return t.Nodes[i]
}

// LeafForLabel returns the leaf node index carrying label l.
func (t *Tree) LeafForLabel(l int32) (int32, bool) {
	idx, ok := t.Leaves[l]
	return idx, ok
}

// PathToRoot returns the node indices from the leaf for label l up to
// and including the root, in leaf-to-root order.
func (t *Tree) PathToRoot(l int32) ([]int32, error) {
	idx, ok := t.Leaves[l]
	if !ok {
		return nil, fmt.Errorf("tree: no leaf for label %d", l)
	}
	var path []int32
	for idx >= 0 {
		path = append(path, idx)
		idx = t.Nodes[idx].Parent
	}
	return path, nil
}

// Validate checks the invariants §4 assumes downstream: contiguous
// 0..T-1 indices, exactly one root, and every leaf labeled 0..K-1
// exactly once. Parent index is not required to precede child index:
// the huffman strategy merges already-materialized subtrees under a
// freshly created parent, which can carry a larger index than the
// children it wraps.
func (t *Tree) Validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree: empty")
	}
	if t.Root < 0 || int(t.Root) >= len(t.Nodes) {
		return fmt.Errorf("tree: root index %d out of range", t.Root)
	}
	if t.Nodes[t.Root].Parent != -1 {
		return fmt.Errorf("tree: root has non-nil parent")
	}
	seen := make(map[int32]bool, t.K)
	for i, n := range t.Nodes {
		if n.Index != int32(i) {
			return fmt.Errorf("tree: node at slot %d has index %d", i, n.Index)
		}
		if n.IsLeaf() {
			if seen[n.Label] {
				return fmt.Errorf("tree: label %d assigned to more than one leaf", n.Label)
			}
			seen[n.Label] = true
		}
	}
	if int32(len(seen)) != t.K {
		return fmt.Errorf("tree: expected %d leaves, found %d", t.K, len(seen))
	}
	return nil
}
