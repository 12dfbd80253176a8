/*
Package online implements OnlinePLT, the incremental tree-growth
variant of §4.6: update(example) grows the tree as new labels arrive
and updates base learners in place, guarded by the reader-writer lock
on tree shape described in §5. Unlike the batch Model in package
model, bases live at stable indices in a grow-only slice so concurrent
readers never see a torn tree while a writer expands it.
*/
package online

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/model"
	"github.com/pbanos/napkinxc/tree"
	"github.com/pbanos/napkinxc/vector"
)

// Descent selects the policy expandTree uses to choose which child to
// descend into while looking for an expandable node.
type Descent int

const (
	DescentRandom Descent = iota
	DescentBestScore
	DescentKMeans
)

type onlineNode struct {
	Label         int32
	Parent        int32
	Children      []int32
	SubtreeLeaves int32
}

// OnlinePLT is a growable probabilistic label tree. The zero value is
// not usable; construct with New.
type OnlinePLT struct {
	mu       sync.RWMutex
	nodes    []*onlineNode
	leaves   map[int32]int32
	root     int32
	bases    []base.Learner
	tmpBases []base.Learner

	centroidsMu sync.Mutex
	centroids   []*vector.Sparse
	norms       []float64

	factory   base.Factory
	bargs     base.Args
	arity     int
	maxLeaves int
	descent   Descent
	alfa      float64
	hash      int32

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New returns an empty OnlinePLT. arity bounds how many groups hang
// directly off the root; maxLeaves bounds direct children at an
// expandable node before it bottom-expands; alfa is the balance
// weight used by DescentBestScore; hash, if > 0, hashes feature
// indices modulo hash before the DescentKMeans cosine score.
func New(factory base.Factory, bargs base.Args, arity, maxLeaves int, descent Descent, alfa float64, hash int32, seed int64) *OnlinePLT {
	return &OnlinePLT{
		leaves:    make(map[int32]int32),
		root:      -1,
		factory:   factory,
		bargs:     bargs,
		arity:     arity,
		maxLeaves: maxLeaves,
		descent:   descent,
		alfa:      alfa,
		hash:      hash,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// NumNodes returns the current node count.
func (o *OnlinePLT) NumNodes() int32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return int32(len(o.nodes))
}

// LeafForLabel returns the leaf node index for label l.
func (o *OnlinePLT) LeafForLabel(l int32) (int32, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	idx, ok := o.leaves[l]
	return idx, ok
}

// addNode appends a node and returns its index. Caller must hold the
// write lock.
func (o *OnlinePLT) addNode(label, parent int32) int32 {
	idx := int32(len(o.nodes))
	o.nodes = append(o.nodes, &onlineNode{Label: label, Parent: parent})
	o.bases = append(o.bases, nil)
	o.tmpBases = append(o.tmpBases, nil)
	o.centroids = append(o.centroids, nil)
	o.norms = append(o.norms, 0)
	if parent >= 0 {
		o.nodes[parent].Children = append(o.nodes[parent].Children, idx)
	}
	if label >= 0 {
		o.leaves[label] = idx
	}
	return idx
}

// bumpSubtreeLeaves increments SubtreeLeaves by delta on node and
// every ancestor up to the root. Caller must hold the write lock.
func (o *OnlinePLT) bumpSubtreeLeaves(node int32, delta int32) {
	for node >= 0 {
		o.nodes[node].SubtreeLeaves += delta
		node = o.nodes[node].Parent
	}
}

// Update implements §4.6: discover new labels, expand the tree if
// needed, then update every node base and temp base the PLT rule
// touches for this example.
func (o *OnlinePLT) Update(e *example.Example) error {
	newLabels := o.discoverNewLabels(e.Labels)
	if len(newLabels) > 0 {
		o.mu.Lock()
		// Re-check under the write lock: another writer may have
		// already expanded for these labels.
		stillNew := o.discoverNewLabelsLocked(newLabels)
		if len(stillNew) > 0 {
			if err := o.expandTree(stillNew, e.Features); err != nil {
				o.mu.Unlock()
				return err
			}
		}
		o.mu.Unlock()
	}

	o.mu.RLock()
	positives, negatives, err := o.pltAssignment(e.Labels)
	o.mu.RUnlock()
	if err != nil {
		return err
	}

	o.mu.Lock()
	for _, n := range positives {
		if b := o.bases[n]; b != nil {
			b.Update(1.0, e.Features, o.bargs)
		}
		if tb := o.tmpBases[n]; tb != nil {
			tb.Update(0.0, e.Features, o.bargs)
		}
	}
	for _, n := range negatives {
		if b := o.bases[n]; b != nil {
			b.Update(0.0, e.Features, o.bargs)
		}
	}
	o.mu.Unlock()

	if o.descent == DescentKMeans {
		o.centroidsMu.Lock()
		for _, n := range positives {
			o.addToCentroid(n, e.Features)
		}
		o.centroidsMu.Unlock()
	}
	return nil
}

func (o *OnlinePLT) discoverNewLabels(labels []int32) []int32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.discoverNewLabelsLocked(labels)
}

func (o *OnlinePLT) discoverNewLabelsLocked(labels []int32) []int32 {
	var out []int32
	for _, l := range labels {
		if _, ok := o.leaves[l]; !ok {
			out = append(out, l)
		}
	}
	return out
}

// pltAssignment computes the PLT positives/negatives for a single
// example against the current tree shape, mirroring assign.PLT but
// over the mutable onlineNode representation. Caller must hold at
// least a read lock.
func (o *OnlinePLT) pltAssignment(labels []int32) (positives, negatives []int32, err error) {
	if o.root < 0 {
		return nil, nil, fmt.Errorf("online: tree is empty")
	}
	if len(labels) == 0 {
		return nil, []int32{o.root}, nil
	}
	positiveSet := make(map[int32]bool)
	for _, l := range labels {
		n, ok := o.leaves[l]
		if !ok {
			return nil, nil, fmt.Errorf("online: no leaf for label %d", l)
		}
		for n >= 0 {
			positiveSet[n] = true
			n = o.nodes[n].Parent
		}
	}
	positives = append(positives, o.root)
	queue := []int32{o.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range o.nodes[n].Children {
			if positiveSet[c] {
				positives = append(positives, c)
				queue = append(queue, c)
			} else {
				negatives = append(negatives, c)
			}
		}
	}
	return positives, negatives, nil
}

// expandTree implements §4.6's expandTree. Caller must hold the write
// lock.
func (o *OnlinePLT) expandTree(newLabels []int32, features *vector.Sparse) error {
	if o.root < 0 {
		root := o.addNode(-1, -1)
		o.root = root
		o.bases[root] = o.factory()
		return o.expandTree(newLabels, features)
	}

	if len(o.nodes[o.root].Children) < o.arity {
		group := o.addNode(-1, o.root)
		o.bases[group] = o.factory()
		o.tmpBases[group] = o.factory()
		for _, l := range newLabels {
			leaf := o.addNode(l, group)
			o.bases[leaf] = o.factory()
		}
		o.bumpSubtreeLeaves(group, int32(len(newLabels)))
		o.maybeRetireTmpBase(group)
		return nil
	}

	e := o.findExpandableNode(features)
	if e < 0 {
		return fmt.Errorf("online: no expandable node found")
	}
	for _, l := range newLabels {
		if err := o.attachLabel(e, l); err != nil {
			return err
		}
	}
	return nil
}

// findExpandableNode descends from the root per the configured
// descent policy, stopping at the first chosen child that carries a
// temp base. Children without one are still descended through; if
// the walk reaches a leaf, that leaf's parent is returned even when
// its temp base has retired, and attachLabel then grows it from its
// trained base (see expandSource).
func (o *OnlinePLT) findExpandableNode(features *vector.Sparse) int32 {
	cur := o.root
	for {
		node := o.nodes[cur]
		if len(node.Children) == 0 {
			return node.Parent
		}
		next := o.chooseChild(cur, node.Children, features)
		if o.tmpBases[next] != nil {
			return next
		}
		cur = next
	}
}

func (o *OnlinePLT) chooseChild(parent int32, children []int32, features *vector.Sparse) int32 {
	switch o.descent {
	case DescentRandom:
		o.rngMu.Lock()
		i := o.rng.Intn(len(children))
		o.rngMu.Unlock()
		return children[i]
	case DescentKMeans:
		return o.argmaxChild(parent, children, func(c int32) float64 {
			score := o.centroidCosine(c, features)
			return 1.0 / (1.0 + math.Exp(score))
		})
	default: // DescentBestScore
		return o.argmaxChild(parent, children, func(c int32) float64 {
			p := 1.0
			if b := o.bases[c]; b != nil {
				p = b.PredictProbability(features)
			}
			return p
		})
	}
}

// argmaxChild scores every child with scoreFn and picks the one
// maximizing (1-alfa)*score + alfa*log(balance), the DescentBestScore
// formula of §4.6 generalized to also cover DescentKMeans, whose
// scoreFn substitutes a centroid-cosine term for P(child|x).
func (o *OnlinePLT) argmaxChild(parent int32, children []int32, scoreFn func(int32) float64) int32 {
	parentLeaves := o.nodes[parent].SubtreeLeaves
	best := children[0]
	bestVal := math.Inf(-1)
	for _, c := range children {
		s := scoreFn(c)
		childLeaves := o.nodes[c].SubtreeLeaves
		balance := 1.0
		if childLeaves > 0 {
			balance = (float64(parentLeaves) / float64(len(children))) / float64(childLeaves)
		}
		val := (1-o.alfa)*s + o.alfa*math.Log(balance+1e-12)
		if val > bestVal {
			bestVal = val
			best = c
		}
	}
	return best
}

// attachLabel places a single new label under expandable node e,
// following the direct-leaf / sibling / bottom-expand cascade of
// §4.6, and retires e's temp base once it reaches maxLeaves children,
// its actual capacity ceiling (arity only bounds how many groups hang
// directly off the root, not how many leaves a group can carry).
func (o *OnlinePLT) attachLabel(e int32, label int32) error {
	node := o.nodes[e]
	src := o.expandSource(e)
	if len(node.Children) < o.maxLeaves {
		leaf := o.addNode(label, e)
		o.bases[leaf] = src.Copy()
		o.bumpSubtreeLeaves(e, 1)
		o.maybeRetireTmpBase(e)
		return nil
	}

	if parent := node.Parent; parent >= 0 {
		for _, sib := range o.nodes[parent].Children {
			if sib == e || o.tmpBases[sib] == nil {
				continue
			}
			if len(o.nodes[sib].Children) < o.maxLeaves {
				return o.attachLabel(sib, label)
			}
		}
	}

	// Bottom-expand: push e's current children under a fresh
	// intermediate node, initialized as e's logical complement, and
	// add the new label as a fresh sibling branch.
	intermediate := o.addNode(-1, e)
	o.bases[intermediate] = src.CopyInverted()
	o.tmpBases[intermediate] = src.Copy()
	oldChildren := node.Children
	node.Children = []int32{intermediate}
	o.nodes[intermediate].Children = oldChildren
	for _, c := range oldChildren {
		o.nodes[c].Parent = intermediate
	}
	o.nodes[intermediate].SubtreeLeaves = node.SubtreeLeaves

	leaf := o.addNode(label, e)
	o.bases[leaf] = src.Copy()
	o.bumpSubtreeLeaves(e, 1)
	o.maybeRetireTmpBase(e)
	return nil
}

// expandSource returns the classifier attachLabel should Copy/CopyInverted
// from when growing node e: normally its temp base, or its trained base as
// a fallback if the temp base already retired before e was selected again.
func (o *OnlinePLT) expandSource(e int32) base.Learner {
	if tb := o.tmpBases[e]; tb != nil {
		return tb
	}
	return o.bases[e]
}

func (o *OnlinePLT) maybeRetireTmpBase(e int32) {
	if len(o.nodes[e].Children) >= o.maxLeaves {
		o.tmpBases[e] = nil
	}
}

// addToCentroid accumulates features into node's centroid and
// refreshes its L2 norm. Caller must hold centroidsMu.
func (o *OnlinePLT) addToCentroid(node int32, features *vector.Sparse) {
	f := features
	if o.hash > 0 {
		f = vector.Hashed(f, o.hash)
	}
	acc := make(map[int32]float64)
	if c := o.centroids[node]; c != nil {
		vector.Add(acc, c)
	}
	vector.Add(acc, f)
	merged := vector.FromDense(acc)
	o.centroids[node] = merged
	o.norms[node] = vector.Norm(merged)
}

// centroidCosine returns the cosine similarity between features and
// node's centroid, or 0 if the centroid has not been materialized yet
// (per §4.6's open question, an empty centroid always scores 0, so
// the descent formula's sigmoid falls back to its 0.5 baseline).
func (o *OnlinePLT) centroidCosine(node int32, features *vector.Sparse) float64 {
	o.centroidsMu.Lock()
	c := o.centroids[node]
	o.centroidsMu.Unlock()
	if c == nil {
		return 0
	}
	f := features
	if o.hash > 0 {
		f = vector.Hashed(f, o.hash)
	}
	return vector.Cosine(f, c)
}

// NodeRecord is the exported, encodable view of a tree node shared
// across processes through a Store (e.g. package online/redisstore).
// It carries shape only; base learners stay process-local.
type NodeRecord struct {
	Index         int32
	Label         int32
	Parent        int32
	Children      []int32
	SubtreeLeaves int32
}

// Store lets OnlinePLT's tree shape be replicated to a shared backend
// so several training processes can grow the same tree. Grounded on
// pbanos-botanic's tree.NodeStore (tree/redisstore), adapted from
// string-ID nodes to this package's int32 node indices.
type Store interface {
	Create(ctx context.Context, n NodeRecord) error
	Get(ctx context.Context, index int32) (*NodeRecord, error)
	Store(ctx context.Context, n NodeRecord) error
	Delete(ctx context.Context, index int32) error
	Close(ctx context.Context) error
}

// Snapshot returns the current tree shape as NodeRecords, suitable for
// replicating to a Store.
func (o *OnlinePLT) Snapshot() []NodeRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]NodeRecord, len(o.nodes))
	for i, n := range o.nodes {
		children := make([]int32, len(n.Children))
		copy(children, n.Children)
		out[i] = NodeRecord{Index: int32(i), Label: n.Label, Parent: n.Parent, Children: children, SubtreeLeaves: n.SubtreeLeaves}
	}
	return out
}

// ToModel exports the current tree shape and bases as a *model.Model,
// so infer.TopK can query a growing OnlinePLT the same way it queries
// a batch-trained PLT. The tree shape is copied, so later growth on o
// is not reflected in it; the base learners themselves are shared
// with o, so later updates to existing bases are.
func (o *OnlinePLT) ToModel() *model.Model {
	o.mu.RLock()
	defer o.mu.RUnlock()

	nodes := make([]*tree.Node, len(o.nodes))
	leaves := make(map[int32]int32, len(o.leaves))
	for i, n := range o.nodes {
		children := make([]int32, len(n.Children))
		copy(children, n.Children)
		nodes[i] = &tree.Node{Index: int32(i), Label: n.Label, Parent: n.Parent, Children: children}
	}
	for l, idx := range o.leaves {
		leaves[l] = idx
	}
	t := &tree.Tree{Nodes: nodes, Root: o.root, Leaves: leaves, K: int32(len(leaves))}

	bases := make([]base.Learner, len(o.bases))
	copy(bases, o.bases)

	return &model.Model{Kind: model.PLT, Tree: t, K: t.K, Bases: bases}
}

// SyncTo pushes every node in the current snapshot to store, creating
// nodes the store has not seen and overwriting ones it has. Call after
// Update to publish tree growth to other processes sharing store.
func (o *OnlinePLT) SyncTo(ctx context.Context, store Store) error {
	for _, rec := range o.Snapshot() {
		existing, err := store.Get(ctx, rec.Index)
		if err != nil {
			return fmt.Errorf("online: syncing node %d: %w", rec.Index, err)
		}
		if existing == nil {
			if err := store.Create(ctx, rec); err != nil {
				return fmt.Errorf("online: creating node %d: %w", rec.Index, err)
			}
			continue
		}
		if err := store.Store(ctx, rec); err != nil {
			return fmt.Errorf("online: updating node %d: %w", rec.Index, err)
		}
	}
	return nil
}

// Save persists the current tree shape and every node's base learner
// as one stream: the node count and root, then each node's label,
// parent, children and subtree leaf count, then for each node an int32
// presence flag followed by the base when the flag is 1. Nodes without
// a committed base are saved with flag 0 and stay nil after Load.
// Temp bases and centroids are not saved.
func (o *OnlinePLT) Save(w io.Writer) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, int32(len(o.nodes))); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, o.root); err != nil {
		return err
	}
	for _, n := range o.nodes {
		if err := binary.Write(bw, binary.LittleEndian, n.Label); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, n.Parent); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(len(n.Children))); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := binary.Write(bw, binary.LittleEndian, c); err != nil {
				return err
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, n.SubtreeLeaves); err != nil {
			return err
		}
	}
	for i, b := range o.bases {
		if b == nil {
			if err := binary.Write(bw, binary.LittleEndian, int32(0)); err != nil {
				return err
			}
			continue
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(1)); err != nil {
			return err
		}
		if err := b.Save(bw); err != nil {
			return fmt.Errorf("online: saving base for node %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// Load reads a tree previously written by Save into a freshly
// constructed OnlinePLT (built via New with the same arguments used
// for training), restoring its shape, leaf index and bases so Update
// calls can resume growing it.
func Load(r io.Reader, factory base.Factory, bargs base.Args, arity, maxLeaves int, descent Descent, alfa float64, hash int32, seed int64) (*OnlinePLT, error) {
	o := New(factory, bargs, arity, maxLeaves, descent, alfa, hash, seed)
	br := bufio.NewReader(r)
	var n int32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("online: reading node count: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &o.root); err != nil {
		return nil, fmt.Errorf("online: reading root: %w", err)
	}
	o.nodes = make([]*onlineNode, n)
	for i := int32(0); i < n; i++ {
		node := &onlineNode{}
		if err := binary.Read(br, binary.LittleEndian, &node.Label); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &node.Parent); err != nil {
			return nil, err
		}
		var numChildren int32
		if err := binary.Read(br, binary.LittleEndian, &numChildren); err != nil {
			return nil, err
		}
		node.Children = make([]int32, numChildren)
		for j := range node.Children {
			if err := binary.Read(br, binary.LittleEndian, &node.Children[j]); err != nil {
				return nil, err
			}
		}
		if err := binary.Read(br, binary.LittleEndian, &node.SubtreeLeaves); err != nil {
			return nil, err
		}
		o.nodes[i] = node
		if node.Label >= 0 {
			o.leaves[node.Label] = i
		}
	}
	o.bases = make([]base.Learner, n)
	o.tmpBases = make([]base.Learner, n)
	o.centroids = make([]*vector.Sparse, n)
	o.norms = make([]float64, n)
	for i := int32(0); i < n; i++ {
		var present int32
		if err := binary.Read(br, binary.LittleEndian, &present); err != nil {
			return nil, fmt.Errorf("online: reading base presence for node %d: %w", i, err)
		}
		if present == 0 {
			continue
		}
		b := factory()
		if err := b.Load(br); err != nil {
			return nil, fmt.Errorf("online: loading base for node %d: %w", i, err)
		}
		o.bases[i] = b
	}
	return o, nil
}
