/*
Package plg implements the Probabilistic Label Graph variant of §3,
§4.5 and §6: a fixed-width, hash-routed layered DAG replacing the
label tree. Every label is routed, independently at each layer, to one
of `layerSize` nodes via a universal hash; a classifier sits on every
node of layer 0 and on every edge between consecutive layers, so the
total base count (layerSize + layerSize²·(L-1)) never grows with the
label count k the way a tree's node count does.
*/
package plg

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/trainpool"
	"github.com/pbanos/napkinxc/vector"
)

// Hash is a universal hash triple defining h(l) = ((a*l+b) mod p) mod
// layerSize, with p prime and p > layerSize.
type Hash struct {
	A, B, P uint32
}

// Node returns h(l) for label l, in [0, layerSize).
func (h Hash) Node(label int32, layerSize int32) int32 {
	v := (uint64(h.A)*uint64(uint32(label)) + uint64(h.B)) % uint64(h.P)
	return int32(v % uint64(layerSize))
}

// Graph is the PLG model: a sequence of layer hashes, a fixed layer
// width and one base per layer-0 node plus one per edge between
// consecutive layers.
type Graph struct {
	Hashes    []Hash
	LayerSize int32
	Bases     []base.Learner
}

// New allocates an untrained Graph with the given hashes and layer
// width; callers populate Bases via Train.
func New(hashes []Hash, layerSize int32) *Graph {
	return &Graph{Hashes: hashes, LayerSize: layerSize, Bases: make([]base.Learner, TotalBases(len(hashes), layerSize))}
}

// TotalBases returns layerSize + layerSize²·(L-1), the fixed base
// count of a graph with L layers and the given layer width.
func TotalBases(layerCount int, layerSize int32) int {
	if layerCount == 0 {
		return 0
	}
	return int(layerSize) + (layerCount-1)*int(layerSize)*int(layerSize)
}

func (g *Graph) layer0Index(node int32) int {
	return int(node)
}

func (g *Graph) edgeIndex(transition int, from, to int32) int {
	return int(g.LayerSize) + transition*int(g.LayerSize)*int(g.LayerSize) + int(from)*int(g.LayerSize) + int(to)
}

// PathNodes returns the layer-node index for label l at each of the L
// layers.
func (g *Graph) PathNodes(label int32) []int32 {
	nodes := make([]int32, len(g.Hashes))
	for i, h := range g.Hashes {
		nodes[i] = h.Node(label, g.LayerSize)
	}
	return nodes
}

// PathBases returns the indices, in order, of every base on label l's
// path: the layer-0 node base followed by one edge base per layer
// transition.
func (g *Graph) PathBases(label int32) []int {
	nodes := g.PathNodes(label)
	indices := make([]int, 0, len(nodes))
	indices = append(indices, g.layer0Index(nodes[0]))
	for i := 1; i < len(nodes); i++ {
		indices = append(indices, g.edgeIndex(i-1, nodes[i-1], nodes[i]))
	}
	return indices
}

// Train builds the dense per-base training assignment and trains
// every base through pool. Every example with at least one label
// contributes exactly one training row to every base (examples with
// no labels are skipped): 1.0 if that base lies on the path of
// one of the example's labels, 0.0 otherwise, matching the graph's
// fixed per-layer width (layerSize is a config constant, not a
// function of k, so this stays bounded regardless of label count).
func Train(g *Graph, examples []*example.Example, pool *trainpool.Pool) error {
	total := len(g.Bases)
	targets := make([][]float64, total)
	features := make([][]*vector.Sparse, total)

	for _, e := range examples {
		if len(e.Labels) == 0 {
			continue
		}
		positive := make(map[int]bool)
		for _, l := range e.Labels {
			for _, b := range g.PathBases(l) {
				positive[b] = true
			}
		}
		for i := 0; i < total; i++ {
			t := 0.0
			if positive[i] {
				t = 1.0
			}
			targets[i] = append(targets[i], t)
			features[i] = append(features[i], e.Features)
		}
	}

	jobs := make([]trainpool.Job, 0, total)
	for i := 0; i < total; i++ {
		if len(targets[i]) == 0 {
			continue
		}
		jobs = append(jobs, trainpool.Job{Index: i, Targets: targets[i], Features: features[i]})
	}
	trained, err := pool.Train(jobs)
	if err != nil {
		return fmt.Errorf("training PLG graph: %w", err)
	}
	for i, b := range trained {
		if b != nil {
			g.Bases[i] = b
		}
	}
	return nil
}

// Score is a brute-force §4.5 inference pass: initialize every
// label's score to 1 and multiply in P(base|x) for every base on its
// path, caching each evaluated base's probability so labels that
// collide on a hash bucket do not re-evaluate it.
func Score(g *Graph, x *vector.Sparse, labels []int32) map[int32]float64 {
	cache := make(map[int]float64)
	prob := func(i int) float64 {
		if v, ok := cache[i]; ok {
			return v
		}
		p := 1.0
		if b := g.Bases[i]; b != nil {
			p = b.PredictProbability(x)
		}
		cache[i] = p
		return p
	}

	scores := make(map[int32]float64, len(labels))
	for _, l := range labels {
		score := 1.0
		for _, b := range g.PathBases(l) {
			score *= prob(b)
		}
		scores[l] = score
	}
	return scores
}

// TopK scores every label in candidateLabels and returns at most topK
// of them in descending order, matching BR's sort-and-cut ranking.
func TopK(g *Graph, x *vector.Sparse, candidateLabels []int32, topK int, threshold float64) []Prediction {
	scores := Score(g, x, candidateLabels)
	results := make([]Prediction, 0, len(scores))
	for l, s := range scores {
		if s >= threshold {
			results = append(results, Prediction{Label: l, Value: s})
		}
	}
	sortDescending(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Prediction is one ranked label with its graph score.
type Prediction struct {
	Label int32
	Value float64
}

func sortDescending(p []Prediction) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j].Value > p[j-1].Value; j-- {
			p[j], p[j-1] = p[j-1], p[j]
		}
	}
}

// Save writes the graph.bin layout of §6: m (base count), layerCount,
// layerSize, then layerCount (a,b,p) triples.
func (g *Graph) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, int32(len(g.Bases))); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, int32(len(g.Hashes))); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, g.LayerSize); err != nil {
		return err
	}
	for _, h := range g.Hashes {
		if err := binary.Write(bw, binary.LittleEndian, h.A); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, h.B); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, h.P); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads the graph.bin shape (hashes only; Bases are populated
// separately from weights.bin, exactly as model.Load does for
// PLT/HSM/BR).
func Load(r io.Reader) (*Graph, error) {
	var m, layerCount int32
	var layerSize int32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return nil, fmt.Errorf("loading graph: reading base count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &layerCount); err != nil {
		return nil, fmt.Errorf("loading graph: reading layer count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &layerSize); err != nil {
		return nil, fmt.Errorf("loading graph: reading layer size: %w", err)
	}
	hashes := make([]Hash, layerCount)
	for i := range hashes {
		if err := binary.Read(r, binary.LittleEndian, &hashes[i].A); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &hashes[i].B); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &hashes[i].P); err != nil {
			return nil, err
		}
	}
	g := &Graph{Hashes: hashes, LayerSize: layerSize, Bases: make([]base.Learner, m)}
	return g, nil
}

// NextPrime returns the smallest prime strictly greater than n,
// used to pick a valid p > layerSize for a freshly generated Hash.
func NextPrime(n uint32) uint32 {
	candidate := n + 1
	for !isPrime(candidate) {
		candidate++
	}
	return candidate
}

func isPrime(n uint32) bool {
	if n < 2 {
		return false
	}
	for i := uint32(2); uint64(i)*uint64(i) <= uint64(n); i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}
