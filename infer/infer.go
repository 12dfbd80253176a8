/*
Package infer implements the batch inference engine of §4.4-4.5: a
best-first priority-queue traversal for PLT/HSM, sorted ranking for
BR/OVR, and predictForLabel for both tree variants.

The traversal uses container/heap rather than a third-party priority
queue: nothing in the retrieval pack demonstrates a concrete call
shape for a priority-queue library against which this could be
grounded, and a max-heap over a handful of fields is exactly what
container/heap exists for.
*/
package infer

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/pbanos/napkinxc/model"
	"github.com/pbanos/napkinxc/tree"
	"github.com/pbanos/napkinxc/vector"
)

// Prediction is one ranked label with its estimated probability
// (PLT/HSM) or raw relevance score (BR/OVR).
type Prediction struct {
	Label int32
	Value float64
}

type heapItem struct {
	node  int32
	value float64
}

type maxHeap []heapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].value > h[j].value }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK runs the best-first traversal of §4.4 against m (PLT or HSM),
// returning at most topK labels in descending probability order.
// Pushes whose accumulated value falls below threshold are pruned.
func TopK(m *model.Model, x *vector.Sparse, topK int, threshold float64) ([]Prediction, error) {
	if m.Tree == nil {
		return nil, fmt.Errorf("infer: TopK requires a tree-based model (PLT/HSM)")
	}
	rootBase := m.Bases[m.Tree.Root]
	rootValue := 1.0
	if rootBase != nil {
		rootValue = rootBase.PredictProbability(x)
	}
	h := &maxHeap{{node: m.Tree.Root, value: rootValue}}
	heap.Init(h)

	var results []Prediction
	for h.Len() > 0 && (topK <= 0 || len(results) < topK) {
		top := heap.Pop(h).(heapItem)
		if top.value < threshold {
			break
		}
		node := m.Tree.Node(top.node)
		if node.IsLeaf() {
			results = append(results, Prediction{Label: node.Label, Value: top.value})
			continue
		}
		switch m.Kind {
		case model.PLT:
			for _, c := range node.Children {
				b := m.Bases[c]
				p := 1.0
				if b != nil {
					p = b.PredictProbability(x)
				}
				v := top.value * p
				if v >= threshold {
					heap.Push(h, heapItem{node: c, value: v})
				}
			}
		case model.HSM:
			pushHSMChildren(h, m, node, x, top.value, threshold)
		default:
			return nil, fmt.Errorf("infer: TopK does not support model kind %s", m.Kind)
		}
	}
	return results, nil
}

func pushHSMChildren(h *maxHeap, m *model.Model, node *tree.Node, x *vector.Sparse, value, threshold float64) {
	children := node.Children
	if len(children) == 2 {
		b := m.Bases[children[0]]
		p := 0.5
		if b != nil {
			p = b.PredictProbability(x)
		}
		if v := value * p; v >= threshold {
			heap.Push(h, heapItem{node: children[0], value: v})
		}
		if v := value * (1 - p); v >= threshold {
			heap.Push(h, heapItem{node: children[1], value: v})
		}
		return
	}
	scores := make([]float64, len(children))
	maxScore := math.Inf(-1)
	for i, c := range children {
		b := m.Bases[c]
		if b != nil {
			scores[i] = b.PredictValue(x)
		}
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}
	var sum float64
	exp := make([]float64, len(children))
	for i, s := range scores {
		exp[i] = math.Exp(s - maxScore)
		sum += exp[i]
	}
	for i, c := range children {
		share := exp[i] / sum
		if v := value * share; v >= threshold {
			heap.Push(h, heapItem{node: c, value: v})
		}
	}
}

// PredictForLabel walks leaf to root for a single label, multiplying
// node probabilities (PLT) or computing the conditional softmax
// factor at each multi-ary parent (HSM), matching TopK's traversal
// semantics for one specific label instead of the full top-K set.
func PredictForLabel(m *model.Model, x *vector.Sparse, label int32) (float64, error) {
	if m.Tree == nil {
		return 0, fmt.Errorf("infer: PredictForLabel requires a tree-based model (PLT/HSM)")
	}
	path, err := m.Tree.PathToRoot(label)
	if err != nil {
		return 0, err
	}
	value := 1.0
	if rb := m.Bases[m.Tree.Root]; rb != nil {
		value = rb.PredictProbability(x)
	}
	// path is leaf-to-root; walk root-to-leaf (excluding the root
	// itself, already folded into value above).
	for i := len(path) - 2; i >= 0; i-- {
		n := path[i]
		node := m.Tree.Node(n)
		parent := m.Tree.Node(node.Parent)
		switch m.Kind {
		case model.PLT:
			b := m.Bases[n]
			p := 1.0
			if b != nil {
				p = b.PredictProbability(x)
			}
			value *= p
		case model.HSM:
			value *= hsmFactor(m, parent, n, x)
		}
	}
	return value, nil
}

func hsmFactor(m *model.Model, parent *tree.Node, n int32, x *vector.Sparse) float64 {
	children := parent.Children
	switch len(children) {
	case 1:
		return 1.0
	case 2:
		b := m.Bases[children[0]]
		p := 0.5
		if b != nil {
			p = b.PredictProbability(x)
		}
		if n == children[0] {
			return p
		}
		return 1 - p
	default:
		scores := make([]float64, len(children))
		maxScore := math.Inf(-1)
		for i, c := range children {
			if b := m.Bases[c]; b != nil {
				scores[i] = b.PredictValue(x)
			}
			if scores[i] > maxScore {
				maxScore = scores[i]
			}
		}
		var sum float64
		exp := make([]float64, len(children))
		for i, s := range scores {
			exp[i] = math.Exp(s - maxScore)
			sum += exp[i]
		}
		for i, c := range children {
			if c == n {
				return exp[i] / sum
			}
		}
		return 0
	}
}

// RankBR implements §4.5's BR/OVR inference: evaluate every base,
// sort descending, and cut by topK and/or threshold.
func RankBR(m *model.Model, x *vector.Sparse, topK int, threshold float64) []Prediction {
	results := make([]Prediction, 0, len(m.Bases))
	for label, b := range m.Bases {
		if b == nil {
			continue
		}
		p := b.PredictProbability(x)
		if p >= threshold {
			results = append(results, Prediction{Label: int32(label), Value: p})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Value > results[j].Value })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
