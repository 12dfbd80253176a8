/*
Package linear is the default base.Learner: an L1/L2-regularized
logistic regression trained by per-feature AdaGrad or plain SGD, the
learner the spec names as the reference training algorithm for every
tree node ("logistic regression / linear SVM ... SGD or AdaGrad").

Weights are stored sparsely (map[int32]float64) since most nodes only
ever see a small, node-specific slice of the overall feature space.
*/
package linear

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/vector"
)

// Classifier is a logistic regression classifier y = sigmoid(w . x + b).
type Classifier struct {
	weights map[int32]float64
	bias    float64
	g2      map[int32]float64 // AdaGrad per-feature squared gradient accumulator
	gBias2  float64
}

// New returns an untrained Classifier. Use it as a base.Factory:
//
//	var f base.Factory = func() base.Learner { return linear.New() }
func New() *Classifier {
	return &Classifier{weights: make(map[int32]float64), g2: make(map[int32]float64)}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func (c *Classifier) score(x *vector.Sparse) float64 {
	s := c.bias
	for i, ix := range x.Indices {
		s += c.weights[ix] * x.Values[i]
	}
	return s
}

// Train fits the classifier from scratch, running args.Epochs passes
// of (AdaGrad or plain) SGD over the provided examples in order.
func (c *Classifier) Train(targets []float64, features []*vector.Sparse, weights []float64, args base.Args) error {
	if len(targets) != len(features) {
		return fmt.Errorf("linear: targets/features length mismatch: %d != %d", len(targets), len(features))
	}
	if weights != nil && len(weights) != len(targets) {
		return fmt.Errorf("linear: weights length mismatch: %d != %d", len(weights), len(targets))
	}
	c.weights = make(map[int32]float64)
	c.g2 = make(map[int32]float64)
	c.bias = 0
	c.gBias2 = 0
	epochs := args.Epochs
	if epochs < 1 {
		epochs = 1
	}
	for e := 0; e < epochs; e++ {
		for i, x := range features {
			w := 1.0
			if weights != nil {
				w = weights[i]
			}
			c.step(targets[i], x, w, args)
		}
	}
	return nil
}

// Update performs a single AdaGrad/SGD step toward target for one example.
func (c *Classifier) Update(target float64, features *vector.Sparse, args base.Args) error {
	c.step(target, features, 1.0, args)
	return nil
}

func (c *Classifier) step(target float64, x *vector.Sparse, sampleWeight float64, args base.Args) {
	pred := sigmoid(c.score(x))
	grad := sampleWeight * (pred - target)
	eta := args.Eta
	if eta == 0 {
		eta = 1.0
	}
	useAdaGrad := args.Optimizer != "sgd"

	// bias update, no regularization
	gb := grad
	if useAdaGrad {
		c.gBias2 += gb * gb
		c.bias -= eta * gb / (1e-8 + math.Sqrt(c.gBias2))
	} else {
		c.bias -= eta * gb
	}

	for i, ix := range x.Indices {
		g := grad*x.Values[i] + args.L2*c.weights[ix]
		if useAdaGrad {
			c.g2[ix] += g * g
			c.weights[ix] -= eta * g / (1e-8 + math.Sqrt(c.g2[ix]))
		} else {
			c.weights[ix] -= eta * g
		}
		if args.L1 > 0 {
			c.weights[ix] = softThreshold(c.weights[ix], eta*args.L1)
		}
		if c.weights[ix] == 0 {
			delete(c.weights, ix)
			delete(c.g2, ix)
		}
	}
}

func softThreshold(w, lambda float64) float64 {
	if w > lambda {
		return w - lambda
	}
	if w < -lambda {
		return w + lambda
	}
	return 0
}

// PredictProbability returns sigmoid(w.x + b).
func (c *Classifier) PredictProbability(x *vector.Sparse) float64 {
	return sigmoid(c.score(x))
}

// PredictValue returns the raw score w.x + b.
func (c *Classifier) PredictValue(x *vector.Sparse) float64 {
	return c.score(x)
}

// Copy returns an independent deep copy of the classifier.
func (c *Classifier) Copy() base.Learner {
	cp := &Classifier{
		weights: make(map[int32]float64, len(c.weights)),
		g2:      make(map[int32]float64, len(c.g2)),
		bias:    c.bias,
		gBias2:  c.gBias2,
	}
	for k, v := range c.weights {
		cp.weights[k] = v
	}
	for k, v := range c.g2 {
		cp.g2[k] = v
	}
	return cp
}

// CopyInverted returns a deep copy with every weight (including bias)
// negated, used to seed a newly split online subtree as the logical
// complement of its parent.
func (c *Classifier) CopyInverted() base.Learner {
	cp := c.Copy().(*Classifier)
	cp.bias = -cp.bias
	for k, v := range cp.weights {
		cp.weights[k] = -v
	}
	return cp
}

// Save writes bias, weight count and each (index, value) pair,
// little-endian, matching the fixed-width convention of tree.bin.
func (c *Classifier) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, c.bias); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, int32(len(c.weights))); err != nil {
		return err
	}
	idx := make([]int32, 0, len(c.weights))
	for ix := range c.weights {
		idx = append(idx, ix)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	for _, ix := range idx {
		if err := binary.Write(bw, binary.LittleEndian, ix); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, c.weights[ix]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads back a classifier written by Save. The AdaGrad accumulator
// is not persisted: a loaded classifier is fit for inference, and if
// reused for further online updates it restarts AdaGrad from zero.
func (c *Classifier) Load(r io.Reader) error {
	c.weights = make(map[int32]float64)
	c.g2 = make(map[int32]float64)
	if err := binary.Read(r, binary.LittleEndian, &c.bias); err != nil {
		return err
	}
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	for i := int32(0); i < n; i++ {
		var ix int32
		var v float64
		if err := binary.Read(r, binary.LittleEndian, &ix); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		c.weights[ix] = v
	}
	return nil
}
