package linear

import (
	"bytes"
	"testing"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/vector"
)

func TestTrainSeparatesLinearlySeparableData(t *testing.T) {
	pos := &vector.Sparse{Indices: []int32{0}, Values: []float64{1.0}}
	neg := &vector.Sparse{Indices: []int32{0}, Values: []float64{-1.0}}

	targets := []float64{1.0, 1.0, 0.0, 0.0}
	features := []*vector.Sparse{pos, pos, neg, neg}

	c := New()
	args := base.DefaultArgs()
	args.Epochs = 50
	if err := c.Train(targets, features, nil, args); err != nil {
		t.Fatalf("Train: %v", err)
	}

	if p := c.PredictProbability(pos); p < 0.5 {
		t.Errorf("expected positive example probability >= 0.5, got %f", p)
	}
	if p := c.PredictProbability(neg); p > 0.5 {
		t.Errorf("expected negative example probability <= 0.5, got %f", p)
	}
}

func TestUpdateMovesTowardTarget(t *testing.T) {
	c := New()
	x := &vector.Sparse{Indices: []int32{3, 7}, Values: []float64{1, -1}}
	before := c.PredictProbability(x)
	for i := 0; i < 20; i++ {
		c.Update(1.0, x, base.DefaultArgs())
	}
	after := c.PredictProbability(x)
	if after <= before {
		t.Errorf("expected probability to increase toward target 1.0: before=%f after=%f", before, after)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := New()
	x := &vector.Sparse{Indices: []int32{1, 5, 9}, Values: []float64{0.5, -0.25, 1.5}}
	for i := 0; i < 10; i++ {
		c.Update(1.0, x, base.DefaultArgs())
	}
	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := New()
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := c.PredictProbability(x)
	got := loaded.PredictProbability(x)
	if diff := want - got; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("round-tripped classifier disagrees: want %f got %f", want, got)
	}
}

func TestCopyInvertedNegatesWeights(t *testing.T) {
	c := New()
	x := &vector.Sparse{Indices: []int32{2}, Values: []float64{1.0}}
	for i := 0; i < 10; i++ {
		c.Update(1.0, x, base.DefaultArgs())
	}
	inv := c.CopyInverted().(*Classifier)
	if inv.PredictValue(x) != -c.PredictValue(x) {
		t.Errorf("expected inverted score to be negation: got %f want %f", inv.PredictValue(x), -c.PredictValue(x))
	}
}
