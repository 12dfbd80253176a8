package infer

import (
	"testing"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/model"
	"github.com/pbanos/napkinxc/trainpool"
	"github.com/pbanos/napkinxc/tree"
	"github.com/pbanos/napkinxc/vector"
)

func testFactory() base.Factory {
	return func() base.Learner { return linear.New() }
}

// 4 labels, one strongly-signalled feature per label, so TopK/RankBR
// should recover label 0 as the top prediction for a positive feature 0.
func testExamples() []*example.Example {
	x := func(idx int32) *vector.Sparse { return &vector.Sparse{Indices: []int32{idx}, Values: []float64{1}} }
	var examples []*example.Example
	for i := int32(0); i < 4; i++ {
		for n := 0; n < 10; n++ {
			examples = append(examples, &example.Example{Features: x(i), Labels: []int32{i}})
		}
	}
	return examples
}

func TestTopKRanksTrainedPLTModel(t *testing.T) {
	tr := tree.BuildComplete(4, 2, false, 0)
	pool := trainpool.New(2, testFactory(), base.Args{Eta: 1, L2: 0, Epochs: 20, Optimizer: "adagrad"})
	m, err := model.Train(model.PLT, tr, 4, testExamples(), pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	x := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	preds, err := TopK(m, x, 4, 0)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(preds) == 0 {
		t.Fatal("expected at least one prediction")
	}
	if preds[0].Label != 0 {
		t.Errorf("top prediction = label %d, want 0", preds[0].Label)
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].Value > preds[i-1].Value {
			t.Errorf("predictions not sorted descending at index %d", i)
		}
	}
}

func TestTopKRejectsNonTreeModel(t *testing.T) {
	pool := trainpool.New(1, testFactory(), base.DefaultArgs())
	m, err := model.Train(model.BR, nil, 2, testExamples(), pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	x := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	if _, err := TopK(m, x, 2, 0); err == nil {
		t.Fatal("expected TopK to reject a BR model")
	}
}

func TestRankBRSortsDescendingAndCutsByTopK(t *testing.T) {
	pool := trainpool.New(2, testFactory(), base.Args{Eta: 1, L2: 1, Epochs: 20, Optimizer: "adagrad"})
	m, err := model.Train(model.BR, nil, 4, testExamples(), pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	x := &vector.Sparse{Indices: []int32{2}, Values: []float64{1}}
	preds := RankBR(m, x, 2, 0)
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2 (topK cutoff)", len(preds))
	}
	if preds[0].Label != 2 {
		t.Errorf("top prediction = label %d, want 2", preds[0].Label)
	}
}

func TestPredictForLabelMatchesTopKValue(t *testing.T) {
	tr := tree.BuildComplete(4, 2, false, 0)
	pool := trainpool.New(2, testFactory(), base.Args{Eta: 1, L2: 1, Epochs: 20, Optimizer: "adagrad"})
	m, err := model.Train(model.PLT, tr, 4, testExamples(), pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	x := &vector.Sparse{Indices: []int32{1}, Values: []float64{1}}
	preds, err := TopK(m, x, 4, 0)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	var want float64
	for _, p := range preds {
		if p.Label == 1 {
			want = p.Value
		}
	}
	got, err := PredictForLabel(m, x, 1)
	if err != nil {
		t.Fatalf("PredictForLabel: %v", err)
	}
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("PredictForLabel = %f, want %f (TopK's value for the same label)", got, want)
	}
}
