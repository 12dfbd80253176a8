package trainpool

import (
	"bytes"
	"testing"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/vector"
)

func testJobs() []Job {
	x1 := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	x2 := &vector.Sparse{Indices: []int32{0}, Values: []float64{-1}}
	return []Job{
		{Index: 0, Targets: []float64{1, 0}, Features: []*vector.Sparse{x1, x2}},
		{Index: 2, Targets: []float64{0, 1}, Features: []*vector.Sparse{x1, x2}},
		{Index: 1, Targets: []float64{1, 1}, Features: []*vector.Sparse{x1, x2}},
	}
}

func TestTrainReturnsLearnersIndexedByJobIndex(t *testing.T) {
	factory := func() base.Learner { return linear.New() }
	p := New(2, factory, base.DefaultArgs())
	learners, err := p.Train(testJobs())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(learners) != 3 {
		t.Fatalf("got %d learners, want 3", len(learners))
	}
	for i, l := range learners {
		if l == nil {
			t.Errorf("learner at index %d is nil", i)
		}
	}
}

func TestTrainPropagatesLearnerError(t *testing.T) {
	factory := func() base.Learner { return linear.New() }
	p := New(1, factory, base.DefaultArgs())
	jobs := []Job{{Index: 0, Targets: []float64{1, 2}, Features: []*vector.Sparse{{}}}}
	if _, err := p.Train(jobs); err == nil {
		t.Fatal("expected an error from a job with mismatched targets/features lengths")
	}
}

func TestTrainStreamWritesNodesInIndexOrder(t *testing.T) {
	factory := func() base.Learner { return linear.New() }
	p := New(2, factory, base.DefaultArgs())
	var buf bytes.Buffer
	if err := p.TrainStream(testJobs(), &buf, 3); err != nil {
		t.Fatalf("TrainStream: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected TrainStream to write to the buffer")
	}
}

func TestTrainStreamErrorsOnGapInIndices(t *testing.T) {
	factory := func() base.Learner { return linear.New() }
	p := New(1, factory, base.DefaultArgs())
	x := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	jobs := []Job{{Index: 0, Targets: []float64{1}, Features: []*vector.Sparse{x}}}
	var buf bytes.Buffer
	if err := p.TrainStream(jobs, &buf, 2); err == nil {
		t.Fatal("expected an error: declared size 2 but only node 0 was trained")
	}
}
