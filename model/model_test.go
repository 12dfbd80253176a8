package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/trainpool"
	"github.com/pbanos/napkinxc/tree"
	"github.com/pbanos/napkinxc/vector"
)

func testExamples() []*example.Example {
	x := func(v float64) *vector.Sparse { return &vector.Sparse{Indices: []int32{0}, Values: []float64{v}} }
	return []*example.Example{
		{Features: x(1), Labels: []int32{0}},
		{Features: x(-1), Labels: []int32{1}},
		{Features: x(2), Labels: []int32{0}},
		{Features: x(-2), Labels: []int32{1}},
	}
}

func testFactory() base.Factory {
	return func() base.Learner { return linear.New() }
}

func TestTrainBRAssignsOneLearnerPerLabel(t *testing.T) {
	pool := trainpool.New(2, testFactory(), base.DefaultArgs())
	m, err := Train(BR, nil, 2, testExamples(), pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.Tree != nil {
		t.Error("BR model should not carry a tree")
	}
	if len(m.Bases) != 2 {
		t.Fatalf("got %d bases, want 2", len(m.Bases))
	}
	for i, b := range m.Bases {
		if b == nil {
			t.Errorf("base %d is nil", i)
		}
	}
}

func TestTrainPLTRequiresTree(t *testing.T) {
	pool := trainpool.New(1, testFactory(), base.DefaultArgs())
	if _, err := Train(PLT, nil, 2, testExamples(), pool, false); err == nil {
		t.Fatal("expected an error training PLT without a tree")
	}
}

func TestSaveLoadRoundTripPLT(t *testing.T) {
	tr := tree.BuildComplete(2, 2, false, 0)
	pool := trainpool.New(2, testFactory(), base.DefaultArgs())
	m, err := Train(PLT, tr, 2, testExamples(), pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	dir := t.TempDir()
	if err := m.Save(dir, testFactory()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, name := range []string{"tree.bin", "tree.txt", "weights.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	loaded, err := Load(dir, PLT, 2, testFactory())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Tree == nil {
		t.Fatal("loaded model should carry a tree")
	}
	if loaded.Tree.NumNodes() != tr.NumNodes() {
		t.Errorf("loaded tree has %d nodes, want %d", loaded.Tree.NumNodes(), tr.NumNodes())
	}
	if len(loaded.Bases) != len(m.Bases) {
		t.Errorf("loaded %d bases, want %d", len(loaded.Bases), len(m.Bases))
	}
}

// HSM never trains the root (it has no parent to be a child under)
// nor the second child of any 2-child parent (its probability is
// derived as 1-p from the first child's base), so a real HSM model
// always carries nil entries in Bases. Save/Load must round-trip that
// sparse array instead of erroring or densifying it.
func TestSaveLoadRoundTripHSM(t *testing.T) {
	tr := tree.BuildComplete(4, 2, false, 0)
	x := func(v float64) *vector.Sparse { return &vector.Sparse{Indices: []int32{0}, Values: []float64{v}} }
	var examples []*example.Example
	for l := int32(0); l < 4; l++ {
		examples = append(examples,
			&example.Example{Features: x(float64(l)), Labels: []int32{l}},
			&example.Example{Features: x(float64(l)), Labels: []int32{l}},
		)
	}
	pool := trainpool.New(2, testFactory(), base.DefaultArgs())
	m, err := Train(HSM, tr, 4, examples, pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.Bases[tr.Root] != nil {
		t.Fatal("HSM should never train a base for the root")
	}
	var nilBefore int
	for _, b := range m.Bases {
		if b == nil {
			nilBefore++
		}
	}
	if nilBefore == 0 {
		t.Fatal("expected at least one nil base in a real HSM assignment (test setup is wrong if this fires)")
	}

	dir := t.TempDir()
	if err := m.Save(dir, testFactory()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir, HSM, 4, testFactory())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Bases) != len(m.Bases) {
		t.Fatalf("loaded %d bases, want %d", len(loaded.Bases), len(m.Bases))
	}
	if loaded.Bases[tr.Root] != nil {
		t.Error("loaded root base should still be nil")
	}
	var nilAfter int
	for i, b := range loaded.Bases {
		isNil := b == nil
		wasNil := m.Bases[i] == nil
		if isNil != wasNil {
			t.Errorf("node %d: nil-ness changed across round trip (was nil=%v, now nil=%v)", i, wasNil, isNil)
		}
		if isNil {
			nilAfter++
		}
	}
	if nilAfter != nilBefore {
		t.Errorf("round trip changed nil base count: %d -> %d", nilBefore, nilAfter)
	}
}

func TestPrintInfo(t *testing.T) {
	pool := trainpool.New(1, testFactory(), base.DefaultArgs())
	m, err := Train(BR, nil, 2, testExamples(), pool, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	var buf strings.Builder
	m.PrintInfo(&buf)
	out := buf.String()
	if !strings.Contains(out, "kind: br") {
		t.Errorf("PrintInfo output missing kind: %q", out)
	}
	if !strings.Contains(out, "bases: 2") {
		t.Errorf("PrintInfo output missing base count: %q", out)
	}
}
