package online

import (
	"bytes"
	"context"
	"testing"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/vector"
)

type fakeStore struct {
	records map[int32]NodeRecord
}

func newFakeStore() *fakeStore { return &fakeStore{records: make(map[int32]NodeRecord)} }

func (s *fakeStore) Create(ctx context.Context, n NodeRecord) error {
	if _, ok := s.records[n.Index]; ok {
		return nil
	}
	s.records[n.Index] = n
	return nil
}
func (s *fakeStore) Get(ctx context.Context, index int32) (*NodeRecord, error) {
	n, ok := s.records[index]
	if !ok {
		return nil, nil
	}
	return &n, nil
}
func (s *fakeStore) Store(ctx context.Context, n NodeRecord) error {
	s.records[n.Index] = n
	return nil
}
func (s *fakeStore) Delete(ctx context.Context, index int32) error {
	delete(s.records, index)
	return nil
}
func (s *fakeStore) Close(ctx context.Context) error { return nil }

func newTestPLT() *OnlinePLT {
	factory := func() base.Learner { return linear.New() }
	return New(factory, base.DefaultArgs(), 2, 2, DescentBestScore, 0.5, 0, 1)
}

func TestFirstUpdateOnEmptyTreeMatchesS6(t *testing.T) {
	o := newTestPLT()
	feats := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{5, 7}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if o.NumNodes() != 4 {
		t.Fatalf("expected 4 nodes (root, group, 2 leaves), got %d", o.NumNodes())
	}
	o.mu.RLock()
	root := o.nodes[o.root]
	if len(root.Children) != 1 {
		t.Errorf("root should have exactly 1 child (the group node), got %d", len(root.Children))
	}
	if root.SubtreeLeaves != 2 {
		t.Errorf("root.SubtreeLeaves = %d, want 2", root.SubtreeLeaves)
	}
	group := o.nodes[root.Children[0]]
	if len(group.Children) != 2 {
		t.Errorf("group node should have 2 leaf children, got %d", len(group.Children))
	}
	o.mu.RUnlock()

	if _, ok := o.LeafForLabel(5); !ok {
		t.Error("expected a leaf for label 5")
	}
	if _, ok := o.LeafForLabel(7); !ok {
		t.Error("expected a leaf for label 7")
	}
}

func TestSecondBatchOfLabelsExpandsBeyondFirstGroup(t *testing.T) {
	o := newTestPLT()
	feats := &vector.Sparse{Indices: []int32{0, 1}, Values: []float64{1, 0.5}}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{1, 2}}); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{3}}); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if _, ok := o.LeafForLabel(3); !ok {
		t.Fatal("expected label 3 to have been attached somewhere in the tree")
	}
	if o.NumNodes() <= 4 {
		t.Errorf("expected the tree to have grown past the first group, got %d nodes", o.NumNodes())
	}
}

// A group node must stay expandable up to maxLeaves, not just arity:
// with the default arity=2 the very first two labels already fill a
// group to arity, and a naive arity-based retirement would strand the
// third update with no live temp base to expand from.
func TestThirdUpdateExpandsFullGroupsInsteadOfPanicking(t *testing.T) {
	factory := func() base.Learner { return linear.New() }
	o := New(factory, base.DefaultArgs(), 2, 100, DescentBestScore, 0.5, 0, 1)
	feats := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}

	if err := o.Update(&example.Example{Features: feats, Labels: []int32{1, 2}}); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{3, 4}}); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{5}}); err != nil {
		t.Fatalf("third Update: %v", err)
	}
	if _, ok := o.LeafForLabel(5); !ok {
		t.Error("expected label 5 to have been attached")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	o := newTestPLT()
	feats := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{5, 7}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var buf bytes.Buffer
	if err := o.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	factory := func() base.Learner { return linear.New() }
	loaded, err := Load(&buf, factory, base.DefaultArgs(), 2, 2, DescentBestScore, 0.5, 0, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NumNodes() != o.NumNodes() {
		t.Fatalf("loaded %d nodes, want %d", loaded.NumNodes(), o.NumNodes())
	}
	if _, ok := loaded.LeafForLabel(5); !ok {
		t.Error("expected a leaf for label 5 after load")
	}
	if _, ok := loaded.LeafForLabel(7); !ok {
		t.Error("expected a leaf for label 7 after load")
	}
}

func TestSyncToReplicatesEveryNode(t *testing.T) {
	o := newTestPLT()
	feats := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{5, 7}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fs := newFakeStore()
	ctx := context.Background()
	if err := o.SyncTo(ctx, fs); err != nil {
		t.Fatalf("SyncTo: %v", err)
	}
	if len(fs.records) != int(o.NumNodes()) {
		t.Fatalf("replicated %d nodes, want %d", len(fs.records), o.NumNodes())
	}

	if err := o.Update(&example.Example{Features: feats, Labels: []int32{9}}); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if err := o.SyncTo(ctx, fs); err != nil {
		t.Fatalf("second SyncTo: %v", err)
	}
	if len(fs.records) != int(o.NumNodes()) {
		t.Fatalf("after growth replicated %d nodes, want %d", len(fs.records), o.NumNodes())
	}
}
