package tree

import (
	"bytes"
	"testing"
)

func TestBuildCompleteStructure(t *testing.T) {
	tr := BuildComplete(7, 2, false, 0)
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tr.K != 7 {
		t.Errorf("K = %d, want 7", tr.K)
	}
	for l := int32(0); l < 7; l++ {
		if _, ok := tr.LeafForLabel(l); !ok {
			t.Errorf("no leaf found for label %d", l)
		}
	}
}

func TestBuildCompleteRoundTrip(t *testing.T) {
	tr := BuildComplete(10, 3, false, 0)
	var buf bytes.Buffer
	if err := tr.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Fatalf("Validate loaded: %v", err)
	}
	if loaded.NumNodes() != tr.NumNodes() || loaded.Root != tr.Root {
		t.Fatalf("round-tripped tree shape mismatch: got %d nodes root %d, want %d nodes root %d",
			loaded.NumNodes(), loaded.Root, tr.NumNodes(), tr.Root)
	}
	for l := int32(0); l < 10; l++ {
		wantIdx, _ := tr.LeafForLabel(l)
		gotIdx, ok := loaded.LeafForLabel(l)
		if !ok || gotIdx != wantIdx {
			t.Errorf("label %d: got leaf %d ok=%v, want %d", l, gotIdx, ok, wantIdx)
		}
	}
}

func TestBuildCompleteTextRoundTrip(t *testing.T) {
	tr := BuildComplete(5, 2, false, 0)
	var buf bytes.Buffer
	if err := tr.SaveText(&buf); err != nil {
		t.Fatalf("SaveText: %v", err)
	}
	loaded, err := LoadText(&buf)
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Fatalf("Validate loaded: %v", err)
	}
	if loaded.Root != tr.Root || loaded.NumNodes() != tr.NumNodes() {
		t.Fatalf("text round trip mismatch: root=%d nodes=%d, want root=%d nodes=%d",
			loaded.Root, loaded.NumNodes(), tr.Root, tr.NumNodes())
	}
}

func TestBuildHuffmanFavorsFrequentLabels(t *testing.T) {
	freq := map[int32]int64{0: 1000, 1: 1, 2: 1, 3: 1}
	tr := BuildHuffman(4, freq, 2)
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	path, err := tr.PathToRoot(0)
	if err != nil {
		t.Fatalf("PathToRoot: %v", err)
	}
	if len(path) > 2 {
		t.Errorf("expected the most frequent label to sit close to the root, path length %d: %v", len(path), path)
	}
}

func TestSplitBlocksContiguousAndBalanced(t *testing.T) {
	labels := []int32{0, 1, 2, 3, 4, 5, 6}
	blocks := splitBlocks(labels, 3)
	total := 0
	for _, b := range blocks {
		total += len(b)
		if len(b) < 2 || len(b) > 3 {
			t.Errorf("block size %d outside expected 2-3 range: %v", len(b), b)
		}
	}
	if total != len(labels) {
		t.Errorf("blocks cover %d labels, want %d", total, len(labels))
	}
}
