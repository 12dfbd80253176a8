package vector

import (
	"math"
	"testing"
)

func TestNewSparseSumsDuplicatesAndDropsZeros(t *testing.T) {
	v := NewSparse([]int32{3, 1, 3, 5}, []float64{1, 2, -1, 0})
	if len(v.Indices) != 1 {
		t.Fatalf("expected 1 nonzero entry, got %d: %v", len(v.Indices), v.Indices)
	}
	if v.Indices[0] != 1 {
		t.Errorf("indices = %v, want [1] (index 3 sums to 0 and index 5 is 0, both dropped)", v.Indices)
	}
	if v.Values[0] != 2 {
		t.Errorf("index 1 accumulated to %f, want 2", v.Values[0])
	}
}

func TestDot(t *testing.T) {
	a := &Sparse{Indices: []int32{0, 2, 4}, Values: []float64{1, 2, 3}}
	b := &Sparse{Indices: []int32{2, 3, 4}, Values: []float64{5, 6, 7}}
	got := Dot(a, b)
	want := 2*5 + 3*7
	if got != float64(want) {
		t.Errorf("Dot = %f, want %d", got, want)
	}
}

func TestNormAndCosine(t *testing.T) {
	a := &Sparse{Indices: []int32{0, 1}, Values: []float64{3, 4}}
	if n := Norm(a); n != 5 {
		t.Errorf("Norm = %f, want 5", n)
	}
	b := &Sparse{Indices: []int32{0, 1}, Values: []float64{6, 8}}
	if c := Cosine(a, b); math.Abs(c-1) > 1e-9 {
		t.Errorf("Cosine of parallel vectors = %f, want 1", c)
	}
	zero := &Sparse{}
	if c := Cosine(a, zero); c != 0 {
		t.Errorf("Cosine against zero vector = %f, want 0", c)
	}
}

func TestUnitNormalize(t *testing.T) {
	v := &Sparse{Indices: []int32{0, 1}, Values: []float64{3, 4}}
	u := UnitNormalize(v)
	if math.Abs(Norm(u)-1) > 1e-9 {
		t.Errorf("Norm(UnitNormalize(v)) = %f, want 1", Norm(u))
	}
	if v.Values[0] != 3 {
		t.Error("UnitNormalize should not mutate its argument")
	}
}

func TestFromDenseSortsIndices(t *testing.T) {
	dst := map[int32]float64{5: 1, 1: 2, 3: 3}
	v := FromDense(dst)
	want := []int32{1, 3, 5}
	for i, ix := range want {
		if v.Indices[i] != ix {
			t.Fatalf("Indices = %v, want %v", v.Indices, want)
		}
	}
}

func TestHashedFoldsIndicesAndSumsCollisions(t *testing.T) {
	v := &Sparse{Indices: []int32{1, 4, 7}, Values: []float64{1, 1, 1}}
	h := Hashed(v, 3)
	// 1%3=1, 4%3=1, 7%3=1: all three collide into bucket 1.
	if len(h.Indices) != 1 || h.Indices[0] != 1 {
		t.Fatalf("Hashed indices = %v, want [1]", h.Indices)
	}
	if h.Values[0] != 3 {
		t.Errorf("Hashed collided value = %f, want 3", h.Values[0])
	}
}

func TestHashedNoopWhenModulusNotPositive(t *testing.T) {
	v := &Sparse{Indices: []int32{1, 2}, Values: []float64{1, 2}}
	if Hashed(v, 0) != v {
		t.Error("Hashed with m<=0 should return v unchanged")
	}
}
