package plg

import "testing"

func TestHashNodeIsDeterministicAndInRange(t *testing.T) {
	h := Hash{A: 7, B: 3, P: NextPrime(101)}
	var layerSize int32 = 16
	for _, label := range []int32{0, 1, 42, 1000, 999983} {
		n1 := h.Node(label, layerSize)
		n2 := h.Node(label, layerSize)
		if n1 != n2 {
			t.Fatalf("hash not deterministic for label %d: %d != %d", label, n1, n2)
		}
		if n1 < 0 || n1 >= layerSize {
			t.Fatalf("hash out of range for label %d: %d", label, n1)
		}
	}
}

func TestTotalBasesMatchesFormula(t *testing.T) {
	var layerSize int32 = 10
	got := TotalBases(3, layerSize)
	want := int(layerSize) + 2*int(layerSize)*int(layerSize)
	if got != want {
		t.Errorf("TotalBases(3, %d) = %d, want %d", layerSize, got, want)
	}
}

func TestPathBasesLengthMatchesLayerCount(t *testing.T) {
	g := New([]Hash{{A: 3, B: 1, P: NextPrime(20)}, {A: 5, B: 2, P: NextPrime(20)}, {A: 9, B: 4, P: NextPrime(20)}}, 20)
	path := g.PathBases(123)
	if len(path) != len(g.Hashes) {
		t.Errorf("PathBases length = %d, want %d (one per layer)", len(path), len(g.Hashes))
	}
	for _, idx := range path {
		if idx < 0 || idx >= len(g.Bases) {
			t.Errorf("path base index %d out of range [0,%d)", idx, len(g.Bases))
		}
	}
}

func TestNextPrimeIsStrictlyGreater(t *testing.T) {
	for _, n := range []uint32{1, 2, 10, 100, 1000} {
		p := NextPrime(n)
		if p <= n {
			t.Errorf("NextPrime(%d) = %d, want > %d", n, p, n)
		}
		if !isPrime(p) {
			t.Errorf("NextPrime(%d) = %d is not prime", n, p)
		}
	}
}
