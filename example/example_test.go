package example

import "testing"

func TestHasLabel(t *testing.T) {
	e := &Example{Labels: []int32{1, 5, 9}}
	if !e.HasLabel(5) {
		t.Error("expected HasLabel(5) to be true")
	}
	if e.HasLabel(2) {
		t.Error("expected HasLabel(2) to be false")
	}
}

func TestIntersectsAny(t *testing.T) {
	e := &Example{Labels: []int32{1, 5, 9}}
	if !e.IntersectsAny([]int32{9, 10}) {
		t.Error("expected an intersection on label 9")
	}
	if e.IntersectsAny([]int32{2, 3}) {
		t.Error("expected no intersection")
	}
	if e.IntersectsAny(nil) {
		t.Error("expected no intersection against an empty label set")
	}
}
