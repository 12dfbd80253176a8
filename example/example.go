// Package example defines the single training/inference record shared
// across the tree, assign, model, online and dataset packages: a
// sparse feature vector paired with the (possibly empty) set of
// labels it belongs to.
package example

import "github.com/pbanos/napkinxc/vector"

// Example is one row of a training or prediction set.
type Example struct {
	Features *vector.Sparse
	Labels   []int32
}

// HasLabel reports whether l is among e's labels.
func (e *Example) HasLabel(l int32) bool {
	for _, x := range e.Labels {
		if x == l {
			return true
		}
	}
	return false
}

// IntersectsAny reports whether e has at least one label in labels.
func (e *Example) IntersectsAny(labels []int32) bool {
	if len(labels) == 0 {
		return false
	}
	set := make(map[int32]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	for _, l := range e.Labels {
		if _, ok := set[l]; ok {
			return true
		}
	}
	return false
}
