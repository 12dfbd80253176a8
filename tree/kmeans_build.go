package tree

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/pbanos/napkinxc/kmeans"
	"github.com/pbanos/napkinxc/vector"
)

// BuildHierarchicalKMeans builds the hierarchicalKMeans strategy of
// §4.1: starting from one centroid per label, recursively splits the
// current node's label set into `arity` groups using partitioner,
// stopping a branch once its label count is at most maxLeaves (the
// "max leaves per node" knob also used by the random-projection
// variant). centroids must contain one entry per label 0..k-1.
func BuildHierarchicalKMeans(centroids map[int32]*vector.Sparse, arity, maxLeaves int, partitioner kmeans.Partitioner, args kmeans.Args) (*Tree, error) {
	k := int32(len(centroids))
	t := newTree(k)
	root := t.addNode(-1, -1)
	t.Root = root

	labels := make([]int32, 0, k)
	for l := range centroids {
		labels = append(labels, l)
	}

	type job struct {
		node   int32
		labels []int32
	}
	queue := []job{{root, labels}}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		if len(j.labels) == 1 {
			t.promoteToLeaf(j.node, j.labels[0])
			continue
		}
		if maxLeaves > 0 && len(j.labels) <= maxLeaves {
			attachLeaves(t, j.node, j.labels)
			continue
		}
		points := make([]*vector.Sparse, len(j.labels))
		for i, l := range j.labels {
			points[i] = centroids[l]
		}
		assign, err := partitioner.Partition(points, arity, args)
		if err != nil {
			return nil, fmt.Errorf("building hierarchical k-means tree at node %d: %w", j.node, err)
		}
		groups := make([][]int32, arity)
		for i, g := range assign {
			groups[g] = append(groups[g], j.labels[i])
		}
		for _, group := range groups {
			if len(group) == 0 {
				continue
			}
			if len(group) == 1 {
				t.addNode(group[0], j.node)
				continue
			}
			child := t.addNode(-1, j.node)
			queue = append(queue, job{child, group})
		}
	}
	return t, nil
}

// attachLeaves adds one leaf child per label directly under node,
// used once a subtree's label count drops to or below maxLeaves.
func attachLeaves(t *Tree, node int32, labels []int32) {
	for _, l := range labels {
		t.addNode(l, node)
	}
}

// BuildRandomProjectionKMeans builds the kMeansWithProjection strategy
// of §4.1: identical recursive split to BuildHierarchicalKMeans, but
// each centroid is first projected from its native (typically
// hashed) dimensionality down to projectDim via a dense Gaussian
// random projection matrix, trading cluster quality for a
// dramatically cheaper distance computation on high-dimensional text
// features.
func BuildRandomProjectionKMeans(centroids map[int32]*vector.Sparse, arity, maxLeaves, projectDim int, seed int64, partitioner kmeans.Partitioner, args kmeans.Args) (*Tree, error) {
	var dim int32
	for _, c := range centroids {
		for _, ix := range c.Indices {
			if ix+1 > dim {
				dim = ix + 1
			}
		}
	}
	proj := gaussianProjection(int(dim), projectDim, seed)
	projected := make(map[int32]*vector.Sparse, len(centroids))
	for l, c := range centroids {
		projected[l] = projectSparse(c, proj, int(dim))
	}
	return BuildHierarchicalKMeans(projected, arity, maxLeaves, partitioner, args)
}

// gaussianProjection returns a dense inDim x outDim matrix of iid
// standard-normal entries scaled by 1/sqrt(outDim), a standard
// Johnson-Lindenstrauss random projection.
func gaussianProjection(inDim, outDim int, seed int64) *mat.Dense {
	r := rand.New(rand.NewSource(seed))
	data := make([]float64, inDim*outDim)
	scale := 1.0
	if outDim > 0 {
		scale = 1.0 / math.Sqrt(float64(outDim))
	}
	for i := range data {
		data[i] = r.NormFloat64() * scale
	}
	return mat.NewDense(inDim, outDim, data)
}

// projectSparse applies proj to a single sparse vector, densifying it
// first against dim, and returns the projected result as a dense
// vector.Sparse (all projectDim coordinates populated).
func projectSparse(v *vector.Sparse, proj *mat.Dense, dim int) *vector.Sparse {
	dense := mat.NewVecDense(dim, make([]float64, dim))
	for i, ix := range v.Indices {
		dense.SetVec(int(ix), v.Values[i])
	}
	_, outDim := proj.Dims()
	out := mat.NewVecDense(outDim, nil)
	out.MulVec(proj.T(), dense)

	idx := make([]int32, outDim)
	vals := make([]float64, outDim)
	for i := 0; i < outDim; i++ {
		idx[i] = int32(i)
		vals[i] = out.AtVec(i)
	}
	return &vector.Sparse{Indices: idx, Values: vals}
}
