/*
Package kmeans defines the KMeansPartitioner contract used by the
hierarchical- and random-projection-k-means tree-building strategies
(§4.1), plus a default implementation adapting
github.com/biogo/cluster/kmeans, the same clustering library
kite-go/clustering wraps.

The tree package only ever asks a Partitioner for a balanced A-way
split of a set of label centroids; it does not care how the split is
produced, so alternative partitioners (e.g. spherical k-means, or an
exact partitioner for tests) can be swapped in.
*/
package kmeans

import (
	bkmeans "github.com/biogo/cluster/kmeans"

	"github.com/pbanos/napkinxc/vector"
)

// Partitioner splits a set of points into `parts` groups and returns,
// for each point, the index of the group it was assigned to
// (0 <= group < parts). Implementations must never return an empty
// group: on a degenerate split they should fall back to the closest
// non-empty split (§4.1).
type Partitioner interface {
	Partition(points []*vector.Sparse, parts int, args Args) ([]int, error)
}

// Args carries the k-means tuning knobs from config.Args that the
// spec names: convergence epsilon, whether to force balanced cluster
// sizes, an optional index-hashing modulus applied before clustering,
// and the RNG seed for centroid initialization.
type Args struct {
	Eps      float64
	Balanced bool
	Hash     int32
	Seed     int64
}

type biogoPartitioner struct{}

// Default returns the biogo/cluster/kmeans-backed Partitioner used by
// the hierarchicalKMeans and kMeansWithProjection tree strategies.
func Default() Partitioner {
	return biogoPartitioner{}
}

// pointSet adapts a []*vector.Sparse (already densified to a common
// dimension) to biogo/cluster/kmeans's Interface: Len() int and
// Values(i int) []float64, the same shape kite-go/clustering's
// internal `nodes` type implements.
type pointSet [][]float64

func (p pointSet) Len() int                { return len(p) }
func (p pointSet) Values(i int) []float64 { return p[i] }

func (biogoPartitioner) Partition(points []*vector.Sparse, parts int, args Args) ([]int, error) {
	if parts < 1 {
		parts = 1
	}
	if len(points) <= parts {
		assign := make([]int, len(points))
		for i := range assign {
			assign[i] = i % parts
		}
		return assign, nil
	}

	dense := densify(points, args.Hash)
	km, err := bkmeans.New(pointSet(dense))
	if err != nil {
		return nil, err
	}

	km.Seed(parts)
	km.Cluster()

	assign := make([]int, len(points))
	for c, center := range km.Centers() {
		for _, memberIdx := range center.Members() {
			assign[memberIdx] = c
		}
	}
	fillEmptyClusters(assign, parts, dense)
	if args.Balanced {
		rebalance(assign, parts, dense)
	}
	return assign, nil
}

func densify(points []*vector.Sparse, hashMod int32) [][]float64 {
	if hashMod > 0 {
		hashed := make([]*vector.Sparse, len(points))
		for i, p := range points {
			hashed[i] = vector.Hashed(p, hashMod)
		}
		points = hashed
	}
	var dim int32
	for _, p := range points {
		for _, ix := range p.Indices {
			if ix+1 > dim {
				dim = ix + 1
			}
		}
	}
	dense := make([][]float64, len(points))
	for i, p := range points {
		row := make([]float64, dim)
		for j, ix := range p.Indices {
			row[ix] = p.Values[j]
		}
		dense[i] = row
	}
	return dense
}

// fillEmptyClusters reassigns one point from the largest cluster to
// any cluster with zero members, per §4.1's "fall back to the next
// non-empty split" rule.
func fillEmptyClusters(assign []int, parts int, dense [][]float64) {
	counts := make([]int, parts)
	for _, c := range assign {
		counts[c]++
	}
	for empty := 0; empty < parts; empty++ {
		if counts[empty] > 0 {
			continue
		}
		largest := argmax(counts)
		if counts[largest] < 2 {
			continue
		}
		for i, c := range assign {
			if c == largest {
				assign[i] = empty
				counts[largest]--
				counts[empty]++
				break
			}
		}
	}
}

// rebalance nudges points from over-sized clusters toward their
// next-closest under-sized cluster until no cluster holds more than
// len(assign)/parts+1 points, implementing the "balanced" k-means
// variant. Under-sized clusters are not filled up, so sizes can still
// differ by more than one.
func rebalance(assign []int, parts int, dense [][]float64) {
	target := len(assign) / parts
	counts := make([]int, parts)
	for _, c := range assign {
		counts[c]++
	}
	centroids := computeCentroids(assign, parts, dense)
	for {
		over := -1
		for c, n := range counts {
			if n > target+1 {
				over = c
				break
			}
		}
		if over < 0 {
			break
		}
		bestI, bestC, bestD := -1, -1, 0.0
		for i, c := range assign {
			if c != over {
				continue
			}
			for cand := 0; cand < parts; cand++ {
				if cand == over || counts[cand] >= target+1 {
					continue
				}
				d := sqDist(dense[i], centroids[cand])
				if bestI < 0 || d < bestD {
					bestI, bestC, bestD = i, cand, d
				}
			}
		}
		if bestI < 0 {
			break
		}
		counts[assign[bestI]]--
		assign[bestI] = bestC
		counts[bestC]++
	}
}

func computeCentroids(assign []int, parts int, dense [][]float64) [][]float64 {
	if len(dense) == 0 {
		return make([][]float64, parts)
	}
	dim := len(dense[0])
	sums := make([][]float64, parts)
	counts := make([]int, parts)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, c := range assign {
		for j, v := range dense[i] {
			sums[c][j] += v
		}
		counts[c]++
	}
	for c := range sums {
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}
	return sums
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
