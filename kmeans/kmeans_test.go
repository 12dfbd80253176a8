package kmeans

import "testing"

func TestFillEmptyClustersReassignsFromLargest(t *testing.T) {
	// 5 points crammed into cluster 0, cluster 1 empty.
	assign := []int{0, 0, 0, 0, 0}
	dense := make([][]float64, 5)
	for i := range dense {
		dense[i] = []float64{float64(i)}
	}
	fillEmptyClusters(assign, 2, dense)

	counts := map[int]int{}
	for _, c := range assign {
		counts[c]++
	}
	if counts[1] == 0 {
		t.Fatalf("expected cluster 1 to receive at least one point, assign=%v", assign)
	}
}

func TestRebalanceEqualizesClusterSizes(t *testing.T) {
	assign := []int{0, 0, 0, 0, 1}
	dense := [][]float64{{0}, {1}, {2}, {3}, {10}}
	rebalance(assign, 2, dense)

	counts := map[int]int{}
	for _, c := range assign {
		counts[c]++
	}
	for c, n := range counts {
		if n > 3 {
			t.Errorf("cluster %d has %d members, expected roughly balanced 5/2 split", c, n)
		}
	}
}

func TestArgmax(t *testing.T) {
	if got := argmax([]int{1, 5, 3}); got != 1 {
		t.Errorf("argmax([1,5,3]) = %d, want 1", got)
	}
}
