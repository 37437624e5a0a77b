package knn

// Neighbor is one entry of a neighbor list. Dist is the squared distance
// returned by the distance function.
type Neighbor struct {
	Index int
	Dist  float64
}

// farther orders neighbors by distance, breaking ties on the lower index so
// results never depend on scan order.
func farther(a, b Neighbor) bool {
	if a.Dist != b.Dist {
		return a.Dist > b.Dist
	}
	return a.Index > b.Index
}

// maxHeap keeps the k best neighbors found so far. The root is the worst of
// the best, so it is the one replaced when a closer point shows up.
type maxHeap []Neighbor

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return farther(h[i], h[j]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
