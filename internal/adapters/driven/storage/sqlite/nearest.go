package sqlite

import (
	"container/heap"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// nearest keeps the k best results seen so far. The root of the heap is
// the worst kept result, so a scan holds at most k results in memory.
type nearest struct {
	k     int
	items []domain.SearchResult
}

func newNearest(k int) *nearest {
	return &nearest{k: k, items: make([]domain.SearchResult, 0, k)}
}

func (n *nearest) Len() int           { return len(n.items) }
func (n *nearest) Less(i, j int) bool { return domain.LessResult(n.items[j], n.items[i]) }
func (n *nearest) Swap(i, j int)      { n.items[i], n.items[j] = n.items[j], n.items[i] }

func (n *nearest) Push(x any) { n.items = append(n.items, x.(domain.SearchResult)) }

func (n *nearest) Pop() any {
	last := n.items[len(n.items)-1]
	n.items = n.items[:len(n.items)-1]
	return last
}

// offer keeps r if it ranks among the k best.
func (n *nearest) offer(r domain.SearchResult) {
	if len(n.items) < n.k {
		heap.Push(n, r)
		return
	}
	if domain.LessResult(r, n.items[0]) {
		n.items[0] = r
		heap.Fix(n, 0)
	}
}

// results returns the kept results, best first.
func (n *nearest) results() []domain.SearchResult {
	out := append([]domain.SearchResult(nil), n.items...)
	domain.SortByDistance(out)
	return out
}
