package jobs

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/jackzampolin/imgbot/internal/chapters"
)

// ErrNilCandidate is returned when attempting to push a nil candidate.
var ErrNilCandidate = errors.New("cannot push nil candidate")

// Candidate is a chapter scored for processing.
type Candidate struct {
	Key      chapters.Key     `json:"key"`
	Record   *chapters.Record `json:"record,omitempty"`
	Priority float64          `json:"priority"`
}

// PriorityQueue is a thread-safe priority queue of candidates.
// Candidates with higher Priority values are dequeued first.
// When priorities are equal, candidates come out in FIFO order.
type PriorityQueue struct {
	mu    sync.Mutex
	items candidateHeap
	seq   uint64 // FIFO ordering within the same priority
}

// NewPriorityQueue creates a new priority queue.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{items: make(candidateHeap, 0)}
	heap.Init(&pq.items)
	return pq
}

// Push adds a candidate to the queue.
func (pq *PriorityQueue) Push(c *Candidate) error {
	if c == nil {
		return ErrNilCandidate
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.seq++
	heap.Push(&pq.items, &candidateItem{candidate: c, seq: pq.seq})
	return nil
}

// Pop removes and returns the highest priority candidate, or nil when empty.
func (pq *PriorityQueue) Pop() *Candidate {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.items.Len() == 0 {
		return nil
	}
	return heap.Pop(&pq.items).(*candidateItem).candidate
}

// Peek returns the highest priority candidate without removing it.
func (pq *PriorityQueue) Peek() *Candidate {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.items.Len() == 0 {
		return nil
	}
	return pq.items[0].candidate
}

// Len returns the number of queued candidates.
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.items.Len()
}

// CountAtLeast returns how many queued candidates score at least min.
func (pq *PriorityQueue) CountAtLeast(min float64) int {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	n := 0
	for _, item := range pq.items {
		if item.candidate.Priority >= min {
			n++
		}
	}
	return n
}

type candidateItem struct {
	candidate *Candidate
	seq       uint64
}

// candidateHeap implements heap.Interface.
// Higher priority first; equal priorities by lower seq.
type candidateHeap []*candidateItem

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].candidate.Priority != h[j].candidate.Priority {
		return h[i].candidate.Priority > h[j].candidate.Priority
	}
	return h[i].seq < h[j].seq
}

func (h candidateHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(*candidateItem))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}
