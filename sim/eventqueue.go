package sim

import (
	"container/heap"
	"sync"
)

// EventQueue orders events by time. At equal times primary events come
// before secondary ones, and events of the same kind leave in arrival order.
// It is safe for concurrent use.
type EventQueue struct {
	mu      sync.Mutex
	entries entryHeap
	arrived uint64
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push adds an event.
func (q *EventQueue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.entries, entry{
		evt:       e,
		at:        e.Time(),
		secondary: e.IsSecondary(),
		order:     q.arrived,
	})
	q.arrived++
}

// Pop removes and returns the next event, or nil if the queue is empty.
func (q *EventQueue) Pop() Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}

	return heap.Pop(&q.entries).(entry).evt
}

// Peek returns the next event without removing it, or nil if the queue is
// empty.
func (q *EventQueue) Peek() Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}

	return q.entries[0].evt
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}

type entry struct {
	evt       Event
	at        VTime
	secondary bool
	order     uint64
}

func (a entry) before(b entry) bool {
	switch {
	case a.at != b.at:
		return a.at < b.at
	case a.secondary != b.secondary:
		return !a.secondary
	default:
		return a.order < b.order
	}
}

type entryHeap []entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *entryHeap) Pop() any {
	last := len(*h) - 1
	e := (*h)[last]
	(*h)[last] = entry{}
	*h = (*h)[:last]

	return e
}
