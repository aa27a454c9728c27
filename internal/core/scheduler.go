package core

import (
	"InsMarket/internal/event"
	"container/heap"
)

// Scheduled is a queued event. Seq is the insertion counter and breaks ties
// between events due on the same day.
type Scheduled struct {
	Day   event.Day
	Seq   uint64
	Event event.Event
}

// Scheduler is the pending-event queue: a min-heap ordered by (Day, Seq).
// Not thread-safe; only the dispatch loop touches it.
type Scheduler struct {
	items scheduledHeap
	next  uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Push queues ev for day and returns its insertion counter.
func (s *Scheduler) Push(day event.Day, ev event.Event) uint64 {
	seq := s.next
	s.next++
	heap.Push(&s.items, Scheduled{Day: day, Seq: seq, Event: ev})
	return seq
}

// PopMin removes and returns the earliest event. ok is false on an empty
// queue, which is the only way a run ends.
func (s *Scheduler) PopMin() (Scheduled, bool) {
	if len(s.items) == 0 {
		return Scheduled{}, false
	}
	return heap.Pop(&s.items).(Scheduled), true
}

// Peek returns the earliest event without removing it.
func (s *Scheduler) Peek() (Scheduled, bool) {
	if len(s.items) == 0 {
		return Scheduled{}, false
	}
	return s.items[0], true
}

func (s *Scheduler) Len() int {
	return len(s.items)
}

type scheduledHeap []Scheduled

func (h scheduledHeap) Len() int { return len(h) }

func (h scheduledHeap) Less(i, j int) bool {
	if h[i].Day != h[j].Day {
		return h[i].Day < h[j].Day
	}
	return h[i].Seq < h[j].Seq
}

func (h scheduledHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scheduledHeap) Push(x any) {
	*h = append(*h, x.(Scheduled))
}

func (h *scheduledHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = Scheduled{}
	*h = old[:n-1]
	return item
}
