// Byte range reservation for concurrent appenders.
//
// A tracker hands out contiguous ranges from an atomic cursor and
// remembers which of them are still being written. The ready position is
// the start of the oldest unfinished reservation, or the cursor when
// nothing is outstanding: every byte below it belongs to a finished
// write and is safe to read or flush. Reservations may finish in any
// order; finishing one that is not the oldest only removes it from the
// outstanding set.
//
// The outstanding set is a min-heap of start offsets. Finished entries
// that are not at the top are remembered in a set and discarded lazily
// when they surface, so both operations stay O(log n). A separate set of
// open starts lets finishAdvance reject positions it never handed out.
package vfslog

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
)

type tracker struct {
	cursor atomic.Int64 // next free byte (emerging size)
	ready  atomic.Int64 // every reservation below this has finished

	mu       sync.Mutex
	pending  offsets            // starts of reservations not yet popped
	open     map[int64]struct{} // starts of unfinished reservations
	finished map[int64]struct{} // finished but not yet popped
}

func newTracker(start int64) *tracker {
	t := &tracker{
		open:     make(map[int64]struct{}),
		finished: make(map[int64]struct{}),
	}
	t.cursor.Store(start)
	t.ready.Store(start)
	return t
}

// beginAdvance reserves size bytes and returns the start of the range.
// The caller must call finishAdvance with the returned position exactly
// once, whatever happens to the write.
func (t *tracker) beginAdvance(size int64) int64 {
	t.mu.Lock()
	pos := t.cursor.Add(size) - size
	heap.Push(&t.pending, pos)
	t.open[pos] = struct{}{}
	t.mu.Unlock()
	return pos
}

// finishAdvance marks the reservation starting at pos as written and
// moves the ready position past every leading finished reservation.
func (t *tracker) finishAdvance(pos int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.open[pos]; !ok {
		panic(fmt.Sprintf("vfslog: finishAdvance(%d) without open reservation", pos))
	}
	delete(t.open, pos)
	if t.pending[0] != pos {
		t.finished[pos] = struct{}{}
		return
	}

	heap.Pop(&t.pending)
	for len(t.pending) > 0 {
		if _, ok := t.finished[t.pending[0]]; !ok {
			break
		}
		delete(t.finished, heap.Pop(&t.pending).(int64))
	}

	if len(t.pending) == 0 {
		t.ready.Store(t.cursor.Load())
	} else {
		t.ready.Store(t.pending[0])
	}
}

// readyPosition returns the end of the fully written prefix.
func (t *tracker) readyPosition() int64 {
	return t.ready.Load()
}

// currentAdvancePosition returns the cursor, including reservations that
// are still being written.
func (t *tracker) currentAdvancePosition() int64 {
	return t.cursor.Load()
}

// outstanding returns the number of unfinished reservations.
func (t *tracker) outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// offsets is a min-heap of reservation starts.
type offsets []int64

func (h offsets) Len() int           { return len(h) }
func (h offsets) Less(i, j int) bool { return h[i] < h[j] }
func (h offsets) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *offsets) Push(x any)        { *h = append(*h, x.(int64)) }

func (h *offsets) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
