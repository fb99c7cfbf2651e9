// Bidirectional cursors over the operation log.
//
// An Iterator walks descriptors between 0 and a limit fixed when it is
// created, normally the ready size at that moment, so writes that finish
// later are invisible to it. Each Next or Previous reads exactly one
// descriptor and moves by its framed size. The first Invalid read halts
// the iterator for good; it never tries to resynchronize past corruption.
// An Unterminated descriptor halts it as well, because whatever follows
// was written by no one the log can vouch for.
package vfslog

import (
	"errors"
	"fmt"

	"github.com/jpl-au/vfslog/op"
)

// ErrExhausted is the cause reported by Next or Previous on an iterator
// that has nothing left in that direction.
var ErrExhausted = errors.New("iterator exhausted")

// Iterator is a stateful cursor. It is not safe for concurrent use; Copy
// it to hand a snapshot to another goroutine.
type Iterator struct {
	log     *opLog
	pos     int64
	limit   int64
	mask    op.Mask
	invalid bool
}

func newIterator(log *opLog, pos, limit int64) *Iterator {
	return &Iterator{log: log, pos: pos, limit: limit, mask: op.AllMask}
}

// HasNext reports whether Next can read another descriptor.
func (it *Iterator) HasNext() bool {
	return !it.invalid && it.pos < it.limit
}

// HasPrevious reports whether Previous can read another descriptor.
func (it *Iterator) HasPrevious() bool {
	return !it.invalid && it.pos > 0
}

// Next reads the descriptor at the cursor and moves past it.
func (it *Iterator) Next() ReadResult {
	if !it.HasNext() {
		return it.exhausted()
	}
	r := it.log.readAt(it.pos, it.mask, it.limit)
	if r.Kind != Invalid {
		it.pos = r.End()
	}
	it.settle(r)
	return r
}

// Previous reads the descriptor ending at the cursor and moves to its
// start.
func (it *Iterator) Previous() ReadResult {
	if !it.HasPrevious() {
		return it.exhausted()
	}
	r := it.log.readPreceding(it.pos, it.mask, it.limit)
	if r.Kind != Invalid {
		it.pos = r.Position
	}
	it.settle(r)
	return r
}

func (it *Iterator) settle(r ReadResult) {
	if r.Kind == Invalid || errors.Is(r.Err, ErrUnterminated) {
		it.invalid = true
	}
}

func (it *Iterator) exhausted() ReadResult {
	return ReadResult{Kind: Invalid, Position: it.pos, Err: fmt.Errorf("%w at %d", ErrExhausted, it.pos)}
}

// Position returns the cursor offset.
func (it *Iterator) Position() int64 {
	return it.pos
}

// Limit returns the exclusive upper bound fixed at creation.
func (it *Iterator) Limit() int64 {
	return it.limit
}

// Valid reports whether the iterator has not been halted by corruption.
func (it *Iterator) Valid() bool {
	return !it.invalid
}

// Mask returns the tags this iterator deserializes.
func (it *Iterator) Mask() op.Mask {
	return it.mask
}

// Copy returns an independent cursor at the same position.
func (it *Iterator) Copy() *Iterator {
	c := *it
	return &c
}

// Filter returns a copy that only deserializes tags in mask; other
// descriptors come back as Incomplete with ErrFiltered.
func (it *Iterator) Filter(mask op.Mask) *Iterator {
	c := it.Copy()
	c.mask = mask
	return c
}
