// Event-range reconstruction.
//
// Higher-level file-system events are logged as a bracket: an event
// start descriptor, the operations that carry the event out, and an
// EventEnd naming the start's tag. EventIterator walks an Iterator and
// groups each bracket into one EventRange. Brackets do not nest; a
// second start before the end, or an end naming another start, is
// corruption and halts the iterator. A bracket cut short by the end of
// the log is reported as partial, since that is what an unclean shutdown
// mid-event looks like, and the walk carries on past its opening
// descriptor.
package vfslog

import (
	"errors"
	"fmt"
	"iter"

	"github.com/jpl-au/vfslog/op"
)

// Direction is a scan direction.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// PartialEventError reports a bracket whose other half lies beyond the
// iterator's bounds. Position is the start descriptor for a forward
// scan and the end descriptor for a backward one.
type PartialEventError struct {
	Position  int64
	Direction Direction
}

func (e *PartialEventError) Error() string {
	return fmt.Sprintf("partial event at %d: no match scanning %s", e.Position, e.Direction)
}

// EntryKind classifies an EventEntry.
type EntryKind int

const (
	// EntryOperation is a descriptor outside any bracket.
	EntryOperation EntryKind = iota + 1
	// EntryEvent is a validated bracket.
	EntryEvent
	// EntryInvalid halts the iterator.
	EntryInvalid
	// EntryPartial is a bracket with one half missing.
	EntryPartial
)

func (k EntryKind) String() string {
	switch k {
	case EntryOperation:
		return "operation"
	case EntryEvent:
		return "event"
	case EntryInvalid:
		return "invalid"
	case EntryPartial:
		return "partial"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// EventEntry is one step of an EventIterator.
type EventEntry struct {
	Kind  EntryKind
	Read  ReadResult  // the descriptor read; the opening one for events
	Range *EventRange // set for EntryEvent
	Err   error       // set for EntryInvalid and EntryPartial
}

// EventRange is a validated Start..End bracket.
type EventRange struct {
	log   *opLog
	Start ReadResult
	End   ReadResult
}

// Tag returns the event start tag.
func (r *EventRange) Tag() op.Tag {
	return r.Start.Tag
}

// Operations iterates the descriptors strictly between the brackets.
// Iteration stops after an Invalid read.
func (r *EventRange) Operations(dir Direction) iter.Seq[ReadResult] {
	lo, hi := r.Start.End(), r.End.Position
	return func(yield func(ReadResult) bool) {
		if dir == Backward {
			it := newIterator(r.log, hi, hi)
			for it.Position() > lo && it.HasPrevious() {
				if !yield(it.Previous()) {
					return
				}
			}
			return
		}
		it := newIterator(r.log, lo, hi)
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// EventIterator groups an Iterator's descriptors into events.
type EventIterator struct {
	it     *Iterator
	halted bool
}

// NewEventIterator returns an event iterator over a copy of it.
func NewEventIterator(it *Iterator) *EventIterator {
	c := it.Copy()
	c.mask = op.AllMask
	return &EventIterator{it: c}
}

// HasNext reports whether Next can return another entry.
func (e *EventIterator) HasNext() bool {
	return !e.halted && e.it.HasNext()
}

// HasPrevious reports whether Previous can return another entry.
func (e *EventIterator) HasPrevious() bool {
	return !e.halted && e.it.HasPrevious()
}

// Position returns the underlying cursor offset.
func (e *EventIterator) Position() int64 {
	return e.it.Position()
}

// Next returns the entry at the cursor and moves past it.
func (e *EventIterator) Next() EventEntry {
	if !e.HasNext() {
		return e.fail(e.it.exhausted(), ErrExhausted)
	}
	r := e.it.Next()
	switch {
	case r.Kind == Invalid:
		return e.fail(r, r.Err)
	case r.Tag == op.EventEnd:
		return e.fail(r, fmt.Errorf("%w at %d", ErrUnmatchedEventEnd, r.Position))
	case !r.Tag.IsEventStart():
		return EventEntry{Kind: EntryOperation, Read: r}
	}

	scan := e.it.Filter(op.EventEndMask)
	for scan.HasNext() {
		s := scan.Next()
		switch {
		case s.Kind == Invalid:
			return e.fail(r, s.Err)
		case s.Tag.IsEventStart():
			return e.fail(r, fmt.Errorf("%w: %s at %d inside %s at %d", ErrNestedEvent, s.Tag, s.Position, r.Tag, r.Position))
		case s.Tag != op.EventEnd:
			continue
		}
		if err := matchEnd(r, s); err != nil {
			return e.fail(r, err)
		}
		e.it.pos = s.End()
		return EventEntry{Kind: EntryEvent, Read: r, Range: &EventRange{log: e.it.log, Start: r, End: s}}
	}
	return EventEntry{Kind: EntryPartial, Read: r, Err: &PartialEventError{Position: r.Position, Direction: Forward}}
}

// Previous returns the entry ending at the cursor and moves before it.
func (e *EventIterator) Previous() EventEntry {
	if !e.HasPrevious() {
		return e.fail(e.it.exhausted(), ErrExhausted)
	}
	r := e.it.Previous()
	switch {
	case r.Kind == Invalid:
		return e.fail(r, r.Err)
	case r.Tag.IsEventStart():
		return e.fail(r, fmt.Errorf("%w at %d", ErrUnmatchedEventStart, r.Position))
	case r.Tag != op.EventEnd:
		return EventEntry{Kind: EntryOperation, Read: r}
	}

	scan := e.it.Filter(op.EventStartMask)
	for scan.HasPrevious() {
		s := scan.Previous()
		switch {
		case s.Kind == Invalid:
			return e.fail(r, s.Err)
		case s.Tag == op.EventEnd:
			return e.fail(r, fmt.Errorf("%w: %s at %d before %s at %d", ErrNestedEvent, s.Tag, s.Position, r.Tag, r.Position))
		case !s.Tag.IsEventStart():
			continue
		}
		if err := matchEnd(s, r); err != nil {
			return e.fail(r, err)
		}
		e.it.pos = s.Position
		return EventEntry{Kind: EntryEvent, Read: r, Range: &EventRange{log: e.it.log, Start: s, End: r}}
	}
	return EventEntry{Kind: EntryPartial, Read: r, Err: &PartialEventError{Position: r.Position, Direction: Backward}}
}

// matchEnd checks that end closes start.
func matchEnd(start, end ReadResult) error {
	if end.Kind != Complete {
		return fmt.Errorf("%w: end at %d unreadable: %w", ErrEventMismatch, end.Position, end.Err)
	}
	closes := end.Op.(op.EndEvent).EventTag
	if closes != start.Tag {
		return fmt.Errorf("%w: %s at %d closed by end of %s at %d", ErrEventMismatch, start.Tag, start.Position, closes, end.Position)
	}
	return nil
}

func (e *EventIterator) fail(r ReadResult, err error) EventEntry {
	if !errors.Is(err, ErrExhausted) {
		e.halted = true
	}
	return EventEntry{Kind: EntryInvalid, Read: r, Err: err}
}
