// Descriptor framing for the operation log.
//
// Every descriptor is [tag][value][tag], where value has the fixed size
// op.ValueSize(tag). Both tag bytes are signed:
//
//   - reserved:   [-tag][........][ ?? ]  leading byte written at reservation
//   - committed:  [+tag][ value  ][+tag]  trailing byte first, then leading
//   - failed:     [-tag][ ?????? ][-tag]  error framing, value unusable
//
// The leading byte is flipped last, so a positive leading byte means the
// value and trailing byte are already on disk. A negative leading byte
// with a matching trailing byte (either sign) is a write that is still
// committing or that failed; it is readable as Incomplete and its extent
// is known. A negative leading byte with anything else at the trailing
// end is a write that never finished, and nothing after it can be
// trusted.
package vfslog

import (
	"fmt"
	"sync/atomic"

	"github.com/jpl-au/vfslog/op"
)

// ReadKind classifies the outcome of reading one descriptor.
type ReadKind int

const (
	// Complete: framing checked and value decoded.
	Complete ReadKind = iota + 1
	// Incomplete: tag and extent known, value not available. Err says why
	// (ErrUncommitted, ErrUnterminated or ErrFiltered).
	Incomplete
	// Invalid: framing inconsistent or unreadable. Iteration stops here.
	Invalid
)

func (k ReadKind) String() string {
	switch k {
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("ReadKind(%d)", int(k))
	}
}

// ReadResult is one descriptor as seen by a reader.
type ReadResult struct {
	Kind     ReadKind
	Tag      op.Tag       // zero when Invalid and the tag could not be recovered
	Position int64        // offset of the leading tag byte
	Size     int64        // framed size, zero when unknown
	Op       op.Operation // set only when Complete
	Err      error
}

// End returns the offset just past the descriptor.
func (r ReadResult) End() int64 {
	return r.Position + r.Size
}

func invalid(pos int64, tag op.Tag, err error) ReadResult {
	return ReadResult{Kind: Invalid, Tag: tag, Position: pos, Err: err}
}

// opLog is the descriptor file plus its reservation tracker.
type opLog struct {
	file       *storage
	tracker    *tracker
	persistent atomic.Int64
}

func newOpLog(file *storage, size int64) *opLog {
	l := &opLog{file: file, tracker: newTracker(size)}
	l.persistent.Store(size)
	return l
}

// decodeTag recovers the tag from a framing byte. neg reports a negated
// (reserved or failed) marker.
func decodeTag(b byte) (tag op.Tag, neg bool, ok bool) {
	n := int(int8(b))
	if n < 0 {
		n, neg = -n, true
	}
	tag = op.Tag(n)
	return tag, neg, n != 0 && tag.Valid()
}

// negated returns the framing byte that marks t reserved or failed.
func negated(t op.Tag) byte {
	return byte(-int8(t))
}

// readAt reads the descriptor starting at pos. Tags outside mask are
// reported as Incomplete without decoding their value. The descriptor
// must end at or before limit.
func (l *opLog) readAt(pos int64, mask op.Mask, limit int64) (r ReadResult) {
	defer func() {
		if p := recover(); p != nil {
			r = invalid(pos, r.Tag, fmt.Errorf("%w: at %d: %v", ErrCorruptDescriptor, pos, p))
		}
	}()

	if pos < 0 || pos >= limit {
		return invalid(pos, 0, fmt.Errorf("%w: position %d outside [0, %d)", ErrCorruptDescriptor, pos, limit))
	}
	lead, err := l.file.readByte(pos)
	if err != nil {
		return invalid(pos, 0, fmt.Errorf("read at %d: %w", pos, err))
	}
	tag, neg, ok := decodeTag(lead)
	if !ok {
		return invalid(pos, 0, fmt.Errorf("%w: at %d: unknown tag byte %d", ErrCorruptDescriptor, pos, int8(lead)))
	}
	size, err := op.DescriptorSize(tag)
	if err != nil {
		return invalid(pos, tag, err)
	}
	n := int64(size)
	if pos+n > limit {
		return invalid(pos, tag, fmt.Errorf("%w: at %d: %s runs past %d", ErrCorruptDescriptor, pos, tag, limit))
	}

	if neg {
		trail, err := l.file.readByte(pos + n - 1)
		if err != nil {
			return invalid(pos, tag, fmt.Errorf("read at %d: %w", pos+n-1, err))
		}
		r = ReadResult{Kind: Incomplete, Tag: tag, Position: pos, Size: n, Err: ErrUncommitted}
		if t, _, ok := decodeTag(trail); !ok || t != tag {
			r.Err = ErrUnterminated
		}
		return r
	}

	buf := make([]byte, n)
	if err := l.file.readAt(pos, buf); err != nil {
		return invalid(pos, tag, fmt.Errorf("read at %d: %w", pos, err))
	}
	if buf[n-1] != byte(tag) {
		return invalid(pos, tag, fmt.Errorf("%w: at %d: %s closed by byte %d", ErrCorruptDescriptor, pos, tag, int8(buf[n-1])))
	}
	if !mask.Contains(tag) {
		return ReadResult{Kind: Incomplete, Tag: tag, Position: pos, Size: n, Err: ErrFiltered}
	}

	o, err := op.Unmarshal(tag, buf[1:n-1])
	if err != nil {
		return ReadResult{Kind: Invalid, Tag: tag, Position: pos, Size: n, Err: fmt.Errorf("%w: at %d: %w", ErrCorruptDescriptor, pos, err)}
	}
	return ReadResult{Kind: Complete, Tag: tag, Position: pos, Size: n, Op: o}
}

// readPreceding reads the descriptor that ends at pos, locating its start
// from the trailing tag byte at pos-1.
func (l *opLog) readPreceding(pos int64, mask op.Mask, limit int64) ReadResult {
	if pos <= 0 || pos > limit {
		return invalid(pos, 0, fmt.Errorf("%w: no descriptor ends at %d", ErrCorruptDescriptor, pos))
	}
	trail, err := l.file.readByte(pos - 1)
	if err != nil {
		return invalid(pos, 0, fmt.Errorf("read at %d: %w", pos-1, err))
	}
	tag, _, ok := decodeTag(trail)
	if !ok {
		return invalid(pos, 0, fmt.Errorf("%w: at %d: unknown trailing tag byte %d", ErrCorruptDescriptor, pos-1, int8(trail)))
	}
	size, err := op.DescriptorSize(tag)
	if err != nil {
		return invalid(pos, tag, err)
	}
	start := pos - int64(size)
	if start < 0 {
		return invalid(pos, tag, fmt.Errorf("%w: %s ending at %d starts before 0", ErrCorruptDescriptor, tag, pos))
	}

	r := l.readAt(start, mask, limit)
	if r.Kind != Invalid && r.Tag != tag {
		return invalid(start, tag, fmt.Errorf("%w: at %d: leading %s, trailing %s", ErrCorruptDescriptor, start, r.Tag, tag))
	}
	return r
}

// reserve allocates space for a tag descriptor and marks it reserved.
// The returned position must be finished through commit or abort.
func (l *opLog) reserve(tag op.Tag) (pos, size int64, err error) {
	n, err := op.DescriptorSize(tag)
	if err != nil {
		return -1, 0, err
	}
	size = int64(n)
	pos = l.tracker.beginAdvance(size)
	if err := l.file.writeAt(pos, []byte{negated(tag)}); err != nil {
		return pos, size, err
	}
	return pos, size, nil
}

// commit computes the operation, writes its value and trailing tag, and
// finally flips the leading tag to positive.
func (l *opLog) commit(pos, size int64, tag op.Tag, compute func() (op.Operation, error)) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("compute %s: panic: %v", tag, p)
		}
	}()

	o, err := compute()
	if err != nil {
		return fmt.Errorf("compute %s: %w", tag, err)
	}
	if o == nil {
		return fmt.Errorf("%w: want %s, got nil", ErrTagMismatch, tag)
	}
	if o.Tag() != tag {
		return fmt.Errorf("%w: want %s, got %s", ErrTagMismatch, tag, o.Tag())
	}

	buf := make([]byte, size)
	if err := op.Marshal(o, buf[1:size-1]); err != nil {
		return err
	}
	buf[size-1] = byte(tag)
	if err := l.file.writeAt(pos+1, buf[1:]); err != nil {
		return err
	}
	return l.file.writeAt(pos, []byte{byte(tag)})
}

// abort writes error framing so the slot reads as Incomplete.
func (l *opLog) abort(pos, size int64, tag op.Tag) error {
	neg := negated(tag)
	if err := l.file.writeAt(pos+size-1, []byte{neg}); err != nil {
		return err
	}
	return l.file.writeAt(pos, []byte{neg})
}

func (l *opLog) size() int64 {
	return l.tracker.readyPosition()
}

func (l *opLog) emergingSize() int64 {
	return l.tracker.currentAdvancePosition()
}
