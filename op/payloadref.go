package op

import (
	"errors"
	"fmt"
)

// PayloadRef is an 8 byte handle to a variable-length blob. The top byte
// selects the source; the low 56 bits hold either an offset into the
// payload store or, for blobs of at most 7 bytes, the bytes themselves.
type PayloadRef uint64

// Source selects how a PayloadRef's low bits are interpreted.
type Source uint8

// Sources 0 through 7 are the inline planes: the source value is the
// number of inlined bytes.
const (
	SourceInline0 Source = iota
	SourceInline1
	SourceInline2
	SourceInline3
	SourceInline4
	SourceInline5
	SourceInline6
	SourceInline7
	SourceExternal
)

const (
	// MaxInline is the largest blob that fits inside a PayloadRef.
	MaxInline = 7

	// MaxOffset is the largest payload store offset a PayloadRef can address.
	MaxOffset = 1<<56 - 1

	sourceShift = 56
)

// ErrInvalidRef marks a PayloadRef with an unknown source.
var ErrInvalidRef = errors.New("invalid payload ref")

// Source returns the plane r belongs to.
func (r PayloadRef) Source() Source {
	return Source(r >> sourceShift)
}

// Offset returns the low 56 bits of r.
func (r PayloadRef) Offset() int64 {
	return int64(r & MaxOffset)
}

// IsInline reports whether r carries its bytes directly.
func (r PayloadRef) IsInline() bool {
	return r.Source() <= SourceInline7
}

func (r PayloadRef) String() string {
	if r.IsInline() {
		return fmt.Sprintf("inline(%d):%x", r.Source(), r.Offset())
	}
	if r.Source() == SourceExternal {
		return fmt.Sprintf("external:%d", r.Offset())
	}
	return fmt.Sprintf("invalid:%#x", uint64(r))
}

// ExternalRef returns a ref to the payload store record at offset.
func ExternalRef(offset int64) (PayloadRef, error) {
	if offset < 0 || offset > MaxOffset {
		return 0, fmt.Errorf("%w: offset %d out of range", ErrInvalidRef, offset)
	}
	return PayloadRef(SourceExternal)<<sourceShift | PayloadRef(offset), nil
}

// Inline packs data of at most MaxInline bytes into a ref.
func Inline(data []byte) (PayloadRef, error) {
	if len(data) > MaxInline {
		return 0, fmt.Errorf("%w: %d bytes cannot be inlined", ErrInvalidRef, len(data))
	}
	var v uint64
	for i, b := range data {
		v |= uint64(b) << (8 * i)
	}
	return PayloadRef(len(data))<<sourceShift | PayloadRef(v), nil
}

// UnInline returns the bytes carried by an inline ref.
func UnInline(r PayloadRef) ([]byte, error) {
	if !r.IsInline() {
		return nil, fmt.Errorf("%w: %s is not inline", ErrInvalidRef, r)
	}
	n := int(r.Source())
	v := uint64(r.Offset())
	out := make([]byte, n)
	for i := range n {
		out[i] = byte(v >> (8 * i))
	}
	return out, nil
}
