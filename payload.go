// Payload side-store for variable-length operation data.
//
// Descriptors have a fixed size per tag, so attribute values, file names
// and content bytes live here and are referenced by an op.PayloadRef.
// Blobs of at most op.MaxInline bytes are packed into the ref and never
// touch the file. Larger blobs are appended as a record:
//
//	uvarint(storedLen<<1 | compressed) | stored bytes
//
// Records are reserved through their own tracker, so concurrent writers
// append without a lock and a record becomes readable once every record
// before it has finished. Reads never panic on bad input: an offset past
// the ready size, below the drop watermark, or pointing at a malformed
// header is reported as ErrNotAvailable.
package vfslog

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/jpl-au/vfslog/op"
)

type payloadStore struct {
	file      *storage
	tracker   *tracker
	start     atomic.Int64 // drop watermark
	readOnly  bool
	compress  bool
	threshold int
	maxSize   int
}

func newPayloadStore(file *storage, size, start int64, config Config, readOnly bool) *payloadStore {
	p := &payloadStore{
		file:      file,
		tracker:   newTracker(size),
		readOnly:  readOnly,
		compress:  config.CompressPayloads,
		threshold: config.CompressThreshold,
		maxSize:   config.MaxPayloadSize,
	}
	p.start.Store(start)
	return p
}

// write stores a size byte blob produced by fill and returns its ref.
// fill runs before anything is reserved, so a failing fill leaves no
// trace in the file.
func (p *payloadStore) write(size int, fill func([]byte) error) (op.PayloadRef, error) {
	if p.readOnly {
		return 0, ErrReadOnly
	}
	if size < 0 || size > p.maxSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, size)
	}

	buf := make([]byte, size)
	if err := fill(buf); err != nil {
		return 0, fmt.Errorf("payload: fill: %w", err)
	}
	if size <= op.MaxInline {
		return op.Inline(buf)
	}

	stored, flag := buf, uint64(0)
	if p.compress && size >= p.threshold {
		if c := compress(buf); len(c) < size {
			stored, flag = c, 1
		}
	}

	rec := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(stored)), uint64(len(stored))<<1|flag)
	rec = append(rec, stored...)

	pos := p.tracker.beginAdvance(int64(len(rec)))
	defer p.tracker.finishAdvance(pos)

	if err := p.file.writeAt(pos, rec); err != nil {
		return 0, fmt.Errorf("payload: %w", err)
	}
	return op.ExternalRef(pos)
}

// read returns the blob behind ref.
func (p *payloadStore) read(ref op.PayloadRef) ([]byte, error) {
	if ref.IsInline() {
		return op.UnInline(ref)
	}
	if ref.Source() != op.SourceExternal {
		return nil, fmt.Errorf("payload: %w", op.ErrInvalidRef)
	}

	off := ref.Offset()
	ready := p.tracker.readyPosition()
	if off < p.start.Load() {
		return nil, fmt.Errorf("%w: %s dropped", ErrNotAvailable, ref)
	}
	if off >= ready {
		return nil, fmt.Errorf("%w: %s beyond size %d", ErrNotAvailable, ref, ready)
	}

	hdr := make([]byte, min(int64(binary.MaxVarintLen64), ready-off))
	if err := p.file.readAt(off, hdr); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotAvailable, ref, err)
	}
	v, k := binary.Uvarint(hdr)
	if k <= 0 {
		return nil, fmt.Errorf("%w: %s: malformed length", ErrNotAvailable, ref)
	}
	length, compressed := v>>1, v&1 == 1
	if length > uint64(p.maxSize) || off+int64(k)+int64(length) > ready {
		return nil, fmt.Errorf("%w: %s: length %d out of bounds", ErrNotAvailable, ref, length)
	}

	body := make([]byte, length)
	if err := p.file.readAt(off+int64(k), body); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotAvailable, ref, err)
	}
	if compressed {
		data, err := decompress(body, p.maxSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAvailable, ref, err)
		}
		return data, nil
	}
	return body, nil
}

// dropUpTo makes every record below pos unreadable and releases its
// disk space where the filesystem allows. The watermark only moves
// forward.
func (p *payloadStore) dropUpTo(pos int64) error {
	if p.readOnly {
		return ErrReadOnly
	}
	if ready := p.tracker.readyPosition(); pos > ready {
		return fmt.Errorf("payload: drop %d beyond size %d", pos, ready)
	}
	for {
		old := p.start.Load()
		if pos <= old {
			return nil
		}
		if p.start.CompareAndSwap(old, pos) {
			return p.file.punchHole(old, pos-old)
		}
	}
}

func (p *payloadStore) size() int64 {
	return p.tracker.readyPosition()
}
