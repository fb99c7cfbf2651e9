// Producer-side entry points.
//
// EnqueueWrite reserves and marks a descriptor synchronously, so the log
// order is the order of EnqueueWrite calls, and then computes and commits
// the operation on its own goroutine. The caller never waits for the
// commit unless it asks to through the returned PendingWrite. Whatever
// compute does (fail, panic, return the wrong variant), the slot is
// finished: either committed or framed as failed, so the ready size can
// always move past it.
package vfslog

import (
	"errors"
	"fmt"

	"github.com/jpl-au/vfslog/op"
)

// PendingWrite tracks one enqueued descriptor.
type PendingWrite struct {
	tag  op.Tag
	pos  int64
	done chan struct{}
	err  error
}

// Tag returns the requested tag.
func (w *PendingWrite) Tag() op.Tag {
	return w.tag
}

// Position returns the descriptor offset, or -1 if nothing was reserved.
func (w *PendingWrite) Position() int64 {
	return w.pos
}

// Done is closed once the descriptor is committed or framed as failed.
func (w *PendingWrite) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until Done and returns the write's error, if any.
func (w *PendingWrite) Wait() error {
	<-w.done
	return w.err
}

func failedWrite(tag op.Tag, err error) *PendingWrite {
	w := &PendingWrite{tag: tag, pos: -1, done: make(chan struct{}), err: err}
	close(w.done)
	return w
}

// EnqueueWrite logs the operation compute returns. compute runs on
// another goroutine and may write payloads through WritePayload; the
// operation it returns must carry tag.
func (l *Log) EnqueueWrite(tag op.Tag, compute func() (op.Operation, error)) *PendingWrite {
	if l.readOnly {
		return failedWrite(tag, l.roErr)
	}
	if _, err := op.DescriptorSize(tag); err != nil {
		return failedWrite(tag, fmt.Errorf("enqueue: %w", err))
	}

	l.gate.RLock()
	if l.state.Load() != stateOpen {
		l.gate.RUnlock()
		return failedWrite(tag, ErrClosed)
	}
	l.writes.Add(1)
	l.gate.RUnlock()

	l.stats.enqueued.Add(1)
	pos, size, err := l.ops.reserve(tag)
	w := &PendingWrite{tag: tag, pos: pos, done: make(chan struct{})}
	if err != nil {
		go l.finish(w, size, fmt.Errorf("enqueue: %w", err))
		return w
	}

	go func() {
		l.finish(w, size, l.ops.commit(pos, size, tag, compute))
	}()
	return w
}

// finish frames a failed write, releases the reservation and completes w.
func (l *Log) finish(w *PendingWrite, size int64, err error) {
	defer l.writes.Done()

	if err != nil {
		if aerr := l.ops.abort(w.pos, size, w.tag); aerr != nil {
			err = errors.Join(err, fmt.Errorf("abort: %w", aerr))
		}
		l.stats.failed.Add(1)
		l.logger.Warn("vfslog: write failed", "position", w.pos, "tag", w.tag.String(), "err", err)
		if l.config.OnWriteError != nil {
			l.config.OnWriteError(w.tag, w.pos, err)
		}
	} else {
		l.stats.committed.Add(1)
	}

	l.ops.tracker.finishAdvance(w.pos)
	w.err = err
	close(w.done)
}

// WritePayload stores data and returns a ref for use in an operation.
func (l *Log) WritePayload(data []byte) (op.PayloadRef, error) {
	return l.WritePayloadFunc(len(data), func(buf []byte) error {
		copy(buf, data)
		return nil
	})
}

// WritePayloadFunc stores a size byte payload that fill writes into the
// buffer it is given.
func (l *Log) WritePayloadFunc(size int, fill func([]byte) error) (op.PayloadRef, error) {
	if l.state.Load() == stateClosed {
		return 0, ErrClosed
	}
	ref, err := l.payloads.write(size, fill)
	if err != nil {
		return 0, err
	}
	l.stats.payloads.Add(1)
	return ref, nil
}

// ReadPayload returns the payload behind ref. Payloads that are not
// written yet, were dropped, or are damaged yield ErrNotAvailable.
func (l *Log) ReadPayload(ref op.PayloadRef) ([]byte, error) {
	return l.payloads.read(ref)
}

// Failure returns an exception result naming the dynamic type of err,
// storing the name as a payload.
func (l *Log) Failure(err error) op.Result {
	ref, perr := l.WritePayload([]byte(fmt.Sprintf("%T", err)))
	if perr != nil {
		l.logger.Warn("vfslog: exception name not stored", "err", perr)
		ref, _ = op.Inline(nil)
	}
	return op.Exception(ref)
}
