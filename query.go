// Query sessions and the compaction exclusion.
//
// Readers and the compactor share one weighted semaphore whose capacity
// is Config.MaxQuerySessions. A query session takes one unit, a
// compaction takes all of them, so any number of sessions run together
// while a compaction runs alone. The semaphore is FIFO: once a
// compaction is waiting, new sessions queue behind it rather than
// starving it.
//
// A session pins the ready size at acquisition. Its iterators are bounded
// by that size, so writes that finish while it is open stay invisible.
package vfslog

import (
	"context"
	"sync"

	"github.com/jpl-au/vfslog/op"
)

// QuerySession is a read snapshot that keeps compaction out until Close.
type QuerySession struct {
	log   *Log
	limit int64
	once  sync.Once
}

// Query blocks until no compaction is running and opens a session.
func (l *Log) Query(ctx context.Context) (*QuerySession, error) {
	if l.state.Load() == stateClosed {
		return nil, ErrClosed
	}
	if err := l.sessions.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return l.newSession(), nil
}

// TryQuery opens a session, or returns nil if a compaction holds or is
// waiting for the log.
func (l *Log) TryQuery() *QuerySession {
	if l.state.Load() == stateClosed || !l.sessions.TryAcquire(1) {
		return nil
	}
	return l.newSession()
}

func (l *Log) newSession() *QuerySession {
	return &QuerySession{log: l, limit: l.ops.size()}
}

// Size returns the ready size pinned when the session was opened.
func (s *QuerySession) Size() int64 {
	return s.limit
}

// Begin returns a new iterator at the start of the snapshot.
func (s *QuerySession) Begin() *Iterator {
	return newIterator(s.log.ops, 0, s.limit)
}

// End returns a new iterator at the end of the snapshot.
func (s *QuerySession) End() *Iterator {
	return newIterator(s.log.ops, s.limit, s.limit)
}

// Events returns an event iterator at the start of the snapshot.
func (s *QuerySession) Events() *EventIterator {
	return NewEventIterator(s.Begin())
}

// ReadPayload reads a payload referenced by a descriptor of the session.
func (s *QuerySession) ReadPayload(ref op.PayloadRef) ([]byte, error) {
	return s.log.payloads.read(ref)
}

// Close releases the session. Further calls are no-ops.
func (s *QuerySession) Close() {
	s.once.Do(func() {
		s.log.sessions.Release(1)
	})
}
