// Compaction sessions.
//
// The engine does not decide what to compact. It only hands out the
// exclusive context a compactor needs: while one is held no query session
// exists, so nothing can be reading payloads that get dropped.
package vfslog

import (
	"context"
	"sync"
)

// CompactionContext is an exclusive hold on the log. Close releases it.
type CompactionContext struct {
	log  *Log
	once sync.Once
}

// AcquireCompaction blocks until every query session has closed, then
// takes the log exclusively.
func (l *Log) AcquireCompaction(ctx context.Context) (*CompactionContext, error) {
	if l.state.Load() == stateClosed {
		return nil, ErrClosed
	}
	if l.readOnly {
		return nil, ErrReadOnly
	}
	if err := l.sessions.Acquire(ctx, l.capacity); err != nil {
		return nil, err
	}
	return l.newCompaction(), nil
}

// TryAcquireCompaction takes the log exclusively, or returns nil if any
// query session or compaction holds it.
func (l *Log) TryAcquireCompaction() *CompactionContext {
	if l.state.Load() == stateClosed || l.readOnly || !l.sessions.TryAcquire(l.capacity) {
		return nil
	}
	return l.newCompaction()
}

func (l *Log) newCompaction() *CompactionContext {
	l.compacting.Store(true)
	l.logger.Debug("vfslog: compaction started")
	return &CompactionContext{log: l}
}

// IsCompactionRunning reports whether a compaction context is held. It
// takes no lock and is meant for diagnostics.
func (l *Log) IsCompactionRunning() bool {
	return l.compacting.Load()
}

// DropPayloadsUpTo makes every payload stored below pos unreadable and
// releases its space. pos must be a record boundary no greater than
// the payload size; references below it read as ErrNotAvailable.
func (c *CompactionContext) DropPayloadsUpTo(pos int64) error {
	if err := c.log.payloads.dropUpTo(pos); err != nil {
		return err
	}
	c.log.logger.Info("vfslog: payloads dropped", "position", pos)
	return nil
}

// Close ends the compaction. Further calls are no-ops.
func (c *CompactionContext) Close() {
	c.once.Do(func() {
		c.log.compacting.Store(false)
		c.log.sessions.Release(c.log.capacity)
		c.log.logger.Debug("vfslog: compaction finished")
	})
}
