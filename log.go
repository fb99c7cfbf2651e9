// Log type and lifecycle operations.
//
// Log owns a log directory: the version and attributes files, the
// operation and payload logs, and the directory lock. It coordinates
// writers (EnqueueWrite, WritePayload), readers (Query sessions and
// iterators) and the compaction exclusion, and it is the only holder of
// per-log state; two logs opened in one process share nothing.
package vfslog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/jpl-au/vfslog/op"
)

// MismatchPolicy decides what Open does with a log written by another
// layout version.
type MismatchPolicy int

const (
	// MismatchReset discards all prior data and starts a fresh log.
	MismatchReset MismatchPolicy = iota
	// MismatchReadOnly opens the log read-only and refuses writes.
	MismatchReadOnly
)

// Config holds log configuration options.
type Config struct {
	ReadOnly          bool           // Open without writing anything
	SyncWrites        bool           // Call fsync after every write
	CompressPayloads  bool           // Zstd-compress large payloads
	CompressThreshold int            // Minimum payload size to compress (default 512)
	MaxPayloadSize    int            // Maximum single payload size (default 64MB)
	MaxQuerySessions  int64          // Concurrent query sessions (default 65536)
	Algorithm         int            // Attributes checksum, for new logs (default xxHash3)
	OnVersionMismatch MismatchPolicy // What to do with a log of another version
	Logger            *slog.Logger   // Diagnostics (default discards)

	// OnWriteError is called after a write has been framed as failed.
	OnWriteError func(tag op.Tag, pos int64, err error)
}

// Lifecycle states.
const (
	stateOpen    = 0
	stateClosing = 1 // no new writes; in-flight writes still complete
	stateClosed  = 2
)

// Log is an open operation log.
type Log struct {
	root     *os.Root
	lock     *fileLock
	header   *Header
	config   Config
	logger   *slog.Logger
	ops      *opLog
	payloads *payloadStore
	opsFile  *storage
	payFile  *storage
	readOnly bool
	roErr    error // returned to writers when readOnly

	gate   sync.RWMutex // orders EnqueueWrite against Close
	state  atomic.Int32
	writes sync.WaitGroup

	flushMu         sync.Mutex
	persistPayloads int64 // payload size at last flush, guarded by flushMu
	persistStart    int64 // drop watermark at last flush, guarded by flushMu

	sessions   *semaphore.Weighted
	capacity   int64
	compacting atomic.Bool

	stats stats
}

// Open opens or creates the log in dir.
func Open(dir string, config Config) (*Log, error) {
	if config.CompressThreshold == 0 {
		config.CompressThreshold = 512
	}
	if config.MaxPayloadSize == 0 {
		config.MaxPayloadSize = 64 * 1024 * 1024
	}
	if config.MaxQuerySessions == 0 {
		config.MaxQuerySessions = 1 << 16
	}
	if config.Algorithm == 0 {
		config.Algorithm = AlgXXHash3
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	if !config.ReadOnly {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}

	l := &Log{
		root:     root,
		config:   config,
		logger:   config.Logger,
		readOnly: config.ReadOnly,
		roErr:    ErrReadOnly,
		sessions: semaphore.NewWeighted(config.MaxQuerySessions),
		capacity: config.MaxQuerySessions,
	}
	if err := l.open(); err != nil {
		l.release()
		return nil, err
	}
	return l, nil
}

// open runs the fallible part of Open. On error the caller releases
// whatever was acquired.
func (l *Log) open() error {
	lock, err := openLock(l.root)
	if err != nil {
		return fmt.Errorf("open: lock: %w", err)
	}
	l.lock = lock
	mode := LockExclusive
	if l.readOnly {
		mode = LockShared
	}
	if err := lock.TryLock(mode); err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if err := l.loadHeader(); err != nil {
		return err
	}
	l.logger = l.logger.With("log_id", l.header.ID)

	if l.opsFile, err = openStorage(l.root, operationsFile, l.readOnly, l.config.SyncWrites); err != nil {
		return err
	}
	if l.payFile, err = openStorage(l.root, payloadsFile, l.readOnly, l.config.SyncWrites); err != nil {
		return err
	}

	attrs, err := readAttributes(l.root, l.header.Algorithm)
	if err != nil {
		return fmt.Errorf("open: attributes: %w", err)
	}
	if attrs == nil {
		attrs = &Attributes{}
	} else if attrs.Error == 1 {
		l.logger.Warn("vfslog: log was not closed cleanly, recovering")
	}

	opsSize, err := recoverOperations(l.opsFile, attrs.Operations, l.readOnly, l.logger)
	if err != nil {
		return fmt.Errorf("open: recover: %w", err)
	}
	paySize, err := l.payFile.size()
	if err != nil {
		return fmt.Errorf("open: payloads: %w", err)
	}
	start := min(attrs.PayloadStart, paySize)

	l.ops = newOpLog(l.opsFile, opsSize)
	l.payloads = newPayloadStore(l.payFile, paySize, start, l.config, l.readOnly)
	l.persistPayloads = paySize
	l.persistStart = start

	if l.readOnly {
		return nil
	}
	// Mark the session dirty until Close clears it.
	return writeAttributes(l.root, Attributes{
		Operations:   opsSize,
		Payloads:     paySize,
		PayloadStart: start,
		Error:        1,
	}, l.header.Algorithm)
}

// loadHeader reads the version file, creating or resetting the log as
// needed.
func (l *Log) loadHeader() error {
	hdr, err := readHeader(l.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if l.readOnly {
			return fmt.Errorf("open: %w", err)
		}
		return l.reset("new log")
	case err != nil && !errors.Is(err, ErrCorruptHeader):
		return fmt.Errorf("open: version: %w", err)
	case err == nil && hdr.Version == Version:
		l.header = hdr
		return nil
	}

	// Corrupt or foreign version.
	if l.readOnly || l.config.OnVersionMismatch == MismatchReadOnly {
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		l.logger.Warn("vfslog: version mismatch, opening read-only", "version", hdr.Version, "want", Version)
		l.readOnly = true
		l.roErr = fmt.Errorf("%w: %w", ErrReadOnly, ErrVersionMismatch)
		l.header = hdr
		return nil
	}
	reason := "corrupt version file"
	if err == nil {
		reason = fmt.Sprintf("version %d, want %d", hdr.Version, Version)
	}
	l.logger.Warn("vfslog: discarding log", "reason", reason)
	return l.reset(reason)
}

// reset removes every data file and writes a fresh version file.
func (l *Log) reset(reason string) error {
	for _, name := range []string{operationsFile, payloadsFile, attributesFile} {
		if err := l.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("open: reset (%s): %w", reason, err)
		}
	}
	l.header = newHeader(l.config.Algorithm)
	if err := writeHeader(l.root, l.header); err != nil {
		return fmt.Errorf("open: reset (%s): %w", reason, err)
	}
	return nil
}

// Flush syncs both logs and records their sizes as durable. It does
// nothing when neither size has advanced since the last flush.
func (l *Log) Flush() error {
	if l.state.Load() == stateClosed {
		return ErrClosed
	}
	return l.flush(1, false)
}

func (l *Log) flush(dirty int, force bool) error {
	if l.readOnly {
		return nil
	}
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	ops := l.ops.size()
	pays := l.payloads.size()
	start := l.payloads.start.Load()
	if !force && ops == l.ops.persistent.Load() && pays == l.persistPayloads && start == l.persistStart {
		return nil
	}

	// Payloads first: a durable descriptor must never reference a
	// payload that is not.
	if err := l.payFile.flush(); err != nil {
		return fmt.Errorf("flush: payloads: %w", err)
	}
	if err := l.opsFile.flush(); err != nil {
		return fmt.Errorf("flush: operations: %w", err)
	}
	err := writeAttributes(l.root, Attributes{
		Operations:   ops,
		Payloads:     pays,
		PayloadStart: start,
		Error:        dirty,
	}, l.header.Algorithm)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	l.ops.persistent.Store(ops)
	l.persistPayloads = pays
	l.persistStart = start
	return nil
}

// Close waits for in-flight writes, flushes, and releases the log. The
// producer side should be quiesced first; writes enqueued after Close
// has started fail with ErrClosed.
func (l *Log) Close() error {
	l.gate.Lock()
	if l.state.Load() != stateOpen {
		l.gate.Unlock()
		return nil
	}
	l.state.Store(stateClosing)
	l.gate.Unlock()

	l.writes.Wait()

	var errs []error
	if err := l.flush(0, true); err != nil {
		errs = append(errs, err)
	}
	if !l.readOnly {
		if p, e := l.ops.persistent.Load(), l.ops.emergingSize(); p != e {
			l.logger.Warn("vfslog: size discrepancy at close", "persistent", p, "emerging", e)
		}
	}

	l.state.Store(stateClosed)
	if err := l.release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// release closes every handle that was opened.
func (l *Log) release() error {
	var errs []error
	if l.opsFile != nil {
		errs = append(errs, l.opsFile.close())
	}
	if l.payFile != nil {
		errs = append(errs, l.payFile.close())
	}
	if l.lock != nil {
		errs = append(errs, l.lock.Release())
	}
	errs = append(errs, l.root.Close())
	return errors.Join(errs...)
}

// ID returns the log identity recorded at creation.
func (l *Log) ID() string {
	return l.header.ID
}

// ReadOnly reports whether writes are refused.
func (l *Log) ReadOnly() bool {
	return l.readOnly
}

// Size returns the ready size of the operation log: every descriptor
// below it has finished writing.
func (l *Log) Size() int64 {
	return l.ops.size()
}

// EmergingSize returns the operation log size including reservations
// that are still being written.
func (l *Log) EmergingSize() int64 {
	return l.ops.emergingSize()
}

// PersistentSize returns the operation log size as of the last flush.
func (l *Log) PersistentSize() int64 {
	return l.ops.persistent.Load()
}

// PayloadSize returns the ready size of the payload log.
func (l *Log) PayloadSize() int64 {
	return l.payloads.size()
}

// Begin returns an iterator at the start of the log, bounded by the
// current ready size.
func (l *Log) Begin() *Iterator {
	return newIterator(l.ops, 0, l.ops.size())
}

// End returns an iterator at the current ready size.
func (l *Log) End() *Iterator {
	size := l.ops.size()
	return newIterator(l.ops, size, size)
}

// IteratorAt returns an iterator at pos, which must be a descriptor
// boundary, clamped to the ready size.
func (l *Log) IteratorAt(pos int64) *Iterator {
	size := l.ops.size()
	return newIterator(l.ops, max(0, min(pos, size)), size)
}

// ReadAt reads the descriptor starting at pos.
func (l *Log) ReadAt(pos int64) ReadResult {
	return l.ops.readAt(pos, op.AllMask, l.ops.size())
}

// ReadAtFiltered is ReadAt that skips decoding tags outside mask.
func (l *Log) ReadAtFiltered(pos int64, mask op.Mask) ReadResult {
	return l.ops.readAt(pos, mask, l.ops.size())
}

// ReadPreceding reads the descriptor ending at pos.
func (l *Log) ReadPreceding(pos int64) ReadResult {
	return l.ops.readPreceding(pos, op.AllMask, l.ops.size())
}

// Stats is a snapshot of the log's write counters.
type Stats struct {
	Enqueued  uint64
	Committed uint64
	Failed    uint64
	Payloads  uint64
}

type stats struct {
	enqueued  atomic.Uint64
	committed atomic.Uint64
	failed    atomic.Uint64
	payloads  atomic.Uint64
}

// Stats returns the write counters of this log.
func (l *Log) Stats() Stats {
	return Stats{
		Enqueued:  l.stats.enqueued.Load(),
		Committed: l.stats.committed.Load(),
		Failed:    l.stats.failed.Load(),
		Payloads:  l.stats.payloads.Load(),
	}
}
