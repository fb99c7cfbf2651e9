// OS-level locking of a log directory.
//
// Two processes appending to the same log would hand out overlapping
// reservations, because each tracks its own cursor. Open therefore takes
// an advisory lock on the directory's lock file: exclusive for read-write
// sessions, shared for read-only inspection. The lock is never waited
// for; a held lock makes Open fail with ErrLocked.
//
// fileLock guards the handle with a mutex held for the whole syscall so
// that Fd() cannot race with Close() on the same *os.File.
package vfslog

import (
	"os"
	"sync"
)

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

func openLock(root *os.Root) (*fileLock, error) {
	f, err := root.OpenFile(lockFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &fileLock{f: f}, nil
}

// TryLock acquires a shared or exclusive lock without blocking. It
// returns ErrLocked when a conflicting lock is held elsewhere.
func (l *fileLock) TryLock(mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return ErrClosed
	}
	return l.lock(mode)
}

// Release unlocks and closes the lock file. Further calls are no-ops.
func (l *fileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.unlock()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
