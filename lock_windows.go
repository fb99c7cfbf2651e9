//go:build windows

package vfslog

import (
	"errors"

	"golang.org/x/sys/windows"
)

// The whole file range is locked: 0 to max.
const lockRange = 0xFFFFFFFF

func (l *fileLock) lock(mode LockMode) error {
	var flags uint32 = windows.LOCKFILE_FAIL_IMMEDIATELY
	if mode == LockExclusive {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	var overlapped windows.Overlapped
	err := windows.LockFileEx(windows.Handle(l.f.Fd()), flags, 0, lockRange, lockRange, &overlapped)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return ErrLocked
	}
	return err
}

func (l *fileLock) unlock() error {
	var overlapped windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, lockRange, lockRange, &overlapped)
}
