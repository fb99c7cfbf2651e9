//go:build linux

package vfslog

import (
	"errors"

	"golang.org/x/sys/unix"
)

// punchHole releases the disk blocks backing [offset, offset+length)
// without changing the file size. Filesystems that cannot punch holes
// keep the data; the caller only relies on it being unreadable through
// the log, which the drop watermark already guarantees.
func (s *storage) punchHole(offset, length int64) error {
	if length <= 0 {
		return nil
	}
	err := unix.Fallocate(int(s.f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, offset, length)
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return nil
	}
	return err
}
