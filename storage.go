// Random-access primitives for the append-only files.
//
// Both logs are plain files written with WriteAt and read with ReadAt, so
// concurrent writers filling disjoint reservations and readers walking
// the ready prefix never share a file offset. A write at some offset is
// visible to a read at that offset as soon as WriteAt returns; only
// durability needs Sync.
package vfslog

import (
	"fmt"
	"io"
	"os"
)

type storage struct {
	f    *os.File
	name string
	sync bool // fsync after every write
}

func openStorage(root *os.Root, name string, readOnly, syncWrites bool) (*storage, error) {
	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := root.OpenFile(name, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &storage{f: f, name: name, sync: syncWrites}, nil
}

// writeAt patches data at offset.
func (s *storage) writeAt(offset int64, data []byte) error {
	if _, err := s.f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write %s at %d: %w", s.name, offset, err)
	}
	if s.sync {
		return s.f.Sync()
	}
	return nil
}

// readAt fills buf from offset. A short read past end of file returns
// io.ErrUnexpectedEOF.
func (s *storage) readAt(offset int64, buf []byte) error {
	n, err := s.f.ReadAt(buf, offset)
	if n == len(buf) {
		return nil
	}
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// readByte reads the single byte at offset.
func (s *storage) readByte(offset int64) (byte, error) {
	var b [1]byte
	if err := s.readAt(offset, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *storage) size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *storage) truncate(size int64) error {
	if err := s.f.Truncate(size); err != nil {
		return fmt.Errorf("truncate %s: %w", s.name, err)
	}
	return nil
}

func (s *storage) flush() error {
	return s.f.Sync()
}

func (s *storage) close() error {
	return s.f.Close()
}
