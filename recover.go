// Crash recovery for the operation log.
//
// The attributes file records the size that was durable at the last
// flush. Everything before it is trusted as is. Everything after it was
// written by the previous session but may be incomplete, so Open walks
// it descriptor by descriptor:
//
//   - committed descriptors ([+tag]..[+tag]) are accepted;
//   - reserved ones whose trailing byte is ±tag are accepted, and read as
//     Incomplete;
//   - reserved ones with any other trailing byte never finished; their
//     trailing byte is overwritten with -tag so they read as failed
//     writes instead of halting every future iterator;
//   - a zero or unknown byte, a positive descriptor with a mismatching
//     trailing byte, or a descriptor running past end of file ends the
//     scan.
//
// The log is truncated at the scan end. A reservation whose leading
// sentinel never reached the disk leaves zeros, so descriptors written
// after it by other goroutines are discarded with it: they were never
// part of the ready prefix.
//
// Read-only opens perform the same walk without patching or truncating;
// an unterminated descriptor is left in place for readers to see.
package vfslog

import (
	"fmt"
	"log/slog"

	"github.com/jpl-au/vfslog/op"
)

func recoverOperations(file *storage, from int64, readOnly bool, logger *slog.Logger) (int64, error) {
	fileSize, err := file.size()
	if err != nil {
		return 0, err
	}
	if from < 0 || from > fileSize {
		logger.Warn("vfslog: persisted size beyond end of file, rescanning", "persistent", from, "file", fileSize)
		from = 0
	}

	pos := from
	for pos < fileSize {
		lead, err := file.readByte(pos)
		if err != nil {
			return 0, err
		}
		tag, neg, ok := decodeTag(lead)
		if !ok {
			break
		}
		n, err := op.DescriptorSize(tag)
		if err != nil {
			break
		}
		size := int64(n)
		if pos+size > fileSize {
			break
		}
		trail, err := file.readByte(pos + size - 1)
		if err != nil {
			return 0, err
		}
		t, _, ok := decodeTag(trail)
		terminated := ok && t == tag

		if !neg && (trail != byte(tag)) {
			break
		}
		if neg && !terminated {
			logger.Warn("vfslog: unterminated descriptor", "position", pos, "tag", tag.String())
			if !readOnly {
				if err := file.writeAt(pos+size-1, []byte{negated(tag)}); err != nil {
					return 0, fmt.Errorf("close descriptor at %d: %w", pos, err)
				}
			}
		}
		pos += size
	}

	if pos < fileSize && !readOnly {
		logger.Warn("vfslog: truncating operation log", "size", pos, "discarded", fileSize-pos)
		if err := file.truncate(pos); err != nil {
			return 0, err
		}
	}
	return pos, nil
}
