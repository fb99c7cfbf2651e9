// Checksums for the persisted attributes file.
//
// The attributes file is rewritten in place on every flush, so a crash
// mid-write can leave it torn. Its checksum field covers the encoded
// scalars; a mismatch makes Open ignore the file and recover sizes by
// scanning instead. The algorithm is chosen when the log is created and
// recorded in the version file.
package vfslog

import (
	"fmt"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Checksum algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// checksum returns a 16 hex character digest of data.
func checksum(data []byte, alg int) string {
	switch alg {
	case AlgXXHash3:
		return fmt.Sprintf("%016x", xxh3.Hash(data))
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum64())
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum(nil))
	default:
		return ""
	}
}
