// Compression for payload records.
//
// Payloads above Config.CompressThreshold are Zstd-compressed when the
// log is configured for it and the compressed form is actually smaller.
// The payload record header carries a flag bit, so compressed and raw
// records coexist in one file and compression can be toggled between
// sessions.
package vfslog

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// The encoder is shared and safe for concurrent use. It carries no
// per-log state, so independent logs in one process can share it.
// SpeedFastest because compression runs on the write path of every
// large payload while decompression only runs when a consumer reads one.
var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))

func compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}

// decompress streams data through a decoder whose window and output are
// capped at maxSize (or the smallest zstd window, if larger).
func decompress(data []byte, maxSize int) ([]byte, error) {
	limit := uint64(max(maxSize, zstd.MinWindowSize))
	dec, err := zstd.NewReader(bytes.NewReader(data),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(limit),
		zstd.WithDecoderMaxWindow(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrDecompress, err)
	}
	defer dec.Close()

	out, err := io.ReadAll(io.LimitReader(dec, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrDecompress, err)
	}
	if len(out) > maxSize {
		return nil, fmt.Errorf("%w: output exceeds %d bytes", ErrDecompress, maxSize)
	}
	return out, nil
}
