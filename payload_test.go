package vfslog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jpl-au/vfslog/op"
)

// TestInlinePayloads checks that every size up to op.MaxInline round
// trips through the ref without touching the payload file.
func TestInlinePayloads(t *testing.T) {
	l := openTestLog(t, t.TempDir(), Config{})

	for n := 0; n <= op.MaxInline; n++ {
		data := bytes.Repeat([]byte{byte(0xA0 + n)}, n)
		ref, err := l.WritePayload(data)
		if err != nil {
			t.Fatalf("WritePayload(%d bytes): %v", n, err)
		}
		if !ref.IsInline() || ref.Source() != op.Source(n) {
			t.Errorf("%d bytes: ref %s not inline plane %d", n, ref, n)
		}
		got, err := l.ReadPayload(ref)
		if err != nil {
			t.Fatalf("ReadPayload(%s): %v", ref, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%d bytes: got %x, want %x", n, got, data)
		}
	}
	if l.PayloadSize() != 0 {
		t.Errorf("PayloadSize = %d, want 0", l.PayloadSize())
	}
}

func TestExternalPayloads(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, Config{})
	if err != nil {
		t.Fatal(err)
	}

	blobs := [][]byte{
		[]byte("eight b!"),
		bytes.Repeat([]byte("x"), 300),
		bytes.Repeat([]byte{0}, 70000),
	}
	refs := make([]op.PayloadRef, len(blobs))
	for i, b := range blobs {
		if refs[i], err = l.WritePayload(b); err != nil {
			t.Fatalf("WritePayload: %v", err)
		}
		if refs[i].Source() != op.SourceExternal {
			t.Errorf("[%d] source = %d, want external", i, refs[i].Source())
		}
	}
	if refs[0].Offset() != 0 {
		t.Errorf("first offset = %d", refs[0].Offset())
	}
	l.Close()

	l = openTestLog(t, dir, Config{ReadOnly: true})
	for i, ref := range refs {
		got, err := l.ReadPayload(ref)
		if err != nil {
			t.Fatalf("[%d] ReadPayload: %v", i, err)
		}
		if !bytes.Equal(got, blobs[i]) {
			t.Errorf("[%d] payload differs after reopen", i)
		}
	}
}

func TestCompressedPayloads(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, Config{CompressPayloads: true, CompressThreshold: 64})

	small := bytes.Repeat([]byte("a"), 40)
	large := bytes.Repeat([]byte("compressible "), 1000)
	rs, _ := l.WritePayload(small)
	rl, err := l.WritePayload(large)
	if err != nil {
		t.Fatal(err)
	}
	if l.PayloadSize() >= int64(len(large)) {
		t.Errorf("PayloadSize = %d, large payload was not compressed", l.PayloadSize())
	}
	for _, c := range []struct {
		ref  op.PayloadRef
		want []byte
	}{{rs, small}, {rl, large}} {
		got, err := l.ReadPayload(c.ref)
		if err != nil {
			t.Fatalf("ReadPayload(%s): %v", c.ref, err)
		}
		if !bytes.Equal(got, c.want) {
			t.Errorf("ReadPayload(%s) differs", c.ref)
		}
	}

	// Uncompressed sessions still read compressed records.
	l.Close()
	plain := openTestLog(t, dir, Config{})
	if got, err := plain.ReadPayload(rl); err != nil || !bytes.Equal(got, large) {
		t.Errorf("uncompressed session read: %v", err)
	}
}

func TestPayloadNotAvailable(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, Config{})
	ref, err := l.WritePayload([]byte("a payload of some length"))
	if err != nil {
		t.Fatal(err)
	}

	beyond, _ := op.ExternalRef(l.PayloadSize())
	if _, err := l.ReadPayload(beyond); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("beyond size: err = %v, want ErrNotAvailable", err)
	}

	// A length prefix claiming more than was written.
	patch(t, filepath.Join(dir, payloadsFile), ref.Offset(), 0xff, 0x01)
	if _, err := l.ReadPayload(ref); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("bad length: err = %v, want ErrNotAvailable", err)
	}

	// An unterminated varint.
	patch(t, filepath.Join(dir, payloadsFile), ref.Offset(), bytes.Repeat([]byte{0xff}, 11)...)
	if _, err := l.ReadPayload(ref); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("bad varint: err = %v, want ErrNotAvailable", err)
	}

	if _, err := l.ReadPayload(op.PayloadRef(uint64(9) << 56)); !errors.Is(err, op.ErrInvalidRef) {
		t.Errorf("unknown source: err = %v, want ErrInvalidRef", err)
	}
}

// TestCorruptCompressedPayload damages the zstd frame of a compressed
// record; the read reports the payload as not available.
func TestCorruptCompressedPayload(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, Config{CompressPayloads: true, CompressThreshold: 16})
	data := bytes.Repeat([]byte("attribute "), 80)
	ref, err := l.WritePayload(data)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, payloadsFile))
	if err != nil {
		t.Fatal(err)
	}
	magic := []byte{0x28, 0xb5, 0x2f, 0xfd}
	i := bytes.Index(raw[ref.Offset():], magic)
	if i < 0 {
		t.Fatal("record is not compressed")
	}
	body := ref.Offset() + int64(i)

	patch(t, filepath.Join(dir, payloadsFile), body+int64(len(magic)), 0xff, 0xff, 0xff, 0xff)
	if _, err := l.ReadPayload(ref); !errors.Is(err, ErrNotAvailable) || !errors.Is(err, ErrDecompress) {
		t.Errorf("damaged frame: err = %v, want ErrNotAvailable", err)
	}

	patch(t, filepath.Join(dir, payloadsFile), body, 0, 0, 0, 0)
	if _, err := l.ReadPayload(ref); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("damaged magic: err = %v, want ErrNotAvailable", err)
	}
}

func TestPayloadLimits(t *testing.T) {
	l := openTestLog(t, t.TempDir(), Config{MaxPayloadSize: 16})

	if _, err := l.WritePayload(make([]byte, 17)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
	boom := errors.New("fill failed")
	if _, err := l.WritePayloadFunc(12, func([]byte) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("fill err = %v", err)
	}
	if l.PayloadSize() != 0 {
		t.Errorf("failed writes left %d bytes", l.PayloadSize())
	}
}

func TestPayloadWrittenInsideCompute(t *testing.T) {
	l := openTestLog(t, t.TempDir(), Config{})

	name := []byte("a-long-directory-name")
	w := l.EnqueueWrite(op.EventCreate, func() (op.Operation, error) {
		ref, err := l.WritePayload(name)
		if err != nil {
			return nil, err
		}
		return op.CreateEvent{Timestamp: 1, ParentID: 1, ChildName: ref, IsDirectory: true}, nil
	})
	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}
	r := l.ReadAt(w.Position())
	got, err := l.ReadPayload(r.Op.(op.CreateEvent).ChildName)
	if err != nil || !bytes.Equal(got, name) {
		t.Errorf("ReadPayload = %q, %v", got, err)
	}
}

func TestConcurrentPayloads(t *testing.T) {
	l := openTestLog(t, t.TempDir(), Config{})

	var wg sync.WaitGroup
	refs := make([]op.PayloadRef, 64)
	for i := range refs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := l.WritePayload(bytes.Repeat([]byte{byte(i)}, 100+i))
			if err != nil {
				t.Error(err)
			}
			refs[i] = ref
		}()
	}
	wg.Wait()

	for i, ref := range refs {
		got, err := l.ReadPayload(ref)
		if err != nil {
			t.Fatalf("[%d] %v", i, err)
		}
		if len(got) != 100+i || got[0] != byte(i) {
			t.Errorf("[%d] wrong payload", i)
		}
	}
}

func TestDropPayloads(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, Config{})
	if err != nil {
		t.Fatal(err)
	}
	old, _ := l.WritePayload(bytes.Repeat([]byte("o"), 5000))
	keep, _ := l.WritePayload(bytes.Repeat([]byte("k"), 5000))

	c := l.TryAcquireCompaction()
	if c == nil {
		t.Fatal("TryAcquireCompaction = nil")
	}
	if err := c.DropPayloadsUpTo(keep.Offset()); err != nil {
		t.Fatalf("DropPayloadsUpTo: %v", err)
	}
	if err := c.DropPayloadsUpTo(l.PayloadSize() + 1); err == nil {
		t.Error("drop beyond size succeeded")
	}
	c.Close()

	if _, err := l.ReadPayload(old); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("dropped payload: err = %v, want ErrNotAvailable", err)
	}
	if _, err := l.ReadPayload(keep); err != nil {
		t.Errorf("kept payload: %v", err)
	}
	l.Close()

	// The watermark survives a reopen.
	l = openTestLog(t, dir, Config{})
	if _, err := l.ReadPayload(old); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("after reopen: err = %v, want ErrNotAvailable", err)
	}
	if fi, err := os.Stat(filepath.Join(dir, payloadsFile)); err != nil || fi.Size() != l.PayloadSize() {
		t.Errorf("payload file size changed by drop: %v", err)
	}
}
