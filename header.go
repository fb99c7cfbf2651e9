// Persisted metadata files of a log directory.
//
// The version file is written once when the log is created and names the
// layout version, the log's identity and the checksum algorithm. The
// attributes file caches the scalars that would otherwise need a full
// scan to recover: the durable sizes of both logs, the payload drop
// watermark, and a dirty flag cleared on clean shutdown. Both are small
// JSON documents replaced atomically through a temp file and rename.
package vfslog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Version is the on-disk layout version. Bump it whenever the operation
// catalog or any framing changes; there is no cross-version migration.
const Version = 1

// File names inside a log directory.
const (
	versionFile    = "version"
	operationsFile = "operations.log"
	payloadsFile   = "payloads.log"
	attributesFile = "attributes"
	lockFile       = "lock"
)

// Header is the content of the version file.
type Header struct {
	Version   int    `json:"_v"`   // Layout version
	ID        string `json:"_id"`  // Log identity, fixed at creation
	Timestamp int64  `json:"_ts"`  // Unix milliseconds at creation
	Algorithm int    `json:"_alg"` // Attributes checksum algorithm
}

// Attributes is the content of the attributes file.
type Attributes struct {
	Operations   int64  `json:"_o"`  // Durable size of the operation log
	Payloads     int64  `json:"_p"`  // Durable size of the payload log
	PayloadStart int64  `json:"_ps"` // Payloads below this offset are dropped
	Error        int    `json:"_e"`  // 0=clean, 1=dirty (crash indicator)
	Checksum     string `json:"_c"`
}

func newHeader(alg int) *Header {
	return &Header{
		Version:   Version,
		ID:        uuid.NewString(),
		Timestamp: now(),
		Algorithm: alg,
	}
}

// readHeader loads the version file. A missing file is reported as
// fs.ErrNotExist so Open can tell a fresh directory from a corrupt one.
func readHeader(root *os.Root) (*Header, error) {
	data, err := root.ReadFile(versionFile)
	if err != nil {
		return nil, err
	}
	var hdr Header
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptHeader, err)
	}
	if hdr.Version <= 0 || hdr.ID == "" {
		return nil, ErrCorruptHeader
	}
	return &hdr, nil
}

func writeHeader(root *os.Root, hdr *Header) error {
	data, err := json.Marshal(hdr)
	if err != nil {
		return err
	}
	return replace(root, versionFile, data)
}

// readAttributes loads the attributes file and verifies its checksum. A
// missing, unparsable or mismatching file yields (nil, nil): the caller
// falls back to scanning.
func readAttributes(root *os.Root, alg int) (*Attributes, error) {
	data, err := root.ReadFile(attributesFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var attrs Attributes
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, nil
	}
	want := attrs.Checksum
	attrs.Checksum = ""
	body, err := json.Marshal(&attrs)
	if err != nil {
		return nil, err
	}
	if checksum(body, alg) != want {
		return nil, nil
	}
	attrs.Checksum = want
	return &attrs, nil
}

func writeAttributes(root *os.Root, attrs Attributes, alg int) error {
	attrs.Checksum = ""
	body, err := json.Marshal(&attrs)
	if err != nil {
		return err
	}
	attrs.Checksum = checksum(body, alg)
	data, err := json.Marshal(&attrs)
	if err != nil {
		return err
	}
	return replace(root, attributesFile, data)
}

// replace writes data to name through a synced temp file and rename, so
// readers see either the old or the new content.
func replace(root *os.Root, name string, data []byte) error {
	tmp := name + ".tmp"
	f, err := root.Create(tmp)
	if err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("replace %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("replace %s: sync: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	if err := root.Rename(tmp, name); err != nil {
		return fmt.Errorf("replace %s: rename: %w", name, err)
	}
	return nil
}

// now returns the current time in unix milliseconds.
func now() int64 {
	return time.Now().UnixMilli()
}
