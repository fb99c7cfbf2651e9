package cli

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/vfslog"
	"github.com/jpl-au/vfslog/op"
)

// seedLog writes a small log: one allocation and a delete event around two
// record operations.
func seedLog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	l, err := vfslog.Open(dir, vfslog.Config{})
	require.NoError(t, err)
	defer l.Close()

	for _, o := range []op.Operation{
		op.AllocateRecord{Result: op.Int(42)},
		op.DeleteEvent{Timestamp: 1700000000000, FileID: 42},
		op.SetFlags{FileID: 42, Flags: 1, Result: op.Unit()},
		op.CleanRecord{FileID: 42, Result: op.Unit()},
		op.EndEvent{EventTag: op.EventDelete},
	} {
		w := l.EnqueueWrite(o.Tag(), func() (op.Operation, error) { return o, nil })
		require.NoError(t, w.Wait())
	}
	return dir
}

func execute(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.Bytes(), err
}

func jsonLines(t *testing.T, out []byte) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(out), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m), "line %q", line)
		lines = append(lines, m)
	}
	return lines
}

// corrupt overwrites the lead byte of the first descriptor.
func corrupt(t *testing.T, dir string) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(dir, "operations.log"), os.O_WRONLY, 0)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteAt([]byte{0}, 0)
	require.NoError(t, err)
}

func TestStat(t *testing.T) {
	dir := seedLog(t)

	out, err := execute(t, "stat", dir)
	require.NoError(t, err)
	assert.Contains(t, string(out), "descriptors:  5 (5 complete, 0 incomplete)")
	assert.Contains(t, string(out), "RecAllocate")

	out, err = execute(t, "stat", dir, "--format", "json")
	require.NoError(t, err)
	var view StatView
	require.NoError(t, json.Unmarshal(out, &view))
	assert.Equal(t, 5, view.Descriptors)
	assert.Equal(t, int64(11+14+19+15+3), view.Size)
	assert.Equal(t, 1, view.Tags["EventDelete"])
	assert.Nil(t, view.InvalidAt)
	assert.NotEmpty(t, view.ID)
}

func TestStatMissingDirectory(t *testing.T) {
	_, err := execute(t, "stat", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatDamaged(t *testing.T) {
	dir := seedLog(t)
	corrupt(t, dir)

	out, err := execute(t, "stat", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, string(out), "invalid at:   0")
}

func TestDump(t *testing.T) {
	dir := seedLog(t)

	out, err := execute(t, "dump", dir, "--format", "json")
	require.NoError(t, err)
	lines := jsonLines(t, out)
	require.Len(t, lines, 5)
	assert.Equal(t, "RecAllocate", lines[0]["tag"])
	assert.Equal(t, "record", lines[0]["family"])
	assert.Equal(t, float64(0), lines[0]["position"])
	assert.Equal(t, "EventEnd", lines[4]["tag"])
}

func TestDumpReverse(t *testing.T) {
	dir := seedLog(t)

	out, err := execute(t, "dump", dir, "--reverse", "--format", "json")
	require.NoError(t, err)
	lines := jsonLines(t, out)
	require.Len(t, lines, 5)
	assert.Equal(t, "EventEnd", lines[0]["tag"])
	assert.Equal(t, "RecAllocate", lines[4]["tag"])
}

func TestDumpMask(t *testing.T) {
	dir := seedLog(t)

	out, err := execute(t, "dump", dir, "--mask", "event")
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "EventDelete")
	assert.Contains(t, text, "EventEnd")
	assert.NotContains(t, text, "RecAllocate")
	assert.Len(t, strings.Split(strings.TrimSpace(text), "\n"), 2)

	_, err = execute(t, "dump", dir, "--mask", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDumpMaskFromConfig(t *testing.T) {
	dir := seedLog(t)
	path := filepath.Join(t.TempDir(), "vfslog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mask: RecClean\n"), 0644))

	out, err := execute(t, "dump", dir, "--config", path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(out)), "\n"), 1)
	assert.Contains(t, string(out), "RecClean")

	out, err = execute(t, "dump", dir, "--config", path, "--mask", "all")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(out)), "\n"), 5)
}

func TestDumpDamaged(t *testing.T) {
	dir := seedLog(t)
	corrupt(t, dir)

	out, err := execute(t, "dump", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "log damaged at 0")
	assert.Contains(t, string(out), "invalid")
}

func TestEvents(t *testing.T) {
	dir := seedLog(t)

	out, err := execute(t, "events", dir)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "RecAllocate")
	assert.Contains(t, text, "EventDelete")
	assert.Contains(t, text, "2 operations")

	out, err = execute(t, "events", dir, "--reverse", "--format", "json")
	require.NoError(t, err)
	lines := jsonLines(t, out)
	require.Len(t, lines, 2)
	assert.Equal(t, "event", lines[0]["kind"])
	assert.Equal(t, "EventDelete", lines[0]["tag"])
	assert.Len(t, lines[0]["operations"], 2)
	assert.Equal(t, "operation", lines[1]["kind"])
}

func TestEventsDamaged(t *testing.T) {
	dir := seedLog(t)
	corrupt(t, dir)

	_, err := execute(t, "events", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestPayload(t *testing.T) {
	dir := t.TempDir()
	l, err := vfslog.Open(dir, vfslog.Config{})
	require.NoError(t, err)
	data := []byte("a payload too long to inline")
	ref, err := l.WritePayload(data)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	out, err := execute(t, "payload", dir, fmt.Sprint(uint64(ref)))
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = execute(t, "payload", dir, fmt.Sprintf("%#x", uint64(ref)), "--format", "json")
	require.NoError(t, err)
	var view PayloadView
	require.NoError(t, json.Unmarshal(out, &view))
	assert.Equal(t, data, view.Data)
	assert.Equal(t, len(data), view.Size)
	assert.Equal(t, int(op.SourceExternal), view.Source)
}

func TestPayloadErrors(t *testing.T) {
	dir := seedLog(t)

	_, err := execute(t, "payload", dir, "not-a-ref")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	beyond, err := op.ExternalRef(1 << 20)
	require.NoError(t, err)
	_, err = execute(t, "payload", dir, fmt.Sprint(uint64(beyond)))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, vfslog.ErrNotAvailable)
}

func TestExport(t *testing.T) {
	dir := seedLog(t)
	dbPath := filepath.Join(t.TempDir(), "export.db")

	out, err := execute(t, "export", dir, dbPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "5 descriptors")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM descriptors`).Scan(&count))
	assert.Equal(t, 5, count)

	var opJSON string
	require.NoError(t, db.QueryRow(`SELECT op FROM descriptors WHERE tag = 'RecAllocate'`).Scan(&opJSON))
	assert.Contains(t, opJSON, "42")

	var size int64
	require.NoError(t, db.QueryRow(`SELECT size FROM log`).Scan(&size))
	assert.Positive(t, size)
}

func TestExportDamaged(t *testing.T) {
	dir := seedLog(t)
	corrupt(t, dir)
	dbPath := filepath.Join(t.TempDir(), "export.db")

	_, err := execute(t, "export", dir, dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var kind string
	require.NoError(t, db.QueryRow(`SELECT kind FROM descriptors WHERE position = 0`).Scan(&kind))
	assert.Equal(t, "invalid", kind)
}

// TestExportTwice writes a second export into the same database; the
// duplicate rows are a command error, not a damaged log.
func TestExportTwice(t *testing.T) {
	dir := seedLog(t)
	dbPath := filepath.Join(t.TempDir(), "export.db")

	_, err := execute(t, "export", dir, dbPath)
	require.NoError(t, err)

	_, err = execute(t, "export", dir, dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "export failed")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM log`).Scan(&count))
	assert.Equal(t, 1, count, "failed export was not rolled back")
}
