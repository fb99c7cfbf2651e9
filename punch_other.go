//go:build !linux

package vfslog

// punchHole is a no-op where hole punching is unavailable; dropped
// payloads stay on disk but are no longer readable through the log.
func (s *storage) punchHole(offset, length int64) error {
	return nil
}
