// Package vfslog provides an append-only, crash-recoverable log of the
// mutating operations performed against a virtual-file-system record
// store.
//
// A log directory holds two append-only files. The operation log is a
// sequence of fixed-size descriptors framed by their tag byte on both
// ends; the payload log holds variable-length blobs those descriptors
// reference through an 8 byte PayloadRef. Blobs of at most seven bytes
// never reach the payload log: they are packed into the ref itself.
//
// Writers never take a global lock. Each write reserves a byte range with
// an atomic cursor, frames it as reserved, computes and serializes its
// operation on its own goroutine, and then commits. Readers only see the
// prefix in which every reservation has finished, so a slow writer delays
// visibility but never blocks other writers.
package vfslog

import "errors"

// Sentinel errors for programmatic handling. Read paths report most
// problems through ReadResult; these are the causes it carries, so
// callers can use errors.Is to tell expected conditions (ErrUncommitted,
// ErrFiltered, ErrNotAvailable) from corruption (ErrCorruptDescriptor).
var (
	ErrClosed            = errors.New("log is closed")
	ErrReadOnly          = errors.New("log is read-only")
	ErrLocked            = errors.New("log is locked by another process")
	ErrCorruptDescriptor = errors.New("corrupt descriptor")
	ErrUncommitted       = errors.New("descriptor not committed")
	ErrUnterminated      = errors.New("descriptor not terminated")
	ErrFiltered          = errors.New("descriptor filtered by mask")
	ErrNotAvailable      = errors.New("payload not available")
	ErrTagMismatch       = errors.New("computed operation does not match tag")
	ErrCorruptHeader     = errors.New("corrupt header")
	ErrVersionMismatch   = errors.New("log version mismatch")
	ErrPayloadTooLarge   = errors.New("payload exceeds maximum size")
	ErrDecompress        = errors.New("decompression failed")

	// Event reconstruction.
	ErrNestedEvent         = errors.New("event start inside another event")
	ErrEventMismatch       = errors.New("event end does not match its start")
	ErrUnmatchedEventEnd   = errors.New("event end without start")
	ErrUnmatchedEventStart = errors.New("event start without end")
)
