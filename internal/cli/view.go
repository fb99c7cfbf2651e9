package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/vfslog"
	"github.com/jpl-au/vfslog/op"
)

// snapshot is an open read-only log plus the query session every command
// reads through.
type snapshot struct {
	log   *vfslog.Log
	query *vfslog.QuerySession
}

func openSnapshot(cmd *cobra.Command, opts *RootOptions, dir string) (*snapshot, error) {
	l, err := vfslog.Open(dir, vfslog.Config{ReadOnly: true, Logger: opts.logger()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open log", err)
	}
	q, err := l.Query(cmd.Context())
	if err != nil {
		l.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start query", err)
	}
	return &snapshot{log: l, query: q}, nil
}

func (s *snapshot) Close() error {
	s.query.Close()
	return s.log.Close()
}

// DescriptorView is the printable form of one read.
type DescriptorView struct {
	Position int64        `json:"position"`
	Size     int64        `json:"size"`
	Tag      string       `json:"tag"`
	Family   string       `json:"family"`
	Kind     string       `json:"kind"`
	Op       op.Operation `json:"op,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func viewOf(r vfslog.ReadResult) DescriptorView {
	v := DescriptorView{
		Position: r.Position,
		Size:     r.Size,
		Tag:      r.Tag.String(),
		Family:   r.Tag.Family().String(),
		Kind:     r.Kind.String(),
		Op:       r.Op,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func (v DescriptorView) String() string {
	detail := v.Error
	if v.Op != nil {
		detail = fmt.Sprintf("%+v", v.Op)
	}
	return fmt.Sprintf("%10d  %-24s %-10s %s", v.Position, v.Tag, v.Kind, detail)
}

// damaged turns an Invalid read into the command's failure.
func damaged(r vfslog.ReadResult) error {
	if errors.Is(r.Err, vfslog.ErrExhausted) {
		return nil
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("log damaged at %d", r.Position), r.Err)
}
