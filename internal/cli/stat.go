package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpl-au/vfslog"
)

// StatView summarises a log.
type StatView struct {
	ID          string         `json:"id"`
	Size        int64          `json:"size"`
	PayloadSize int64          `json:"payload_size"`
	Descriptors int            `json:"descriptors"`
	Complete    int            `json:"complete"`
	Incomplete  int            `json:"incomplete"`
	InvalidAt   *int64         `json:"invalid_at,omitempty"`
	Tags        map[string]int `json:"tags"`
}

func (s StatView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id:           %s\n", s.ID)
	fmt.Fprintf(&b, "size:         %d\n", s.Size)
	fmt.Fprintf(&b, "payload size: %d\n", s.PayloadSize)
	fmt.Fprintf(&b, "descriptors:  %d (%d complete, %d incomplete)\n", s.Descriptors, s.Complete, s.Incomplete)
	if s.InvalidAt != nil {
		fmt.Fprintf(&b, "invalid at:   %d\n", *s.InvalidAt)
	}
	for _, tag := range slices.Sorted(maps.Keys(s.Tags)) {
		fmt.Fprintf(&b, "  %-24s %d\n", tag, s.Tags[tag])
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewStatCommand creates the stat command.
func NewStatCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <dir>",
		Short: "Summarise a log",
		Long: `Walk every descriptor of the log and count them by tag and read kind.

Example:
  vfslog stat ./vfs-log
  vfslog stat ./vfs-log --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStat(cmd, rootOpts, args[0])
		},
	}
}

func runStat(cmd *cobra.Command, opts *RootOptions, dir string) error {
	s, err := openSnapshot(cmd, opts, dir)
	if err != nil {
		return err
	}
	defer s.Close()

	it := s.query.Begin()
	view := StatView{
		ID:          s.log.ID(),
		Size:        it.Limit(),
		PayloadSize: s.log.PayloadSize(),
		Tags:        make(map[string]int),
	}
	var failure error
	for it.HasNext() {
		r := it.Next()
		if r.Kind == vfslog.Invalid {
			pos := r.Position
			view.InvalidAt = &pos
			failure = damaged(r)
			break
		}
		view.Descriptors++
		view.Tags[r.Tag.String()]++
		if r.Kind == vfslog.Complete {
			view.Complete++
		} else {
			view.Incomplete++
		}
	}

	if err := opts.formatter(cmd).Emit(view, view.String()); err != nil {
		return err
	}
	return failure
}
