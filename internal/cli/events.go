package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/vfslog"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Reverse bool
}

// EventView is the printable form of one event iterator entry.
type EventView struct {
	Kind       string           `json:"kind"`
	Tag        string           `json:"tag"`
	Start      int64            `json:"start"`
	End        int64            `json:"end,omitempty"`
	Operations []DescriptorView `json:"operations,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func eventViewOf(e vfslog.EventEntry) EventView {
	v := EventView{Kind: e.Kind.String(), Tag: e.Read.Tag.String(), Start: e.Read.Position}
	if e.Err != nil {
		v.Error = e.Err.Error()
	}
	if e.Range != nil {
		v.Tag = e.Range.Tag().String()
		v.Start, v.End = e.Range.Start.Position, e.Range.End.Position
		for r := range e.Range.Operations(vfslog.Forward) {
			v.Operations = append(v.Operations, viewOf(r))
		}
	}
	return v
}

func (v EventView) String() string {
	switch {
	case v.Kind == vfslog.EntryEvent.String():
		s := fmt.Sprintf("%10d  %-24s %d..%d, %d operations", v.Start, v.Tag, v.Start, v.End, len(v.Operations))
		for _, o := range v.Operations {
			s += "\n    " + o.String()
		}
		return s
	case v.Error != "":
		return fmt.Sprintf("%10d  %-24s %-10s %s", v.Start, v.Tag, v.Kind, v.Error)
	default:
		return fmt.Sprintf("%10d  %-24s %s", v.Start, v.Tag, v.Kind)
	}
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events <dir>",
		Short: "Print file-system events",
		Long: `Group descriptors into file-system events.

Each event start and its matching end are printed as one entry together
with the operations between them. Operations outside any event are
printed on their own. A bracket cut short by the end of the log is
reported as partial.

Example:
  vfslog events ./vfs-log
  vfslog events ./vfs-log --reverse --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.Reverse, "reverse", "r", false, "newest first")

	return cmd
}

func runEvents(cmd *cobra.Command, opts *EventsOptions, dir string) error {
	s, err := openSnapshot(cmd, opts.RootOptions, dir)
	if err != nil {
		return err
	}
	defer s.Close()

	out := opts.formatter(cmd)
	events := s.query.Events()
	more, step := events.HasNext, events.Next
	if opts.Reverse {
		events = vfslog.NewEventIterator(s.query.End())
		more, step = events.HasPrevious, events.Previous
	}

	for more() {
		e := step()
		v := eventViewOf(e)
		if err := out.Emit(v, v.String()); err != nil {
			return err
		}
		if e.Kind == vfslog.EntryInvalid {
			return WrapExitError(ExitFailure, fmt.Sprintf("log damaged at %d", e.Read.Position), e.Err)
		}
	}
	return nil
}
