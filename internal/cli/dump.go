package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jpl-au/vfslog"
	"github.com/jpl-au/vfslog/op"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Mask    string
	Reverse bool
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <dir>",
		Short: "Print descriptors",
		Long: `Print every descriptor of the log, oldest first.

--mask takes a comma separated list of families (record, attribute,
content, event, event-start, event-end) or tag names; descriptors outside
it are skipped without being decoded.

Example:
  vfslog dump ./vfs-log
  vfslog dump ./vfs-log --mask attribute,EventCreate --reverse`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("mask") && opts.RootOptions.Mask != "" {
				opts.Mask = opts.RootOptions.Mask
			}
			return runDump(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Mask, "mask", "m", "", "families or tags to print (default all)")
	cmd.Flags().BoolVarP(&opts.Reverse, "reverse", "r", false, "newest first")

	return cmd
}

func runDump(cmd *cobra.Command, opts *DumpOptions, dir string) error {
	mask, err := op.ParseMask(opts.Mask)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mask", err)
	}

	s, err := openSnapshot(cmd, opts.RootOptions, dir)
	if err != nil {
		return err
	}
	defer s.Close()

	out := opts.formatter(cmd)
	it := s.query.Begin().Filter(mask)
	more, step := it.HasNext, it.Next
	if opts.Reverse {
		it = s.query.End().Filter(mask)
		more, step = it.HasPrevious, it.Previous
	}

	for more() {
		r := step()
		if r.Kind == vfslog.Invalid {
			if err := out.Emit(viewOf(r), viewOf(r).String()); err != nil {
				return err
			}
			return damaged(r)
		}
		if errors.Is(r.Err, vfslog.ErrFiltered) {
			continue
		}
		v := viewOf(r)
		if err := out.Emit(v, v.String()); err != nil {
			return err
		}
	}
	return nil
}
