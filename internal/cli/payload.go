package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jpl-au/vfslog/op"
)

// PayloadView is the JSON form of a payload. Data is base64 encoded.
type PayloadView struct {
	Ref    string `json:"ref"`
	Source int    `json:"source"`
	Size   int    `json:"size"`
	Data   []byte `json:"data"`
}

// NewPayloadCommand creates the payload command.
func NewPayloadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "payload <dir> <ref>",
		Short: "Print the payload behind a ref",
		Long: `Print the payload a descriptor refers to. The ref is the raw 64 bit
value shown in dump output, in decimal or 0x hex. Text output writes the
bytes unchanged.

Example:
  vfslog payload ./vfs-log 0x0800000000000040`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayload(cmd, rootOpts, args[0], args[1])
		},
	}
}

func runPayload(cmd *cobra.Command, opts *RootOptions, dir, arg string) error {
	v, err := strconv.ParseUint(arg, 0, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid ref", err)
	}
	ref := op.PayloadRef(v)

	s, err := openSnapshot(cmd, opts, dir)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := s.query.ReadPayload(ref)
	if err != nil {
		return WrapExitError(ExitFailure, "payload not readable", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Emit(PayloadView{Ref: ref.String(), Source: int(ref.Source()), Size: len(data), Data: data}, "")
	}
	_, err = out.Writer.Write(data)
	return err
}
