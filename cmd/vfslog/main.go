// Command vfslog inspects operation log directories without modifying
// them.
package main

import (
	"fmt"
	"os"

	"github.com/jpl-au/vfslog/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
