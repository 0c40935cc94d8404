// Command diamondctl manages keys and talks to a diamondd router.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "diamondctl",
		Short:         "Keys, selectors and router operations for diamondd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newKeysCmd(),
		newSelectorCmd(),
		newModuleIDCmd(),
		newRouterAddressCmd(),
		newDemoCmd(),
		newTokenCmd(),
		newModuleCmd(),
		newLoupeCmd(),
		newOwnerCmd(),
		newSnapshotCmd(),
	)
	return root
}
