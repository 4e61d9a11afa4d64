// Command cellheapctl drives a cellheap.Heap through its public control
// surface outside of the test suite: allocation stress scenarios, an
// explicit GC report, and a per-tag memory census. It exists so the
// collector has a runnable entry point, the way the teacher corpus's
// runtime package is exercised by cmd/compile and cmd/link rather than
// only by runtime's own tests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmcore/cellheap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cellheapctl",
		Short:         "Drive a cellheap.Heap through allocation, collection, and profiling",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newStressCmd(), newGCCmd(), newProfileCmd())
	return root
}
