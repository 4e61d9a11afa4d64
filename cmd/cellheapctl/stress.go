package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmcore/cellheap"
)

// newStressCmd reproduces spec.md §8 scenario 1: cons a large number of
// cells, keep every Nth one on the protect stack, force a collection,
// and report how many cells survived.
func newStressCmd() *cobra.Command {
	var n int
	var keepEvery int
	var torture bool

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Allocate cons cells, protect a regular subset, and report survivors after GC",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := cellheap.NewHeap(cellheap.DefaultTunables())
			if torture {
				h.GCTorture(true)
			}

			kept := 0
			for i := 0; i < n; i++ {
				c, err := h.Cons(h.Nil(), h.Nil())
				if err != nil {
					return fmt.Errorf("cons %d: %w", i, err)
				}
				if keepEvery > 0 && i%keepEvery == 0 {
					h.Protect(c)
					kept++
				}
			}

			inUseBefore := h.CellsInUse()
			report := h.GC()
			fmt.Fprintf(cmd.OutOrStdout(), "allocated=%d kept=%d cells_in_use_before_gc=%d cells_in_use_after_gc=%d\n",
				n, kept, inUseBefore, h.CellsInUse())
			fmt.Fprintf(cmd.OutOrStdout(), "report=%v\n", report)

			if kept > 0 {
				h.Unprotect(kept)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&n, "n", 100_000, "number of cons cells to allocate")
	flags.IntVar(&keepEvery, "keep-every", 1000, "protect every Nth allocated cell (0 disables protection)")
	flags.BoolVar(&torture, "torture", false, "force a collection before every allocation")

	return cmd
}
