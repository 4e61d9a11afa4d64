package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmcore/cellheap"
)

// newGCCmd allocates a small working set, runs an explicit GC, and
// prints the ten-element report array GC returns (spec.md §4.8).
func newGCCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Run an explicit GC over a freshly allocated heap and print its report array",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := cellheap.NewHeap(cellheap.DefaultTunables())
			h.GCInfo(true)

			for i := 0; i < n; i++ {
				if _, err := h.Cons(h.Nil(), h.Nil()); err != nil {
					return fmt.Errorf("cons %d: %w", i, err)
				}
			}

			report := h.GC()
			stats := h.LastGC()
			fmt.Fprintf(cmd.OutOrStdout(), "report=%v\n", report)
			fmt.Fprintf(cmd.OutOrStdout(), "level=%d cells_used=%d pages_released=%d large_vectors_freed=%d finalizers_run=%d\n",
				stats.Level, stats.CellsUsed, stats.PagesReleased, stats.LargeVectorsFreed, stats.FinalizersRun)
			return nil
		},
	}

	cmd.Flags().IntVar(&n, "n", 10_000, "number of throwaway cons cells to allocate before collecting")
	return cmd
}
