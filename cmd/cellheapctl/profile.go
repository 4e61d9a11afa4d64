package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vmcore/cellheap"
)

// profileFormat is a pflag.Value implementing the "table" / "json"
// enum the profile command's --format flag accepts, the same pattern
// cobra's own docs use for flags with a closed set of valid strings.
type profileFormat string

func (f *profileFormat) String() string { return string(*f) }

func (f *profileFormat) Set(v string) error {
	switch v {
	case "table", "json":
		*f = profileFormat(v)
		return nil
	default:
		return fmt.Errorf("format must be %q or %q, got %q", "table", "json", v)
	}
}

func (f *profileFormat) Type() string { return "format" }

var _ pflag.Value = (*profileFormat)(nil)

// newProfileCmd reproduces spec.md §8 scenario 7-style census taking:
// allocate a mixed working set, run MemProfile, and print the per-tag
// table it returns.
func newProfileCmd() *cobra.Command {
	var n int
	format := profileFormat("table")

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Allocate a mixed working set and print a per-tag MemProfile census",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := cellheap.NewHeap(cellheap.DefaultTunables())

			for i := 0; i < n; i++ {
				c, err := h.Cons(h.Nil(), h.Nil())
				if err != nil {
					return fmt.Errorf("cons %d: %w", i, err)
				}
				h.Preserve(c)
			}
			if _, err := h.AllocVector(cellheap.TagRealVector, 256); err != nil {
				return fmt.Errorf("alloc vector: %w", err)
			}

			rows := h.MemProfile()
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			default:
				for _, row := range rows {
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s cells=%-8d bytes=%d\n", row.Tag, row.Cells, row.Bytes)
				}
				return nil
			}
		},
	}

	cmd.Flags().IntVar(&n, "n", 5_000, "number of preserved cons cells to allocate before profiling")
	cmd.Flags().Var(&format, "format", `output format: "table" or "json"`)
	return cmd
}
