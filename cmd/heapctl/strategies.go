package main

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/workload"
)

func init() {
	cmd := newStrategiesCmd()
	cmd.Flags().IntVar(&benchRounds, "rounds", 0, "Outer iterations (workload default when 0)")
	cmd.Flags().IntVar(&benchCount, "count", 0, "Allocations per round (workload default when 0)")
	rootCmd.AddCommand(cmd)
}

func newStrategiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies <workload>",
		Short: "Compare first-fit and best-fit on the same workload",
		Long: `The strategies command runs a workload once per selection strategy, each
on its own heap with the same seed, and prints the reports side by side.
The --strategy flag is ignored.

Example:
  heapctl strategies realistic --rounds 200
  heapctl strategies churn --arena 16777216 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrategies(args)
		},
	}
	return cmd
}

func runStrategies(args []string) error {
	if _, err := workload.Lookup(args[0]); err != nil {
		return err
	}

	strategies := []alloc.Strategy{alloc.FirstFit, alloc.BestFit}
	results := make([]workload.Result, len(strategies))

	var g errgroup.Group
	for i, s := range strategies {
		g.Go(func() error {
			h, cleanup, err := newHeap(s)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := workload.Run(args[0], h, benchParams())
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOut {
		w := jwriter.NewWriter()
		arr := w.Array()
		for _, res := range results {
			obj := arr.Object()
			writeResult(&obj, res)
			obj.End()
		}
		arr.End()
		return writeJSON(&w)
	}

	printInfo("Workload: %s\n\n", results[0].Name)
	printInfo("%-10s %12s %14s %14s %8s\n", "STRATEGY", "FREE BLOCKS", "ALLOCATED", "NEEDED", "RATIO")
	for _, res := range results {
		printInfo("%-10s %12d %14d %14d %7.2fx\n",
			res.Strategy, res.FreeBlocks, res.Allocated, res.Needed, res.Ratio)
	}

	best := results[0]
	for _, res := range results[1:] {
		if res.Ratio < best.Ratio {
			best = res
		}
	}
	printVerbose("\nLowest overhead: %s\n", best.Strategy)
	return nil
}
