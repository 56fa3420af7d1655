package main

import (
	"os"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/workload"
)

var (
	benchRounds int
	benchCount  int
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchRounds, "rounds", 0, "Outer iterations (workload default when 0)")
	cmd.Flags().IntVar(&benchCount, "count", 0, "Allocations per round (workload default when 0)")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <workload>",
		Short: "Run a synthetic workload and report memory efficiency",
		Long: `The bench command runs one of the built-in workloads against a fresh heap
and reports the free-list length, the address space mapped, the bytes the
program asked for, and the ratio between the two.

Workloads:
  realistic   random-length names in a list with sparse random removals
  pagesized   page-size-minus-header blocks (best case)
  churn       many tiny holes followed by a tight alloc/free loop

Example:
  heapctl bench realistic
  heapctl bench realistic --strategy best-fit --rounds 100
  heapctl bench pagesized --arena 67108864 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(args)
		},
	}
	return cmd
}

func runBench(args []string) error {
	s, err := selectedStrategy()
	if err != nil {
		return err
	}
	if _, err := workload.Lookup(args[0]); err != nil {
		return err
	}

	h, cleanup, err := newHeap(s)
	if err != nil {
		return err
	}
	defer cleanup()

	printVerbose("Running %s with %s\n", args[0], s)
	res, err := workload.Run(args[0], h, benchParams())
	if err != nil {
		return err
	}

	if jsonOut {
		w := jwriter.NewWriter()
		obj := w.Object()
		writeResult(&obj, res)
		obj.End()
		return writeJSON(&w)
	}

	printInfo("Strategy: %s\n", res.Strategy)
	printReport(res)
	printVerbose("Grow calls: %d, splits: %d, merges: %d\n",
		res.Stats.GrowCalls, res.Stats.SplitCount,
		res.Stats.CoalesceForward+res.Stats.CoalesceBackward)
	return nil
}

func benchParams() workload.Params {
	return workload.Params{Seed: seed, Rounds: benchRounds, Count: benchCount}
}

// printReport prints the classic four-line efficiency report.
func printReport(res workload.Result) {
	printInfo("Free blocks: %d\n", res.FreeBlocks)
	printInfo("Memory allocated: %d\n", res.Allocated)
	printInfo("Memory needed: %d\n", res.Needed)
	printInfo("Memory percentage: %.2fx more than needed\n", res.Ratio)
}

func writeResult(obj *jwriter.ObjectState, res workload.Result) {
	obj.Name("workload").String(res.Name)
	obj.Name("strategy").String(res.Strategy.String())
	obj.Name("freeBlocks").Int(res.FreeBlocks)
	obj.Name("allocated").Int(int(res.Allocated))
	obj.Name("needed").Int(int(res.Needed))
	obj.Name("ratio").Float64(res.Ratio)
	obj.Name("growCalls").Int(int(res.Stats.GrowCalls))
	obj.Name("allocCalls").Int(int(res.Stats.AllocCalls))
	obj.Name("failedAllocs").Int(int(res.Stats.FailedAllocs))
}

func writeJSON(w *jwriter.Writer) error {
	if err := w.Error(); err != nil {
		return err
	}
	out := append(w.Bytes(), '\n')
	_, err := os.Stdout.Write(out)
	return err
}
