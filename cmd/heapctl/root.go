package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/host"
)

var (
	// Global flags
	verbose      bool
	quiet        bool
	jsonOut      bool
	strategyName string
	arenaSize    uint64
	pageSize     uint64
	seed         uint64
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Exercise and inspect the heapkit free-list allocator",
	Long: `heapctl drives the heapkit allocator with synthetic workloads, compares
the first-fit and best-fit strategies, and dumps free-list state.

By default heaps grow from operating-system memory. Pass --arena to run inside
a fixed reserved slab instead, which makes addresses and growth reproducible.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogger()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and allocator debug logs")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVarP(&strategyName, "strategy", "s", "first-fit", "Block selection strategy (first-fit, best-fit)")
	rootCmd.PersistentFlags().
		Uint64Var(&arenaSize, "arena", 0, "Serve the heap from a reserved arena of this many bytes (0 = OS memory)")
	rootCmd.PersistentFlags().
		Uint64Var(&pageSize, "page-size", 0, "Arena page size in bytes (requires --arena; default 4096)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 1, "Random seed for workloads")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// newHeap builds a heap with the given strategy on the host selected by the
// global flags. The returned cleanup releases an arena, if one was created.
func newHeap(s alloc.Strategy) (*alloc.Heap, func(), error) {
	var (
		h       host.Host
		cleanup = func() {}
	)

	switch {
	case arenaSize > 0:
		a, err := host.NewArena(uintptr(arenaSize), &host.ArenaOptions{PageSize: uintptr(pageSize)})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create arena")
		}
		h = a
		cleanup = func() {
			if err := a.Close(); err != nil {
				log.WithError(err).Warn("arena close failed")
			}
		}
	case pageSize > 0:
		return nil, nil, errors.New("--page-size requires --arena")
	default:
		h = host.NewOS()
	}

	heap, err := alloc.New(h, &alloc.Options{
		Strategy: s,
		Logger:   allocLogger(),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	log.WithField("strategy", s).WithField("page_size", h.PageSize()).Debug("heap ready")
	return heap, cleanup, nil
}

func selectedStrategy() (alloc.Strategy, error) {
	return alloc.ParseStrategy(strategyName)
}

// Helper functions for output

var numbers = message.NewPrinter(language.English)

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		numbers.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		numbers.Fprintf(os.Stdout, format, args...)
	}
}
