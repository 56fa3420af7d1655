package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
)

var (
	freelistSizes   []uint
	freelistRequest uint
)

func init() {
	cmd := newFreelistCmd()
	cmd.Flags().UintSliceVar(&freelistSizes, "holes", []uint{64, 32, 128}, "Sizes of the free holes to create, in address order")
	cmd.Flags().UintVar(&freelistRequest, "request", 40, "Size to allocate after the holes exist (0 = none)")
	rootCmd.AddCommand(cmd)
}

func newFreelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freelist",
		Short: "Build a fragmented heap and show which hole a request takes",
		Long: `The freelist command allocates one block per --holes size, each followed by a
small guard block that stays allocated, then releases the sized blocks so they
become separate free records. It prints the free list, performs one
allocation of --request bytes with the selected strategy, and prints the
list again.

Example:
  heapctl freelist --arena 65536
  heapctl freelist --holes 128,32,64 --request 40 --strategy best-fit
  heapctl freelist --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFreelist()
		},
	}
	return cmd
}

func runFreelist() error {
	s, err := selectedStrategy()
	if err != nil {
		return err
	}
	h, cleanup, err := newHeap(s)
	if err != nil {
		return err
	}
	defer cleanup()

	holes := make([]alloc.Ptr, 0, len(freelistSizes))
	for _, size := range freelistSizes {
		p, err := h.Alloc(size)
		if err != nil {
			return errors.Wrapf(err, "failed to allocate hole of %d bytes", size)
		}
		if _, err := h.Alloc(8); err != nil {
			return errors.Wrap(err, "failed to allocate guard")
		}
		holes = append(holes, p)
	}
	for _, p := range holes {
		h.Release(p)
	}

	if !jsonOut {
		printInfo("Strategy: %s\n\n", s)
		printInfo("Before:\n")
		printFreeList(h)
	}

	if freelistRequest > 0 {
		p, err := h.Alloc(freelistRequest)
		if err != nil {
			return errors.Wrapf(err, "failed to allocate %d bytes", freelistRequest)
		}
		if !jsonOut {
			printInfo("\nAlloc(%d) -> %#x (payload %d bytes)\n\n", freelistRequest, p.Addr(), p.Len())
			printInfo("After:\n")
			printFreeList(h)
		}
	}

	if err := h.Validate(); err != nil {
		return err
	}

	if jsonOut {
		_, err := os.Stdout.Write(append(h.DiagnosticsJSON(), '\n'))
		return err
	}
	return nil
}

func printFreeList(h *alloc.Heap) {
	printInfo("  %-4s %-18s %10s\n", "#", "HEADER", "SIZE")
	i := 0
	h.VisitFree(func(addr, size uintptr) bool {
		printInfo("  %-4d %#-18x %10d\n", i, addr, size)
		i++
		return true
	})
	d := h.Diagnostics()
	printInfo("  %d free blocks, %d free bytes, heap extent %#x\n", d.FreeBlocks, d.FreeBytes, d.HeapExtent)
}
