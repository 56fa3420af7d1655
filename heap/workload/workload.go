// Package workload drives a heap with the synthetic programs used to compare
// allocation strategies, and reports how much address space each needed
// compared to what the program actually asked for.
package workload

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// ErrUnknown is returned by Lookup for an unregistered workload name.
var ErrUnknown = errors.New("workload: unknown workload")

// Params sizes a run. Zero fields take the workload's default.
type Params struct {
	Seed   uint64
	Rounds int // outer iterations
	Count  int // allocations per round, or total allocations for flat workloads
}

// Result summarises one run.
type Result struct {
	Name     string
	Strategy alloc.Strategy

	// Needed is the number of bytes the program requested, counting its own
	// bookkeeping structures the way a C program would.
	Needed uint64
	// Allocated is the address space the heap mapped during the run.
	Allocated uint64
	// FreeBlocks is the free-list length when the run ended.
	FreeBlocks int
	// Ratio is Allocated / Needed.
	Ratio float64

	Stats alloc.Stats
}

// Func runs a workload against h and returns the bytes it needed.
type Func func(h *alloc.Heap, rng *rand.Rand, p Params) (uint64, error)

var registry = map[string]Func{
	"realistic": Realistic,
	"pagesized": PageSized,
	"churn":     Churn,
}

// Names lists the registered workloads in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the workload registered under name (case-insensitive).
func Lookup(name string) (Func, error) {
	fn, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "%q (have %s)", name, strings.Join(Names(), ", "))
	}
	return fn, nil
}

// Run executes the named workload on h and measures it.
func Run(name string, h *alloc.Heap, p Params) (Result, error) {
	fn, err := Lookup(name)
	if err != nil {
		return Result{}, err
	}

	before := h.Diagnostics()
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	needed, err := fn(h, rng, p)
	if err != nil {
		return Result{}, errors.Wrapf(err, "workload %s", name)
	}

	after := h.Diagnostics()
	res := Result{
		Name:       strings.ToLower(name),
		Strategy:   h.Strategy(),
		Needed:     needed,
		Allocated:  uint64(after.MappedBytes - before.MappedBytes),
		FreeBlocks: after.FreeBlocks,
		Stats:      h.Stats(),
	}
	if needed > 0 {
		res.Ratio = float64(res.Allocated) / float64(needed)
	}
	return res, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
