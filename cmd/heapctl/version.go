package main

import (
	"runtime"
	"runtime/debug"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/host"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version and allocator build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	})
}

type buildInfo struct {
	Version   string
	Commit    string
	Built     string
	GoVersion string
	Heapkit   string
	Strategy  string
	Header    uintptr
	PageSize  uintptr
}

// collectBuildInfo fills in module versions from the embedded build info when
// the binary was not stamped through -ldflags.
func collectBuildInfo() buildInfo {
	bi := buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Heapkit:   "(devel)",
		Strategy:  alloc.FirstFit.String(),
		Header:    alloc.HeaderSize,
		PageSize:  host.NewOS().PageSize(),
	}
	if s, err := selectedStrategy(); err == nil {
		bi.Strategy = s.String()
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if bi.Version == "dev" && info.Main.Version != "" {
		bi.Version = info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == "github.com/joshuapare/heapkit" {
			bi.Heapkit = dep.Version
		}
	}
	return bi
}

func runVersion() error {
	bi := collectBuildInfo()

	if jsonOut {
		w := jwriter.NewWriter()
		obj := w.Object()
		obj.Name("version").String(bi.Version)
		obj.Name("commit").String(bi.Commit)
		obj.Name("built").String(bi.Built)
		obj.Name("go").String(bi.GoVersion)
		obj.Name("heapkit").String(bi.Heapkit)
		obj.Name("strategy").String(bi.Strategy)
		obj.Name("headerSize").Int(int(bi.Header))
		obj.Name("pageSize").Int(int(bi.PageSize))
		obj.End()
		return writeJSON(&w)
	}

	printInfo("heapctl %s\n", bi.Version)
	printInfo("  commit:   %s\n", bi.Commit)
	printInfo("  built:    %s\n", bi.Built)
	printInfo("  go:       %s\n", bi.GoVersion)
	printInfo("  heapkit:  %s\n", bi.Heapkit)
	printInfo("  strategy: %s\n", bi.Strategy)
	printInfo("  header:   %d bytes\n", bi.Header)
	printInfo("  page:     %d bytes\n", bi.PageSize)
	return nil
}
