package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"blockvm/internal/prof"
)

// profiling holds the Go profilers enabled by --cpu-profile, --mem-profile
// and --runtime-trace.
type profiling struct {
	memPath string
	cpu     bool
	trace   bool
	stopped bool
}

// startProfiling starts the profilers requested on the command line. Stop
// must be called once the work is done; it is safe to call more than once.
func startProfiling(cmd *cobra.Command) (*profiling, error) {
	flags := cmd.Root().PersistentFlags()
	cpuPath, err := flags.GetString("cpu-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	tracePath, err := flags.GetString("runtime-trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	p := &profiling{}
	if p.memPath, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}

	if cpuPath != "" {
		if err := prof.StartCPU(cpuPath); err != nil {
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
		p.cpu = true
	}
	if tracePath != "" {
		if err := prof.StartTrace(tracePath); err != nil {
			p.Stop(io.Discard)
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
		p.trace = true
	}
	return p, nil
}

// Stop ends every running profiler and writes the heap profile. Failures to
// write the heap profile are reported to errOut.
func (p *profiling) Stop(errOut io.Writer) {
	if p == nil || p.stopped {
		return
	}
	p.stopped = true
	if p.trace {
		prof.StopTrace()
	}
	if p.cpu {
		prof.StopCPU()
	}
	if p.memPath != "" {
		if err := prof.WriteMem(p.memPath); err != nil {
			if errOut == nil {
				errOut = os.Stderr
			}
			fmt.Fprintf(errOut, "failed to write heap profile: %v\n", err)
		}
	}
}
