package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blockvm/internal/config"
	"blockvm/internal/trace"
)

// setupTracing builds the tracer from the [trace] section, with any trace
// flag given on the command line taking precedence, and stores it in the
// command context. The returned cleanup dumps the ring buffer when the
// command failed, then flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, cfg config.Config) (func(failed bool), error) {
	flags := cmd.Root().PersistentFlags()
	tc, err := cfg.TraceConfig()
	if err != nil {
		return nil, err
	}

	if flags.Changed("trace") {
		if tc.OutputPath, err = flags.GetString("trace"); err != nil {
			return nil, fmt.Errorf("failed to get trace flag: %w", err)
		}
		// an explicit output without a level means "trace runs"
		if tc.Level == trace.LevelOff && !flags.Changed("trace-level") {
			tc.Level = trace.LevelRun
		}
		if !flags.Changed("trace-mode") && tc.Mode == trace.ModeRing {
			tc.Mode = trace.ModeStream
		}
	}
	if flags.Changed("trace-level") {
		levelStr, err := flags.GetString("trace-level")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
		}
		if tc.Level, err = trace.ParseLevel(levelStr); err != nil {
			return nil, fmt.Errorf("invalid trace level: %w", err)
		}
	}
	if flags.Changed("trace-mode") {
		modeStr, err := flags.GetString("trace-mode")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
		}
		if tc.Mode, err = trace.ParseMode(modeStr); err != nil {
			return nil, fmt.Errorf("invalid trace mode: %w", err)
		}
	}
	if flags.Changed("trace-ring-size") {
		if tc.RingSize, err = flags.GetInt("trace-ring-size"); err != nil {
			return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
	}
	if flags.Changed("trace-heartbeat") {
		if tc.Heartbeat, err = flags.GetDuration("trace-heartbeat"); err != nil {
			return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
	}

	if tc.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func(bool) {}, nil
	}

	tracer, err := trace.New(tc)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	heartbeat := trace.StartHeartbeat(tracer, tc.Heartbeat)

	cleanup := func(failed bool) {
		heartbeat.Stop()
		if failed {
			if err := trace.DumpRing(tracer, tc); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
