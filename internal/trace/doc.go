// Package trace records what the runtime does while it runs: campaign and run
// boundaries, scheduler ticks, thread starts and retirements, and runtime
// warnings. It exists to diagnose stuck scripts and slow projects; branch
// distances are recorded separately by package branchtrace.
//
// # Usage
//
//	blockvm run --trace=- --trace-level=tick project.json
//	blockvm run --trace=run.ndjson --trace-mode=both project.json
//
// # Tracers
//
//   - Nop drops everything.
//   - StreamTracer writes each event as it arrives.
//   - RingTracer keeps the last N events; DumpRing writes them out when a
//     command fails.
//   - MultiTracer fans out to several tracers.
//   - ForRun wraps a tracer so the events of one campaign run carry its run
//     number and nest under its span.
//
// # Levels and scopes
//
// A level keeps every scope up to its own: run keeps ScopeRun, tick keeps
// ScopeTick and ScopeThread, debug keeps ScopeBlock too. Warnings and
// heartbeats are kept at every level except off.
//
// # Context
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.BeginCtx(ctx, trace.ScopeRun, "campaign")
//	defer span.End("")
package trace
