// Package campaign executes independent runs of a project with seeded random
// input and folds their branch traces into one report.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"time"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"blockvm/internal/asyncrt"
	"blockvm/internal/branchtrace"
	"blockvm/internal/engine"
	"blockvm/internal/observ"
	"blockvm/internal/primitives"
	"blockvm/internal/prof"
	"blockvm/internal/project"
	"blockvm/internal/sequencer"
	"blockvm/internal/trace"
)

// progressEvery is how many ticks pass between two StageRun progress events.
const progressEvery = 10

// Options configures a campaign.
type Options struct {
	Runs int
	// Jobs bounds parallel runs; GOMAXPROCS when zero.
	Jobs   int
	Ticks  int
	TickMs uint64
	// Seed seeds run i with Seed+i.
	Seed           int64
	InputRate      float64
	Keys           []string
	FuzzScheduling bool
	ProfileBlocks  bool
	// Realtime paces ticks with the wall clock instead of a virtual one.
	// Timer-driven blocks then depend on host speed, so runs stop being
	// reproducible.
	Realtime bool

	Events   trace.Tracer
	Progress ProgressSink
}

// RunResult is the outcome of one run.
type RunResult struct {
	Index   int
	Seed    int64
	Ticks   int
	Inputs  int
	Covered int
	Elapsed time.Duration
	Report  *branchtrace.Report
	Profile *prof.Profiler
	Timings observ.Report
}

// Result is the merged outcome of a campaign.
type Result struct {
	Report  *branchtrace.Report
	Runs    []RunResult
	Profile *prof.Profiler
	// Timings sums the phases of all runs.
	Timings observ.Report
}

// withDefaults fills unset options. A nil Events falls back to the tracer
// carried by ctx.
func (o Options) withDefaults(ctx context.Context) Options {
	if o.Events == nil {
		o.Events = trace.FromContext(ctx)
	}
	if o.Runs <= 0 {
		o.Runs = 1
	}
	if o.Jobs <= 0 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	if o.TickMs == 0 {
		o.TickMs = sequencer.DefaultOptions().TickMs
	}
	return o
}

// Fingerprint identifies the project together with the settings that shape a
// run, so reports of different campaigns can be told apart.
func Fingerprint(p *project.Project, o Options) project.Digest {
	settings := fmt.Sprintf("runs=%d ticks=%d tick_ms=%d seed=%d input_rate=%g keys=%q fuzz=%t",
		o.Runs, o.Ticks, o.TickMs, o.Seed, o.InputRate, o.Keys, o.FuzzScheduling)
	return project.Combine(p.Hash, project.Sum([]byte(settings)))
}

// Run executes opts.Runs runs of p in parallel. Each run gets a fresh
// runtime and tracer. Reports are merged in run order, so the result does not
// depend on scheduling.
func Run(ctx context.Context, p *project.Project, opts Options) (*Result, error) {
	if p == nil {
		return nil, errors.New("campaign: nil project")
	}
	opts = opts.withDefaults(ctx)
	ctx, span := trace.BeginCtx(trace.WithTracer(ctx, opts.Events), trace.ScopeRun, "campaign")
	span.WithExtra("runs", strconv.Itoa(opts.Runs))

	for i := range opts.Runs {
		emit(opts.Progress, Event{Run: i, Stage: StageSetup, Status: StatusQueued, Ticks: opts.Ticks})
	}

	results := make([]RunResult, opts.Runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(opts.Jobs, opts.Runs))
	for i := range opts.Runs {
		g.Go(func() error {
			res, err := RunOne(gctx, p, opts, i)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			// each goroutine owns index i
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End("error")
		emit(opts.Progress, Event{Run: -1, Stage: StageMerge, Status: StatusError, Err: err})
		return nil, err
	}

	start := time.Now()
	emit(opts.Progress, Event{Run: -1, Stage: StageMerge, Status: StatusWorking})
	out := &Result{
		Report: &branchtrace.Report{Project: Fingerprint(p, opts).Short()},
		Runs:   results,
	}
	if opts.ProfileBlocks {
		out.Profile = prof.NewProfiler()
	}
	for _, res := range results {
		out.Report.Merge(res.Report)
		out.Timings = out.Timings.Merge(res.Timings)
		if out.Profile != nil {
			out.Profile.Merge(res.Profile)
		}
	}
	covered := len(out.Report.Coverage)
	emit(opts.Progress, Event{Run: -1, Stage: StageMerge, Status: StatusDone, Covered: covered, Elapsed: time.Since(start)})
	span.End("covered=" + strconv.Itoa(covered))
	return out, nil
}

// RunOne executes run index of a campaign: green flag, then opts.Ticks ticks
// with random input posted before each tick.
func RunOne(ctx context.Context, p *project.Project, opts Options, index int) (RunResult, error) {
	opts = opts.withDefaults(ctx)
	start := time.Now()
	timer := observ.NewTimer()
	phase := timer.Begin("setup")
	seed := opts.Seed + int64(index)
	res := RunResult{Index: index, Seed: seed}
	emit(opts.Progress, Event{Run: index, Stage: StageSetup, Status: StatusWorking, Ticks: opts.Ticks})

	var profiler *prof.Profiler
	if opts.ProfileBlocks {
		profiler = prof.NewProfiler()
	}
	events := trace.ForRun(opts.Events, index+1, trace.CurrentSpan(ctx))
	span := trace.Begin(events, trace.ScopeRun, "run", 0).WithExtra("seed", strconv.FormatInt(seed, 10))

	var clock asyncrt.Clock = asyncrt.NewVirtualClock(0)
	if opts.Realtime {
		clock = asyncrt.NewRealClock()
	}
	rt := engine.NewRuntime(engine.Options{
		Clock: clock,
		Async: asyncrt.Config{
			Deterministic: !opts.FuzzScheduling,
			Fuzz:          opts.FuzzScheduling,
			Seed:          safecast.MustConv[uint64](seed & math.MaxInt64),
		},
		Events:   trace.ForRun(opts.Events, index+1, span.ID()),
		Profiler: profiler,
		Seed:     seed,
	})
	primitives.Register(rt)
	p.Instantiate(rt, p.NewRenderer())
	tracer := branchtrace.New(rt)
	tracer.Reset(rt)
	rt.Tracer = tracer
	seq := sequencer.New(rt, sequencer.Options{TickMs: opts.TickMs})
	input := newInputDriver(seed, opts.InputRate, opts.Keys)
	timer.End(phase, "")

	phase = timer.Begin("ticks")
	seq.GreenFlag()
	for tick := range opts.Ticks {
		if err := ctx.Err(); err != nil {
			span.End("cancelled")
			emit(opts.Progress, Event{Run: index, Stage: StageRun, Status: StatusError, Tick: tick, Ticks: opts.Ticks, Err: err})
			return res, err
		}
		tickStart := clock.NowMs()
		input.step(rt)
		seq.Tick()
		clock.SleepUntilMs(tickStart + opts.TickMs)
		res.Ticks++
		if res.Ticks%progressEvery == 0 {
			emit(opts.Progress, Event{
				Run: index, Stage: StageRun, Status: StatusWorking,
				Tick: res.Ticks, Ticks: opts.Ticks, Covered: tracer.CoverageLen(),
			})
		}
	}

	timer.End(phase, "")

	res.Inputs = input.posted
	_ = timer.Measure("report", func() error {
		res.Report = tracer.Report()
		return nil
	})
	res.Covered = len(res.Report.Coverage)
	res.Timings = timer.Report()
	res.Profile = profiler
	res.Elapsed = time.Since(start)
	span.End("covered=" + strconv.Itoa(res.Covered))
	emit(opts.Progress, Event{
		Run: index, Stage: StageRun, Status: StatusDone,
		Tick: res.Ticks, Ticks: opts.Ticks, Covered: res.Covered, Elapsed: res.Elapsed,
	})
	return res, nil
}
