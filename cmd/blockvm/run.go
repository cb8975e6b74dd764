package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"blockvm/internal/branchtrace"
	"blockvm/internal/campaign"
	"blockvm/internal/config"
	"blockvm/internal/observ"
	"blockvm/internal/project"
)

var runCmd = &cobra.Command{
	Use:   "run [project.json]",
	Short: "Run a project and record branch distances",
	Long: `Run executes the project for a number of ticks, optionally several times in
parallel with random keyboard and mouse input, and writes the merged coverage
and branch-distance report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecution,
}

func init() { addRunFlags(runCmd) }

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("ticks", 0, "ticks per run (default from config: 300)")
	f.Uint64("tick-ms", 0, "milliseconds per tick (default from config: 33)")
	f.Int("runs", 0, "number of independent runs")
	f.Int("jobs", 0, "parallel runs (0 = one per CPU)")
	f.Int64("seed", 0, "seed of the first run; run i uses seed+i")
	f.Float64("input-rate", 0, "chance per tick of a random input event")
	f.StringSlice("keys", nil, "keys the random input presses")
	f.Bool("fuzz-scheduling", false, "shuffle the order of ready promise continuations")
	f.Bool("realtime", false, "pace ticks with the wall clock (runs are no longer reproducible)")
	f.StringP("out", "o", "", "write the report to file")
	f.String("format", "", "report format (msgpack|json)")
	f.Int("profile-blocks", 0, "print the N most executed opcodes")
	f.String("ui", "auto", "progress UI (auto|on|off)")
}

// runSettings is the merge of blockvm.toml and the run flags.
type runSettings struct {
	projectPath   string
	options       campaign.Options
	out           string
	format        branchtrace.Format
	profileBlocks int
	ui            uiMode
}

func resolveRunSettings(cmd *cobra.Command, args []string, cfg config.Config) (runSettings, error) {
	f := cmd.Flags()
	s := runSettings{
		projectPath: cfg.Project.Path,
		out:         cfg.Output.Traces,
		options: campaign.Options{
			Runs:           cfg.Run.Runs,
			Jobs:           cfg.Run.Jobs,
			Ticks:          cfg.Run.Ticks,
			TickMs:         cfg.Run.TickMs,
			Seed:           cfg.Run.Seed,
			InputRate:      cfg.Run.InputRate,
			Keys:           cfg.Run.Keys,
			FuzzScheduling: cfg.Run.FuzzScheduling,
		},
	}
	if len(args) == 1 {
		s.projectPath = args[0]
	}
	if s.projectPath == "" {
		return s, errors.New("no project given: pass a project file or set [project] path in " + config.FileName)
	}

	var err error
	changed := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	changed("ticks", func() (e error) { s.options.Ticks, e = f.GetInt("ticks"); return })
	changed("tick-ms", func() (e error) { s.options.TickMs, e = f.GetUint64("tick-ms"); return })
	changed("runs", func() (e error) { s.options.Runs, e = f.GetInt("runs"); return })
	changed("jobs", func() (e error) { s.options.Jobs, e = f.GetInt("jobs"); return })
	changed("seed", func() (e error) { s.options.Seed, e = f.GetInt64("seed"); return })
	changed("input-rate", func() (e error) { s.options.InputRate, e = f.GetFloat64("input-rate"); return })
	changed("keys", func() (e error) { s.options.Keys, e = f.GetStringSlice("keys"); return })
	changed("fuzz-scheduling", func() (e error) { s.options.FuzzScheduling, e = f.GetBool("fuzz-scheduling"); return })
	changed("realtime", func() (e error) { s.options.Realtime, e = f.GetBool("realtime"); return })
	changed("out", func() (e error) { s.out, e = f.GetString("out"); return })
	if err != nil {
		return s, err
	}

	formatStr := cfg.Output.Format
	if f.Changed("format") {
		if formatStr, err = f.GetString("format"); err != nil {
			return s, err
		}
	}
	if s.format, err = branchtrace.ParseFormat(formatStr); err != nil {
		return s, err
	}
	if s.profileBlocks, err = f.GetInt("profile-blocks"); err != nil {
		return s, err
	}
	s.options.ProfileBlocks = s.profileBlocks > 0
	uiStr, err := f.GetString("ui")
	if err != nil {
		return s, err
	}
	if s.ui, err = readUIMode(uiStr); err != nil {
		return s, err
	}

	switch {
	case s.options.Ticks <= 0:
		return s, fmt.Errorf("--ticks must be positive, got %d", s.options.Ticks)
	case s.options.Runs <= 0:
		return s, fmt.Errorf("--runs must be positive, got %d", s.options.Runs)
	case s.options.InputRate < 0 || s.options.InputRate > 1:
		return s, fmt.Errorf("--input-rate must be in [0, 1], got %g", s.options.InputRate)
	}
	return s, nil
}

func runExecution(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	settings, err := resolveRunSettings(cmd, args, cfg)
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	profiling, err := startProfiling(cmd)
	if err != nil {
		return err
	}
	defer profiling.Stop(cmd.ErrOrStderr())
	cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { cleanup(err != nil) }()

	timer := observ.NewTimer()
	phase := timer.Begin("load")
	p, err := project.Load(settings.projectPath)
	if err != nil {
		return err
	}
	if cfg.Stage.Set {
		p.Stage = project.StageSize{Width: cfg.Stage.Width, Height: cfg.Stage.Height}
	}
	timer.End(phase, fmt.Sprintf("%d targets, %d blocks", len(p.Targets), p.BlockCount()))

	opts := settings.options
	phase = timer.Begin("run")
	var res *campaign.Result
	if shouldUseTUI(settings.ui, quiet) {
		res, err = runCampaignWithUI(cmd.Context(), filepath.Base(settings.projectPath), p, opts)
	} else {
		res, err = campaign.Run(cmd.Context(), p, opts)
	}
	if err != nil {
		return err
	}
	timer.End(phase, fmt.Sprintf("%d runs x %d ticks", opts.Runs, opts.Ticks))

	out := cmd.OutOrStdout()
	if settings.out != "" {
		phase = timer.Begin("export")
		if err := res.Report.WriteFile(settings.out, settings.format); err != nil {
			return err
		}
		timer.End(phase, settings.format.String())
	}

	if !quiet {
		printSummary(out, p, res)
		if settings.out != "" {
			fmt.Fprintf(out, "report written to %s (%s)\n", settings.out, settings.format)
		}
	}
	if settings.profileBlocks > 0 && res.Profile != nil {
		fmt.Fprintln(out)
		fmt.Fprint(out, res.Profile.Table(settings.profileBlocks))
	}
	if showTimings {
		printTimings(out, timer, res)
	}
	return nil
}

func printTimings(out io.Writer, timer *observ.Timer, res *campaign.Result) {
	fmt.Fprint(out, timer.Summary())
	if res != nil && len(res.Timings.Phases) > 0 {
		fmt.Fprint(out, res.Timings.Summary("run phases"))
	}
}
