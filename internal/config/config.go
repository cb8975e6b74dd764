// Package config loads blockvm.toml. Values missing from the file keep
// their defaults; command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"blockvm/internal/trace"
)

type Config struct {
	Project ProjectSection `toml:"project"`
	Run     RunSection     `toml:"run"`
	Stage   StageSection   `toml:"stage"`
	Trace   TraceSection   `toml:"trace"`
	Output  OutputSection  `toml:"output"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type ProjectSection struct {
	Path string `toml:"path"`
}

type RunSection struct {
	Ticks  int    `toml:"ticks"`
	TickMs uint64 `toml:"tick_ms"`
	Runs   int    `toml:"runs"`
	// Jobs bounds parallel runs; 0 means one per CPU.
	Jobs int   `toml:"jobs"`
	Seed int64 `toml:"seed"`
	// InputRate is the chance per tick that a random input event is posted.
	InputRate      float64  `toml:"input_rate"`
	Keys           []string `toml:"keys"`
	FuzzScheduling bool     `toml:"fuzz_scheduling"`
}

// StageSection overrides the project's stage size when Set.
type StageSection struct {
	Width  int  `toml:"width"`
	Height int  `toml:"height"`
	Set    bool `toml:"-"`
}

type TraceSection struct {
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Output    string `toml:"output"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

type OutputSection struct {
	// Traces is where the coverage report is written; empty skips it.
	Traces string `toml:"traces"`
	Format string `toml:"format"`
}

// Default returns the configuration used without blockvm.toml.
func Default() Config {
	return Config{
		Run: RunSection{
			Ticks:     300,
			TickMs:    33,
			Runs:      1,
			Seed:      1,
			InputRate: 0.1,
			Keys:      []string{"space", "left arrow", "right arrow", "up arrow", "down arrow"},
		},
		Trace: TraceSection{
			Level:    "off",
			Mode:     "ring",
			Output:   "-",
			RingSize: 4096,
		},
		Output: OutputSection{Format: "msgpack"},
	}
}

// Load reads path over the defaults and validates the result. A relative
// [project] path is resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Stage.Set = meta.IsDefined("stage", "width") || meta.IsDefined("stage", "height")
	if cfg.Project.Path != "" && !filepath.IsAbs(cfg.Project.Path) {
		cfg.Project.Path = filepath.Join(filepath.Dir(path), cfg.Project.Path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest blockvm.toml above startDir, or returns the
// defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, err := Find(startDir)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return Load(path)
}

// Validate checks value ranges and that the trace settings parse.
func (c Config) Validate() error {
	var problems []error
	if c.Run.Ticks <= 0 {
		problems = append(problems, fmt.Errorf("run.ticks must be positive, got %d", c.Run.Ticks))
	}
	if c.Run.TickMs == 0 {
		problems = append(problems, errors.New("run.tick_ms must be positive"))
	}
	if c.Run.Runs <= 0 {
		problems = append(problems, fmt.Errorf("run.runs must be positive, got %d", c.Run.Runs))
	}
	if c.Run.Jobs < 0 {
		problems = append(problems, fmt.Errorf("run.jobs must not be negative, got %d", c.Run.Jobs))
	}
	if c.Run.InputRate < 0 || c.Run.InputRate > 1 {
		problems = append(problems, fmt.Errorf("run.input_rate must be in [0, 1], got %g", c.Run.InputRate))
	}
	if c.Stage.Set && (c.Stage.Width <= 0 || c.Stage.Height <= 0) {
		problems = append(problems, fmt.Errorf("stage size %dx%d", c.Stage.Width, c.Stage.Height))
	}
	switch c.Output.Format {
	case "msgpack", "json":
	default:
		problems = append(problems, fmt.Errorf("output.format %q (expected: msgpack|json)", c.Output.Format))
	}
	if _, err := c.TraceConfig(); err != nil {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}

// TraceConfig converts the [trace] section for trace.New.
func (c Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	var heartbeat time.Duration
	if c.Trace.Heartbeat != "" {
		heartbeat, err = time.ParseDuration(c.Trace.Heartbeat)
		if err != nil {
			return trace.Config{}, fmt.Errorf("trace.heartbeat: %w", err)
		}
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
		Heartbeat:  heartbeat,
	}, nil
}
