package fuzztests

import (
	"bytes"
	"context"
	"testing"
	"time"

	"blockvm/internal/asyncrt"
	"blockvm/internal/engine"
	"blockvm/internal/primitives"
	"blockvm/internal/project"
	"blockvm/internal/sequencer"
	"blockvm/internal/testkit"
)

const (
	maxFuzzInput = 1 << 16
	fuzzTicks    = 30
	// runTimeout bounds fuzzTicks ticks; a longer run means a tick never ends.
	runTimeout = 5 * time.Second
)

func FuzzProjectDecode(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(_ *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		p, err := project.Decode(bytes.NewReader(input))
		if err != nil {
			return
		}
		_ = p.Validate()
	})
}

// FuzzProjectRun runs every valid input for a few ticks and checks that the
// runtime stays consistent and does not hang.
func FuzzProjectRun(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		p, err := project.Decode(bytes.NewReader(input))
		if err != nil || p.Validate() != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			clock := asyncrt.NewVirtualClock(0)
			rt := engine.NewRuntime(engine.Options{Clock: clock, Seed: 1})
			primitives.Register(rt)
			p.Instantiate(rt, p.NewRenderer())
			opts := sequencer.DefaultOptions()
			seq := sequencer.New(rt, opts)
			seq.GreenFlag()
			for range fuzzTicks {
				if ctx.Err() != nil {
					done <- nil
					return
				}
				seq.Tick()
				clock.Advance(opts.TickMs)
				if err := testkit.CheckRuntimeInvariants(rt, 0); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("invariant broken: %v\ninput: %q", err, input)
			}
		case <-ctx.Done():
			t.Fatalf("run hang detected: %d ticks took longer than %v\ninput (%d bytes)", fuzzTicks, runTimeout, len(input))
		}
	})
}
