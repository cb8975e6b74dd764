package asyncrt

import (
	"errors"
	"reflect"
	"testing"
)

func TestContinuationsRunOnlyFromRunReady(t *testing.T) {
	exec := NewExecutor(Config{Deterministic: true})
	p := exec.NewPromise("speak")
	var got any
	p.Then(func(v any) { got = v }, nil)

	if !p.Resolve(42) {
		t.Fatalf("first resolve must succeed")
	}
	if got != nil {
		t.Fatalf("continuation ran synchronously: %v", got)
	}
	if n := exec.RunReady(); n != 1 {
		t.Fatalf("expected 1 continuation, got %d", n)
	}
	if got != 42 {
		t.Fatalf("want 42, got %v", got)
	}
	if p.Resolve(7) {
		t.Fatalf("second resolve must be ignored")
	}
}

func TestThenAfterSettleIsQueued(t *testing.T) {
	exec := NewExecutor(Config{Deterministic: true})
	p := exec.NewPromise("late")
	p.Resolve("ok")
	exec.RunReady()

	var got any
	p.Then(func(v any) { got = v }, nil)
	exec.RunReady()
	if got != "ok" {
		t.Fatalf("want ok, got %v", got)
	}
}

func TestRejectCallsErrorContinuation(t *testing.T) {
	exec := NewExecutor(Config{Deterministic: true})
	p := exec.NewPromise("fail")
	boom := errors.New("boom")
	var got error
	p.Then(func(any) { t.Fatalf("resolved continuation must not run") }, func(err error) { got = err })
	p.Reject(boom)
	exec.RunReady()
	if !errors.Is(got, boom) {
		t.Fatalf("want boom, got %v", got)
	}
	_, kind, err := p.Result()
	if kind != TaskResultFailure || !errors.Is(err, boom) {
		t.Fatalf("unexpected result %v %v", kind, err)
	}
}

func TestCancelDropsContinuations(t *testing.T) {
	exec := NewExecutor(Config{Deterministic: true})
	p := exec.ResolveAfter(100, "late", "wait")
	ran := false
	p.Then(func(any) { ran = true }, nil)
	p.Cancel()

	exec.AdvanceTo(500)
	exec.RunReady()
	if ran {
		t.Fatalf("cancelled promise ran its continuation")
	}
	if !p.Cancelled() || p.Settled() {
		t.Fatalf("expected cancelled, unsettled promise")
	}
	if exec.HasWork() {
		t.Fatalf("cancelled timer still armed")
	}
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	exec := NewExecutor(Config{Deterministic: true})
	var order []string
	for _, tc := range []struct {
		name  string
		delay uint64
	}{{"c", 300}, {"a", 100}, {"b", 200}, {"a2", 100}} {
		name := tc.name
		exec.ResolveAfter(tc.delay, name, name).Then(func(v any) { order = append(order, v.(string)) }, nil)
	}

	if fired := exec.AdvanceTo(150); fired != 2 {
		t.Fatalf("expected 2 timers by 150ms, got %d", fired)
	}
	exec.RunReady()
	exec.AdvanceTo(1000)
	exec.RunReady()

	want := []string{"a", "a2", "b", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order mismatch: want %v, got %v", want, order)
	}
	if exec.NowMs() != 1000 {
		t.Fatalf("clock not advanced: %d", exec.NowMs())
	}
}

func TestFuzzSchedulingIsReproducible(t *testing.T) {
	run := func(seed uint64) []int {
		exec := NewExecutor(Config{Fuzz: true, Seed: seed})
		var order []int
		for i := 0; i < 8; i++ {
			p := exec.NewPromise("p")
			p.Then(func(v any) { order = append(order, v.(int)) }, nil)
			p.Resolve(i)
		}
		exec.RunReady()
		return order
	}
	a, b := run(99), run(99)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different orders: %v vs %v", a, b)
	}
	if len(a) != 8 {
		t.Fatalf("expected 8 continuations, got %d", len(a))
	}
}

func TestVirtualClock(t *testing.T) {
	c := NewVirtualClock(10)
	c.Advance(5)
	c.SleepUntilMs(12)
	if c.NowMs() != 15 {
		t.Fatalf("virtual clock went backwards: %d", c.NowMs())
	}
	c.SleepUntilMs(40)
	if c.NowMs() != 40 {
		t.Fatalf("want 40, got %d", c.NowMs())
	}
}

func TestCancelMiddleTimerKeepsOrder(t *testing.T) {
	exec := NewExecutor(Config{Deterministic: true})
	var order []string
	promises := map[string]*Promise{}
	for _, name := range []string{"d", "a", "c", "b"} {
		delay := uint64(name[0]-'a'+1) * 10
		p := exec.ResolveAfter(delay, name, name)
		p.Then(func(v any) { order = append(order, v.(string)) }, nil)
		promises[name] = p
	}
	promises["b"].Cancel()
	promises["c"].Cancel()

	if fired := exec.AdvanceTo(100); fired != 2 {
		t.Fatalf("fired %d timers, want 2", fired)
	}
	exec.RunReady()
	if !reflect.DeepEqual(order, []string{"a", "d"}) {
		t.Fatalf("order = %v", order)
	}
	if exec.HasWork() {
		t.Fatal("timers left armed")
	}
}

func TestFuzzSchedulingAcceptsAnySeed(t *testing.T) {
	for _, seed := range []uint64{0, 1, 1 << 63, ^uint64(0)} {
		exec := NewExecutor(Config{Fuzz: true, Seed: seed})
		ran := 0
		for i := 0; i < 4; i++ {
			p := exec.NewPromise("p")
			p.Then(func(any) { ran++ }, nil)
			p.Resolve(i)
		}
		if n := exec.RunReady(); n != 4 || ran != 4 {
			t.Fatalf("seed %d: ran %d/%d continuations", seed, n, ran)
		}
	}
}
