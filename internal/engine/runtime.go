// Package engine executes compiled block scripts: it owns targets, threads,
// the opcode registry and the per-operation branch-distance evaluation.
package engine

import (
	"image"
	"math/rand"
	"sort"
	"strings"

	"blockvm/internal/asyncrt"
	"blockvm/internal/blocks"
	"blockvm/internal/cast"
	"blockvm/internal/prof"
	"blockvm/internal/render"
	"blockvm/internal/trace"
)

// BlockFunc implements an opcode. It may return a value, nil, or an
// *asyncrt.Promise to suspend the thread until the promise settles.
type BlockFunc func(args Args, util *BlockUtility) any

// HatInfo describes how a hat opcode starts threads.
type HatInfo struct {
	EdgeActivated          bool
	RestartExistingThreads bool
}

// Renderer is the stage view the runtime draws into and queries.
type Renderer interface {
	StageBounds() render.Rect
	CreateDrawable() int
	DestroyDrawable(id int)
	SetSkin(id int, img image.Image, centerX, centerY float64)
	SetPosition(id int, x, y float64)
	SetVisible(id int, visible bool)
	VisibleDrawList() []int
	DrawableBounds(id int) render.Rect
	SampleColor(x, y float64, ids []int) cast.RGB
	IsTouchingColor(id int, c cast.RGB) bool
	IsTouchingColorMasked(id int, c, mask cast.RGB) bool
	IsTouchingDrawables(id int, others []int) bool
	PointInDrawable(id int, x, y float64) bool
}

// BlockTracer receives every block handed to Execute after its ops ran.
type BlockTracer interface {
	TraceExecutedBlock(block *BlockCached, target *Target)
}

// Sequencer steps threads. Execute calls back into it to retire threads and
// enter branches or procedures.
type Sequencer interface {
	Runtime() *Runtime
	RetireThread(t *Thread)
	StepToBranch(t *Thread, branch int, isLoop bool)
	StepToProcedure(t *Thread, proccode string)
}

// MonitorUpdate is a new value for a watched reporter.
type MonitorUpdate struct {
	ID         string
	TargetName string
	Value      any
}

// VisualReport is the value of a reporter clicked in the editor.
type VisualReport struct {
	BlockID string
	Value   any
}

// Keyboard tracks pressed keys by name ("space", "a", "left arrow").
type Keyboard struct {
	pressed map[string]bool
}

// SetPressed updates one key.
func (k *Keyboard) SetPressed(key string, down bool) {
	if k.pressed == nil {
		k.pressed = make(map[string]bool)
	}
	key = strings.ToLower(key)
	if down {
		k.pressed[key] = true
	} else {
		delete(k.pressed, key)
	}
}

// IsPressed reports whether key is held; "any" matches every key.
func (k *Keyboard) IsPressed(key string) bool {
	key = strings.ToLower(key)
	if key == "any" {
		return len(k.pressed) > 0
	}
	return k.pressed[key]
}

// Pressed returns the held keys in sorted order.
func (k *Keyboard) Pressed() []string {
	out := make([]string, 0, len(k.pressed))
	for key := range k.pressed {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Mouse is the pointer state in stage coordinates.
type Mouse struct {
	X, Y float64
	Down bool
}

// IODevices groups the input devices sensing blocks read.
type IODevices struct {
	Keyboard Keyboard
	Mouse    Mouse
}

// Options configures a Runtime.
type Options struct {
	Clock    asyncrt.Clock
	Async    asyncrt.Config
	Renderer Renderer
	Events   trace.Tracer
	Profiler *prof.Profiler
	Seed     int64
	// MaxClones caps live clones (300 when zero).
	MaxClones int
}

// Runtime holds everything a program run needs.
type Runtime struct {
	opcodes map[string]BlockFunc
	hats    map[string]HatInfo

	targets []*Target
	threads []*Thread

	FlyoutBlocks  *blocks.Container
	MonitorBlocks *blocks.Container

	monitorTargets map[string]string
	monitorUpdates []MonitorUpdate
	visualReports  []VisualReport

	Clock    asyncrt.Clock
	Async    *asyncrt.Executor
	Renderer Renderer
	IO       IODevices
	Profiler *prof.Profiler
	Tracer   BlockTracer
	Events   trace.Tracer
	Rand     *rand.Rand

	nextThreadID uint64
	timerStartMs uint64
	cloneSeq     int
	maxClones    int
	redraw       bool

	exec *execContext
}

// NewRuntime returns an empty runtime.
func NewRuntime(opts Options) *Runtime {
	clock := opts.Clock
	if clock == nil {
		clock = asyncrt.NewVirtualClock(0)
	}
	events := opts.Events
	if events == nil {
		events = trace.Nop
	}
	maxClones := opts.MaxClones
	if maxClones <= 0 {
		maxClones = 300
	}
	rt := &Runtime{
		opcodes:        make(map[string]BlockFunc),
		hats:           make(map[string]HatInfo),
		FlyoutBlocks:   blocks.NewContainer(),
		MonitorBlocks:  blocks.NewContainer(),
		monitorTargets: make(map[string]string),
		Clock:          clock,
		Async:          asyncrt.NewExecutor(opts.Async),
		Renderer:       opts.Renderer,
		Profiler:       opts.Profiler,
		Events:         events,
		Rand:           rand.New(rand.NewSource(opts.Seed)), //nolint:gosec // reproducible runs
		maxClones:      maxClones,
	}
	rt.FlyoutBlocks.ForceNoGlow = true
	rt.MonitorBlocks.ForceNoGlow = true
	rt.exec = newExecContext()
	return rt
}

// Register installs the implementation of opcode.
func (r *Runtime) Register(opcode string, fn BlockFunc) { r.opcodes[opcode] = fn }

// RegisterHat marks opcode as a hat.
func (r *Runtime) RegisterHat(opcode string, info HatInfo) { r.hats[opcode] = info }

// Opcodes returns the registered opcodes in sorted order.
func (r *Runtime) Opcodes() []string {
	out := make([]string, 0, len(r.opcodes))
	for op := range r.opcodes {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// GetOpcodeFunction returns the implementation of opcode.
func (r *Runtime) GetOpcodeFunction(opcode string) (BlockFunc, bool) {
	fn, ok := r.opcodes[opcode]
	return fn, ok && fn != nil
}

// GetIsHat reports whether opcode starts scripts.
func (r *Runtime) GetIsHat(opcode string) bool {
	_, ok := r.hats[opcode]
	return ok
}

// GetIsEdgeActivatedHat reports whether opcode fires on a false→true edge.
func (r *Runtime) GetIsEdgeActivatedHat(opcode string) bool {
	return r.hats[opcode].EdgeActivated
}

// EdgeActivatedHats lists edge-activated hat opcodes in sorted order.
func (r *Runtime) EdgeActivatedHats() []string {
	var out []string
	for op, info := range r.hats {
		if info.EdgeActivated {
			out = append(out, op)
		}
	}
	sort.Strings(out)
	return out
}

// AddTarget adds t on top of the layer order.
func (r *Runtime) AddTarget(t *Target) {
	t.runtime = r
	if t.IsStage {
		r.targets = append([]*Target{t}, r.targets...)
	} else {
		r.targets = append(r.targets, t)
	}
	t.attachDrawable()
}

// Targets returns all targets, stage first.
func (r *Runtime) Targets() []*Target { return append([]*Target(nil), r.targets...) }

// ExecutableTargets returns the targets scripts may run on.
func (r *Runtime) ExecutableTargets() []*Target { return r.Targets() }

// Stage returns the stage target.
func (r *Runtime) Stage() *Target {
	for _, t := range r.targets {
		if t.IsStage {
			return t
		}
	}
	return nil
}

// TargetByID finds a live target.
func (r *Runtime) TargetByID(id string) *Target {
	for _, t := range r.targets {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// SpriteByName finds an original sprite by name.
func (r *Runtime) SpriteByName(name string) *Target {
	for _, t := range r.targets {
		if !t.IsStage && t.IsOriginal && t.Name == name {
			return t
		}
	}
	return nil
}

// OwnerOf returns the original target whose blocks live in c.
func (r *Runtime) OwnerOf(c *blocks.Container) *Target {
	for _, t := range r.targets {
		if t.IsOriginal && t.Blocks == c {
			return t
		}
	}
	return nil
}

func (r *Runtime) cloneAllowed() bool {
	n := 0
	for _, t := range r.targets {
		if !t.IsOriginal {
			n++
		}
	}
	return n < r.maxClones
}

// AddClone registers a clone made by Target.MakeClone.
func (r *Runtime) AddClone(c *Target) {
	c.IsOriginal = false
	r.AddTarget(c)
}

// DisposeTarget removes a clone and stops its threads.
func (r *Runtime) DisposeTarget(t *Target) {
	if t == nil || t.IsOriginal {
		return
	}
	r.StopForTarget(t, nil)
	for i, other := range r.targets {
		if other == t {
			r.targets = append(r.targets[:i], r.targets[i+1:]...)
			break
		}
	}
	if r.Renderer != nil && t.DrawableID != 0 {
		r.Renderer.DestroyDrawable(t.DrawableID)
	}
	t.DrawableID = 0
}

// PostKey updates the keyboard and starts key hats on a press.
func (r *Runtime) PostKey(key string, down bool) {
	r.IO.Keyboard.SetPressed(key, down)
	if !down {
		return
	}
	r.StartHats("event_whenkeypressed", map[string]string{"KEY_OPTION": key}, nil)
	r.StartHats("event_whenkeypressed", map[string]string{"KEY_OPTION": "any"}, nil)
}

// PostMouse moves the pointer. A press starts the click hats of the topmost
// sprite under the pointer, or of the stage.
func (r *Runtime) PostMouse(x, y float64, down bool) {
	wasDown := r.IO.Mouse.Down
	r.IO.Mouse = Mouse{X: x, Y: y, Down: down}
	if !down || wasDown {
		return
	}
	if t := r.TargetAt(x, y); t != nil {
		r.StartHats("event_whenthisspriteclicked", nil, t)
		return
	}
	if stage := r.Stage(); stage != nil {
		r.StartHats("event_whenstageclicked", nil, stage)
	}
}

// TargetAt returns the topmost visible sprite with an opaque pixel at (x, y).
func (r *Runtime) TargetAt(x, y float64) *Target {
	if r.Renderer == nil {
		return nil
	}
	for i := len(r.targets) - 1; i >= 0; i-- {
		t := r.targets[i]
		if t.IsStage || !t.Visible || t.DrawableID == 0 {
			continue
		}
		if r.Renderer.PointInDrawable(t.DrawableID, x, y) {
			return t
		}
	}
	return nil
}

// Threads returns the live threads in execution order.
func (r *Runtime) Threads() []*Thread { return r.threads }

// SetThreads replaces the thread list (used by the sequencer to drop
// finished threads).
func (r *Runtime) SetThreads(threads []*Thread) { r.threads = threads }

// PushThread starts a new thread at topBlock.
func (r *Runtime) PushThread(topBlock string, target *Target) *Thread {
	r.nextThreadID++
	t := NewThread(r.nextThreadID, topBlock, target)
	t.PushStack(topBlock)
	r.threads = append(r.threads, t)
	trace.Point(r.Events, trace.ScopeThread, "thread:start", topBlock)
	return t
}

func (r *Runtime) restartThread(old *Thread) *Thread {
	r.nextThreadID++
	t := NewThread(r.nextThreadID, old.TopBlock, old.Target)
	t.PushStack(old.TopBlock)
	old.Retire()
	for i, other := range r.threads {
		if other == old {
			r.threads[i] = t
			return t
		}
	}
	r.threads = append(r.threads, t)
	return t
}

// StartHats starts every script whose hat is opcode and whose fields match
// matchFields (case-insensitive). With target set, only its scripts start.
func (r *Runtime) StartHats(opcode string, matchFields map[string]string, target *Target) []*Thread {
	info, ok := r.hats[opcode]
	if !ok {
		return nil
	}
	targets := r.targets
	if target != nil {
		targets = []*Target{target}
	}
	var started []*Thread
	// topmost sprite first
	for i := len(targets) - 1; i >= 0; i-- {
		t := targets[i]
		for _, top := range t.Blocks.Scripts() {
			hat := t.Blocks.GetBlock(top)
			if hat == nil || hat.Opcode != opcode || !fieldsMatch(hat, matchFields) {
				continue
			}
			if th := r.hatThread(info, t, top); th != nil {
				started = append(started, th)
			}
		}
	}
	return started
}

func (r *Runtime) hatThread(info HatInfo, t *Target, top string) *Thread {
	for _, existing := range r.threads {
		if existing.Target != t || existing.TopBlock != top || existing.StackClick {
			continue
		}
		if info.RestartExistingThreads {
			return r.restartThread(existing)
		}
		if existing.Status != StatusDone {
			return nil
		}
	}
	return r.PushThread(top, t)
}

func fieldsMatch(hat *blocks.Block, match map[string]string) bool {
	for name, want := range match {
		f, ok := hat.Fields[name]
		if !ok || !strings.EqualFold(cast.ToString(f.Value), want) {
			return false
		}
	}
	return true
}

// GreenFlag stops everything and starts the flag scripts.
func (r *Runtime) GreenFlag() []*Thread {
	r.StopAll()
	r.ResetTimer()
	for _, t := range r.targets {
		t.ClearEdgeActivatedValues()
	}
	return r.StartHats("event_whenflagclicked", nil, nil)
}

// StopAll retires every thread and disposes all clones.
func (r *Runtime) StopAll() {
	for _, t := range r.threads {
		t.Retire()
	}
	r.threads = nil
	var keep []*Target
	for _, t := range r.targets {
		if t.IsOriginal {
			keep = append(keep, t)
			continue
		}
		if r.Renderer != nil && t.DrawableID != 0 {
			r.Renderer.DestroyDrawable(t.DrawableID)
		}
	}
	r.targets = keep
}

// StopForTarget retires the threads of target except keep.
func (r *Runtime) StopForTarget(target *Target, keep *Thread) {
	for _, t := range r.threads {
		if t.Target == target && t != keep {
			t.Retire()
		}
	}
}

// IsActiveThread reports whether t is still scheduled.
func (r *Runtime) IsActiveThread(t *Thread) bool {
	for _, other := range r.threads {
		if other == t {
			return t.Status != StatusDone
		}
	}
	return false
}

// SetMonitorTarget records which target a monitored block reads from.
func (r *Runtime) SetMonitorTarget(blockID, targetID string) { r.monitorTargets[blockID] = targetID }

// MonitorTarget returns the target ID a monitored block reads from.
func (r *Runtime) MonitorTarget(blockID string) string { return r.monitorTargets[blockID] }

// RequestUpdateMonitor queues a monitor value.
func (r *Runtime) RequestUpdateMonitor(u MonitorUpdate) {
	r.monitorUpdates = append(r.monitorUpdates, u)
}

// DrainMonitorUpdates returns and clears queued monitor values.
func (r *Runtime) DrainMonitorUpdates() []MonitorUpdate {
	out := r.monitorUpdates
	r.monitorUpdates = nil
	return out
}

// VisualReport records the value of a clicked reporter.
func (r *Runtime) VisualReport(blockID string, v any) {
	r.visualReports = append(r.visualReports, VisualReport{BlockID: blockID, Value: v})
}

// DrainVisualReports returns and clears recorded visual reports.
func (r *Runtime) DrainVisualReports() []VisualReport {
	out := r.visualReports
	r.visualReports = nil
	return out
}

// RequestRedraw marks the frame dirty.
func (r *Runtime) RequestRedraw() { r.redraw = true }

// TakeRedraw reports and clears the redraw flag.
func (r *Runtime) TakeRedraw() bool {
	v := r.redraw
	r.redraw = false
	return v
}

// ResetTimer restarts the project timer.
func (r *Runtime) ResetTimer() { r.timerStartMs = r.Clock.NowMs() }

// TimerSeconds returns seconds since the project timer was reset.
func (r *Runtime) TimerSeconds() float64 {
	return float64(r.Clock.NowMs()-r.timerStartMs) / 1000
}

// Warn reports a runtime warning through the event tracer.
func (r *Runtime) Warn(name, detail string, extra map[string]string) {
	trace.Warn(r.Events, name, detail, extra)
}

// Sensing returns the runtime's shared sensing helper.
func (r *Runtime) Sensing() *Sensing { return r.exec.sensingFor(r) }
