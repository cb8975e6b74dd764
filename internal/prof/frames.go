package prof

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Frame accumulates the executions attributed to one (name, arg) pair.
type Frame struct {
	ID    int
	Name  string
	Arg   string
	Count int
	Total time.Duration
}

type frameKey struct {
	id  int
	arg string
}

// Profiler is a registry of named frames. It is not safe for concurrent use;
// each run owns its own profiler.
type Profiler struct {
	names  map[string]int
	byID   []string
	frames map[frameKey]*Frame
}

// NewProfiler returns an empty profiler.
func NewProfiler() *Profiler {
	return &Profiler{
		names:  make(map[string]int),
		frames: make(map[frameKey]*Frame),
	}
}

// IDByName returns the stable ID for name, registering it on first use.
func (p *Profiler) IDByName(name string) int {
	if id, ok := p.names[name]; ok {
		return id
	}
	id := len(p.byID)
	p.byID = append(p.byID, name)
	p.names[name] = id
	return id
}

// Frame returns the frame for (id, arg), creating it if needed.
func (p *Profiler) Frame(id int, arg string) *Frame {
	key := frameKey{id: id, arg: arg}
	if f, ok := p.frames[key]; ok {
		return f
	}
	name := ""
	if id >= 0 && id < len(p.byID) {
		name = p.byID[id]
	}
	f := &Frame{ID: id, Name: name, Arg: arg}
	p.frames[key] = f
	return f
}

// Frames returns a copy of every frame, most executed first.
func (p *Profiler) Frames() []Frame {
	out := make([]Frame, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Arg < out[j].Arg
	})
	return out
}

// Merge adds the counts of other into p.
func (p *Profiler) Merge(other *Profiler) {
	if other == nil {
		return
	}
	for _, f := range other.frames {
		dst := p.Frame(p.IDByName(f.Name), f.Arg)
		dst.Count += f.Count
		dst.Total += f.Total
	}
}

// Table renders the top n frames as aligned text.
func (p *Profiler) Table(n int) string {
	frames := p.Frames()
	if n > 0 && len(frames) > n {
		frames = frames[:n]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-34s %10s %12s\n", "opcode", "count", "time")
	for _, f := range frames {
		label := f.Arg
		if label == "" {
			label = f.Name
		}
		fmt.Fprintf(&sb, "%-34s %10d %12s\n", label, f.Count, f.Total.Round(time.Microsecond))
	}
	return sb.String()
}
