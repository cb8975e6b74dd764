// Package project reads the JSON description of a block program and turns
// it into runtime targets.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNoTargets is returned for a project without any target.
	ErrNoTargets = errors.New("project has no targets")
	// ErrInvalid wraps every validation problem.
	ErrInvalid = errors.New("invalid project")
)

// Default stage size in pixels.
const (
	DefaultStageWidth  = 480
	DefaultStageHeight = 360
)

// Project is a decoded project file. It is never mutated by Instantiate, so
// one Project can seed any number of runtimes.
type Project struct {
	Stage    StageSize `json:"stage"`
	Targets  []Target  `json:"targets"`
	Monitors []Monitor `json:"monitors,omitempty"`

	// Hash is the digest of the bytes the project was decoded from.
	Hash Digest `json:"-"`
	// Path is set by Load.
	Path string `json:"-"`
}

// StageSize is the stage in pixels.
type StageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Target is the stage or a sprite.
type Target struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	IsStage        bool                `json:"isStage,omitempty"`
	X              float64             `json:"x,omitempty"`
	Y              float64             `json:"y,omitempty"`
	Direction      *float64            `json:"direction,omitempty"`
	Size           *float64            `json:"size,omitempty"`
	Visible        *bool               `json:"visible,omitempty"`
	LayerOrder     int                 `json:"layerOrder,omitempty"`
	CurrentCostume int                 `json:"currentCostume,omitempty"`
	Costumes       []Costume           `json:"costumes,omitempty"`
	Sounds         []Sound             `json:"sounds,omitempty"`
	Variables      map[string]Variable `json:"variables,omitempty"`
	Lists          map[string]List     `json:"lists,omitempty"`
	Broadcasts     map[string]string   `json:"broadcasts,omitempty"`
	Blocks         map[string]Block    `json:"blocks,omitempty"`
}

// Costume is drawn as a filled rectangle of Color ("#rrggbb").
type Costume struct {
	Name    string   `json:"name"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	CenterX *float64 `json:"centerX,omitempty"`
	CenterY *float64 `json:"centerY,omitempty"`
	Color   string   `json:"color"`
}

// Sound only carries the length "play until done" waits for.
type Sound struct {
	Name       string  `json:"name"`
	DurationMs float64 `json:"durationMs"`
}

// Variable is a scalar variable.
type Variable struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// List is a list variable.
type List struct {
	Name  string `json:"name"`
	Value []any  `json:"value"`
}

// Block is one block of a target's script graph.
type Block struct {
	Opcode   string           `json:"opcode"`
	Next     string           `json:"next,omitempty"`
	Parent   string           `json:"parent,omitempty"`
	TopLevel bool             `json:"topLevel,omitempty"`
	Shadow   bool             `json:"shadow,omitempty"`
	Fields   map[string]Field `json:"fields,omitempty"`
	Inputs   map[string]Input `json:"inputs,omitempty"`
	Mutation *Mutation        `json:"mutation,omitempty"`
	X        float64          `json:"x,omitempty"`
	Y        float64          `json:"y,omitempty"`
}

// Field is a literal on a block; ID is set for variable and broadcast refs.
type Field struct {
	Value any    `json:"value"`
	ID    string `json:"id,omitempty"`
}

// Input plugs a child block into an argument slot.
type Input struct {
	Block  string `json:"block,omitempty"`
	Shadow string `json:"shadow,omitempty"`
}

// Mutation is the prototype data of procedure blocks.
type Mutation struct {
	ProcCode         string   `json:"proccode"`
	ArgumentIDs      []string `json:"argumentids,omitempty"`
	ArgumentNames    []string `json:"argumentnames,omitempty"`
	ArgumentDefaults []any    `json:"argumentdefaults,omitempty"`
	Warp             bool     `json:"warp,omitempty"`
}

// Monitor watches a reporter; the runtime evaluates it every tick.
type Monitor struct {
	ID       string           `json:"id"`
	Opcode   string           `json:"opcode"`
	TargetID string           `json:"targetId,omitempty"`
	Fields   map[string]Field `json:"fields,omitempty"`
}

// Decode reads a project from r. The result is not validated.
func Decode(r io.Reader) (*Project, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	p.normalize()
	p.Hash = Sum(data)
	return &p, nil
}

// Load decodes and validates the project file at path.
func Load(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// normalize applies defaults and turns json.Number literals into float64, the
// only numeric type the runtime works with.
func (p *Project) normalize() {
	if p.Stage.Width == 0 {
		p.Stage.Width = DefaultStageWidth
	}
	if p.Stage.Height == 0 {
		p.Stage.Height = DefaultStageHeight
	}
	for i := range p.Targets {
		t := &p.Targets[i]
		for id, v := range t.Variables {
			v.Value = number(v.Value)
			t.Variables[id] = v
		}
		for id, l := range t.Lists {
			for j := range l.Value {
				l.Value[j] = number(l.Value[j])
			}
			t.Lists[id] = l
		}
		for id, b := range t.Blocks {
			for name, f := range b.Fields {
				f.Value = number(f.Value)
				b.Fields[name] = f
			}
			if b.Mutation != nil {
				for j := range b.Mutation.ArgumentDefaults {
					b.Mutation.ArgumentDefaults[j] = number(b.Mutation.ArgumentDefaults[j])
				}
			}
			t.Blocks[id] = b
		}
	}
	for i := range p.Monitors {
		for name, f := range p.Monitors[i].Fields {
			f.Value = number(f.Value)
			p.Monitors[i].Fields[name] = f
		}
	}
}

func number(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return f
}

// StageTarget returns the stage entry, or nil.
func (p *Project) StageTarget() *Target {
	for i := range p.Targets {
		if p.Targets[i].IsStage {
			return &p.Targets[i]
		}
	}
	return nil
}

// BlockCount sums the blocks of every target.
func (p *Project) BlockCount() int {
	n := 0
	for i := range p.Targets {
		n += len(p.Targets[i].Blocks)
	}
	return n
}
