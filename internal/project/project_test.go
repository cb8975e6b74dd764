package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blockvm/internal/asyncrt"
	"blockvm/internal/engine"
	"blockvm/internal/primitives"
	"blockvm/internal/sequencer"
)

const sample = `{
  "stage": {"width": 480, "height": 360},
  "targets": [
    {
      "id": "cat", "name": "Cat", "x": 10, "y": -20, "direction": 45, "layerOrder": 1,
      "costumes": [{"name": "red", "width": 40, "height": 20, "color": "#ff0000"}],
      "sounds": [{"name": "meow", "durationMs": 300}],
      "lists": {"l1": {"name": "items", "value": [1, "two"]}},
      "blocks": {
        "flag": {"opcode": "event_whenflagclicked", "next": "set", "topLevel": true},
        "set": {"opcode": "data_setvariableto", "parent": "flag",
                "fields": {"VARIABLE": {"value": "score", "id": "v1"}},
                "inputs": {"VALUE": {"block": "lit", "shadow": "lit"}}},
        "lit": {"opcode": "text", "parent": "set", "shadow": true, "fields": {"TEXT": {"value": 5}}}
      }
    },
    {
      "id": "stage", "name": "Stage", "isStage": true,
      "costumes": [{"name": "backdrop", "width": 480, "height": 360, "color": "#ffffff"}],
      "variables": {"v1": {"name": "score", "value": 0}},
      "broadcasts": {"m1": "go"}
    }
  ],
  "monitors": [
    {"id": "mon", "opcode": "data_variable", "targetId": "stage",
     "fields": {"VARIABLE": {"value": "score", "id": "v1"}}}
  ]
}`

func decodeSample(t *testing.T) *Project {
	t.Helper()
	p, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func TestDecodeNormalizesNumbers(t *testing.T) {
	p := decodeSample(t)

	cat := p.Targets[0]
	if v := cat.Blocks["lit"].Fields["TEXT"].Value; v != 5.0 {
		t.Fatalf("literal = %#v, want float64 5", v)
	}
	if v := cat.Lists["l1"].Value[0]; v != 1.0 {
		t.Fatalf("list item = %#v", v)
	}
	if p.Stage.Width != 480 || p.BlockCount() != 3 {
		t.Fatalf("stage %+v, blocks %d", p.Stage, p.BlockCount())
	}
	if p.Hash != Sum([]byte(sample)) {
		t.Fatal("hash does not match the input bytes")
	}
	if len(p.Hash.Short()) != 12 {
		t.Fatalf("short hash %q", p.Hash.Short())
	}
}

func TestDecodeDefaultsStageSize(t *testing.T) {
	p, err := Decode(strings.NewReader(`{"targets": [{"id": "s", "isStage": true}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Stage.Width != DefaultStageWidth || p.Stage.Height != DefaultStageHeight {
		t.Fatalf("stage = %+v", p.Stage)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"targets": [`)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(p *Project)
		want string
	}{
		{"ok", func(*Project) {}, ""},
		{"two stages", func(p *Project) { p.Targets[0].IsStage = true }, "exactly one stage"},
		{"duplicate name", func(p *Project) { p.Targets[0].Name = "Stage" }, `duplicate target name "Stage"`},
		{"dangling next", func(p *Project) {
			b := p.Targets[0].Blocks["flag"]
			b.Next = "gone"
			p.Targets[0].Blocks["flag"] = b
		}, `next "gone" does not exist`},
		{"bad color", func(p *Project) { p.Targets[0].Costumes[0].Color = "red" }, "want #rrggbb"},
		{"costume index", func(p *Project) { p.Targets[0].CurrentCostume = 3 }, "out of range"},
		{"monitor target", func(p *Project) { p.Monitors[0].TargetID = "dog" }, "unknown target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := decodeSample(t)
			tt.edit(p)
			err := p.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestValidateNoTargets(t *testing.T) {
	p, err := Decode(strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("err = %v, want ErrNoTargets", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.json")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Path != path {
		t.Fatalf("path = %q", p.Path)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"targets": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("err = %v, want ErrNoTargets", err)
	}
}

func newRuntime() (*engine.Runtime, *asyncrt.VirtualClock) {
	clock := asyncrt.NewVirtualClock(0)
	rt := engine.NewRuntime(engine.Options{Clock: clock, Async: asyncrt.Config{Deterministic: true}, Seed: 1})
	primitives.Register(rt)
	return rt, clock
}

func TestInstantiateBuildsTargets(t *testing.T) {
	p := decodeSample(t)
	rt, _ := newRuntime()
	targets := p.Instantiate(rt, p.NewRenderer())

	if len(targets) != 2 || !targets[0].IsStage || targets[1].Name != "Cat" {
		t.Fatalf("targets = %v", targets)
	}
	cat := rt.SpriteByName("Cat")
	if cat == nil || cat.X != 10 || cat.Y != -20 || cat.Direction != 45 {
		t.Fatalf("cat = %+v", cat)
	}
	if cat.DrawableID == 0 {
		t.Fatal("cat has no drawable")
	}
	b := rt.Renderer.DrawableBounds(cat.DrawableID)
	if b.Width() != 40 || b.Height() != 20 || b.Left != -10 {
		t.Fatalf("bounds = %+v", b)
	}
	if len(cat.Sounds) != 1 || cat.Sounds[0].DurationMs != 300 {
		t.Fatalf("sounds = %+v", cat.Sounds)
	}
	items := cat.Variables["l1"]
	if items == nil || items.Type != engine.VarList || len(items.Value.([]any)) != 2 {
		t.Fatalf("list = %+v", items)
	}
	stage := rt.Stage()
	if v := stage.Variables["m1"]; v == nil || v.Type != engine.VarBroadcast || v.Name != "go" {
		t.Fatalf("broadcast = %+v", v)
	}
	if got := rt.MonitorBlocks.Scripts(); len(got) != 1 || got[0] != "mon" {
		t.Fatalf("monitor scripts = %v", got)
	}
}

func TestInstantiateLeavesProjectReusable(t *testing.T) {
	p := decodeSample(t)
	for range 2 {
		rt, clock := newRuntime()
		p.Instantiate(rt, p.NewRenderer())
		seq := sequencer.New(rt, sequencer.Options{})
		seq.GreenFlag()
		var last any
		for range 3 {
			seq.Tick()
			clock.Advance(33)
			for _, u := range rt.DrainMonitorUpdates() {
				if u.ID == "mon" {
					last = u.Value
				}
			}
		}
		if got := rt.Stage().Variables["v1"].Value; got != 5.0 {
			t.Fatalf("score = %#v, want 5", got)
		}
		if last != 5.0 {
			t.Fatalf("monitor = %#v, want 5", last)
		}
	}
	if v := p.Targets[1].Variables["v1"].Value; v != 0.0 {
		t.Fatalf("project variable changed to %#v", v)
	}
}

func TestCombineDependsOnOrder(t *testing.T) {
	a, b, c := Sum([]byte("a")), Sum([]byte("b")), Sum([]byte("c"))
	if Combine(a, b, c) == Combine(a, c, b) {
		t.Fatal("combine ignored dep order")
	}
	if Combine(a) == a || Combine(a).IsZero() {
		t.Fatal("combine returned its input")
	}
}
