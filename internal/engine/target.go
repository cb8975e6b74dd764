package engine

import (
	"math"
	"strconv"

	"blockvm/internal/blocks"
	"blockvm/internal/cast"
	"blockvm/internal/render"
)

// VariableType distinguishes scalars, lists and broadcast messages.
type VariableType string

const (
	VarScalar    VariableType = ""
	VarList      VariableType = "list"
	VarBroadcast VariableType = "broadcast_msg"
)

// Variable is a named value owned by a target.
type Variable struct {
	ID    string
	Name  string
	Type  VariableType
	Value any
}

// Costume is a solid-colored rectangle costume.
type Costume struct {
	Name             string
	Width, Height    int
	CenterX, CenterY float64
	Color            cast.RGB
}

// Sound is a sound resource; only its duration matters here.
type Sound struct {
	Name       string
	DurationMs float64
}

// Bubble is the speech or thought bubble shown over a sprite.
type Bubble struct {
	Kind string
	Text string
}

// Target is the stage or a sprite (original or clone).
type Target struct {
	ID         string
	Name       string
	IsStage    bool
	IsOriginal bool
	Blocks     *blocks.Container

	X, Y           float64
	Direction      float64
	Size           float64
	Visible        bool
	CurrentCostume int
	Costumes       []Costume
	Sounds         []Sound
	Variables      map[string]*Variable
	Bubble         Bubble
	DrawableID     int

	runtime       *Runtime
	original      *Target
	edgeActivated map[string]bool
}

// NewTarget returns an original sprite (or the stage) with default state.
func NewTarget(id, name string, isStage bool, container *blocks.Container) *Target {
	if container == nil {
		container = blocks.NewContainer()
	}
	return &Target{
		ID:         id,
		Name:       name,
		IsStage:    isStage,
		IsOriginal: true,
		Blocks:     container,
		Direction:  90,
		Size:       100,
		Visible:    true,
		Variables:  make(map[string]*Variable),
	}
}

// Runtime returns the runtime the target was added to.
func (t *Target) Runtime() *Runtime { return t.runtime }

// Original returns the sprite a clone was made from, or t itself.
func (t *Target) Original() *Target {
	if t.original != nil {
		return t.original
	}
	return t
}

// HasEdgeActivatedValue reports whether a value was stored for hat id.
func (t *Target) HasEdgeActivatedValue(id string) bool {
	_, ok := t.edgeActivated[id]
	return ok
}

// UpdateEdgeActivatedValue stores v for hat id and returns the previous value.
func (t *Target) UpdateEdgeActivatedValue(id string, v bool) bool {
	if t.edgeActivated == nil {
		t.edgeActivated = make(map[string]bool)
	}
	old := t.edgeActivated[id]
	t.edgeActivated[id] = v
	return old
}

// ClearEdgeActivatedValues forgets all edge-triggered hat state.
func (t *Target) ClearEdgeActivatedValues() { t.edgeActivated = nil }

func (t *Target) renderer() Renderer {
	if t.runtime == nil || t.DrawableID == 0 {
		return nil
	}
	return t.runtime.Renderer
}

// SetXY moves the sprite.
func (t *Target) SetXY(x, y float64) {
	if t.IsStage {
		return
	}
	t.X, t.Y = x, y
	if r := t.renderer(); r != nil {
		r.SetPosition(t.DrawableID, x, y)
	}
}

// SetDirection points the sprite, wrapping into (-180, 180].
func (t *Target) SetDirection(dir float64) {
	if t.IsStage || math.IsInf(dir, 0) || math.IsNaN(dir) {
		return
	}
	dir = math.Mod(dir+180, 360)
	if dir < 0 {
		dir += 360
	}
	t.Direction = dir - 180
	if t.Direction == -180 {
		t.Direction = 180
	}
}

// SetSize scales the sprite (percent).
func (t *Target) SetSize(size float64) {
	if t.IsStage {
		return
	}
	t.Size = math.Max(5, math.Min(size, 500))
	t.updateSkin()
}

// SetVisible shows or hides the sprite.
func (t *Target) SetVisible(v bool) {
	if t.IsStage {
		return
	}
	t.Visible = v
	if r := t.renderer(); r != nil {
		r.SetVisible(t.DrawableID, v)
	}
}

// SetCostume switches costume, wrapping the index.
func (t *Target) SetCostume(idx int) {
	n := len(t.Costumes)
	if n == 0 {
		return
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	t.CurrentCostume = idx
	t.updateSkin()
}

// CostumeIndexByName returns the index of a costume name, or -1.
func (t *Target) CostumeIndexByName(name string) int {
	for i, c := range t.Costumes {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SetBubble shows text in a bubble ("say" or "think"); empty text hides it.
func (t *Target) SetBubble(kind, text string) {
	t.Bubble = Bubble{Kind: kind, Text: text}
}

func (t *Target) updateSkin() {
	r := t.renderer()
	if r == nil || len(t.Costumes) == 0 {
		return
	}
	c := t.Costumes[t.CurrentCostume]
	scale := t.Size / 100
	w := int(math.Max(1, math.Round(float64(c.Width)*scale)))
	h := int(math.Max(1, math.Round(float64(c.Height)*scale)))
	r.SetSkin(t.DrawableID, render.SolidSkin(w, h, c.Color), c.CenterX*scale, c.CenterY*scale)
}

// Bounds returns the stage-space box of the sprite's costume.
func (t *Target) Bounds() render.Rect {
	if r := t.renderer(); r != nil {
		return r.DrawableBounds(t.DrawableID)
	}
	return render.Rect{Left: t.X, Right: t.X, Top: t.Y, Bottom: t.Y}
}

// attachDrawable creates the target's drawable and pushes its state.
func (t *Target) attachDrawable() {
	if t.runtime == nil || t.runtime.Renderer == nil || t.DrawableID != 0 {
		return
	}
	r := t.runtime.Renderer
	t.DrawableID = r.CreateDrawable()
	r.SetPosition(t.DrawableID, t.X, t.Y)
	r.SetVisible(t.DrawableID, t.Visible)
	t.updateSkin()
}

// LookupVariable finds a variable by ID, then by name and type, on the target
// and then on the stage.
func (t *Target) LookupVariable(id, name string, typ VariableType) *Variable {
	if v := t.Variables[id]; v != nil {
		return v
	}
	for _, v := range t.Variables {
		if v.Name == name && v.Type == typ {
			return v
		}
	}
	if t.IsStage || t.runtime == nil {
		return nil
	}
	if stage := t.runtime.Stage(); stage != nil {
		return stage.LookupVariable(id, name, typ)
	}
	return nil
}

// LookupOrCreateVariable returns the referenced variable, creating a local one
// if it does not exist.
func (t *Target) LookupOrCreateVariable(ref VarRef, typ VariableType) *Variable {
	if v := t.LookupVariable(ref.ID, ref.Name, typ); v != nil {
		return v
	}
	id := ref.ID
	if id == "" {
		id = t.ID + ":" + ref.Name
	}
	v := &Variable{ID: id, Name: ref.Name, Type: typ}
	switch typ {
	case VarList:
		v.Value = []any{}
	case VarBroadcast:
		v.Value = ref.Name
	default:
		v.Value = 0.0
	}
	t.Variables[id] = v
	return v
}

// LookupBroadcastMsg resolves a broadcast by ID, falling back to its name.
func (t *Target) LookupBroadcastMsg(ref VarRef) *Variable {
	if t.runtime == nil {
		return nil
	}
	stage := t.runtime.Stage()
	if stage == nil {
		return nil
	}
	if v := stage.Variables[ref.ID]; v != nil && v.Type == VarBroadcast {
		return v
	}
	for _, v := range stage.Variables {
		if v.Type == VarBroadcast && cast.Compare(v.Name, ref.Name) == 0 {
			return v
		}
	}
	return nil
}

// MakeClone copies the sprite. Clones share the original's blocks and copy
// its local variables.
func (t *Target) MakeClone() *Target {
	if t.IsStage || t.runtime == nil || !t.runtime.cloneAllowed() {
		return nil
	}
	orig := t.Original()
	t.runtime.cloneSeq++
	c := &Target{
		ID:             orig.ID + "#" + strconv.Itoa(t.runtime.cloneSeq),
		Name:           orig.Name,
		Blocks:         orig.Blocks,
		X:              t.X,
		Y:              t.Y,
		Direction:      t.Direction,
		Size:           t.Size,
		Visible:        t.Visible,
		CurrentCostume: t.CurrentCostume,
		Costumes:       t.Costumes,
		Sounds:         t.Sounds,
		Variables:      make(map[string]*Variable, len(t.Variables)),
		original:       orig,
	}
	for id, v := range t.Variables {
		cp := *v
		if list, ok := v.Value.([]any); ok {
			cp.Value = append([]any(nil), list...)
		}
		c.Variables[id] = &cp
	}
	return c
}
