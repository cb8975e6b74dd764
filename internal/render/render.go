// Package render is a software rasterizer for the stage: it keeps drawables
// with RGBA costume skins in layer order and answers the color and collision
// queries sensing blocks ask.
package render

import (
	"image"
	"image/color"
	"math"
	"sort"

	"blockvm/internal/cast"

	"fortio.org/safecast"
)

// Rect is an axis-aligned box in stage coordinates (y grows upwards).
type Rect struct {
	Left, Right, Top, Bottom float64
}

// Width returns Right-Left.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns Top-Bottom.
func (r Rect) Height() float64 { return r.Top - r.Bottom }

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Bottom && y <= r.Top
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Bottom < o.Top && o.Bottom < r.Top
}

// Drawable is one rendered sprite or the stage backdrop.
type Drawable struct {
	ID      int
	X, Y    float64
	Visible bool
	Skin    *image.RGBA
	// rotation center inside the skin, in pixels
	CenterX, CenterY float64
}

// Renderer keeps drawables back to front.
type Renderer struct {
	bounds    Rect
	drawables map[int]*Drawable
	order     []int
	nextID    int
}

// White is the color sampled where no drawable covers a point.
var White = cast.RGB{255, 255, 255}

// New returns a renderer for a width×height stage centred on the origin.
func New(width, height int) *Renderer {
	w, h := float64(width)/2, float64(height)/2
	return &Renderer{
		bounds:    Rect{Left: -w, Right: w, Top: h, Bottom: -h},
		drawables: make(map[int]*Drawable),
		nextID:    1,
	}
}

// StageBounds returns the visible stage rectangle.
func (r *Renderer) StageBounds() Rect { return r.bounds }

// CreateDrawable adds an invisible, skinless drawable on top.
func (r *Renderer) CreateDrawable() int {
	id := r.nextID
	r.nextID++
	r.drawables[id] = &Drawable{ID: id}
	r.order = append(r.order, id)
	return id
}

// DestroyDrawable removes id.
func (r *Renderer) DestroyDrawable(id int) {
	delete(r.drawables, id)
	for i, d := range r.order {
		if d == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// SetSkin replaces the costume image of id.
func (r *Renderer) SetSkin(id int, img image.Image, centerX, centerY float64) {
	d := r.drawables[id]
	if d == nil {
		return
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			rgba.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	d.Skin = rgba
	d.CenterX, d.CenterY = centerX, centerY
}

// SetPosition moves id.
func (r *Renderer) SetPosition(id int, x, y float64) {
	if d := r.drawables[id]; d != nil {
		d.X, d.Y = x, y
	}
}

// SetVisible shows or hides id.
func (r *Renderer) SetVisible(id int, visible bool) {
	if d := r.drawables[id]; d != nil {
		d.Visible = visible
	}
}

// SetLayer moves id to position idx in the back-to-front order.
func (r *Renderer) SetLayer(id, idx int) {
	r.DestroyDrawableOrder(id)
	if idx < 0 {
		idx = 0
	}
	if idx > len(r.order) {
		idx = len(r.order)
	}
	r.order = append(r.order, 0)
	copy(r.order[idx+1:], r.order[idx:])
	r.order[idx] = id
}

// DestroyDrawableOrder removes id from the layer order only.
func (r *Renderer) DestroyDrawableOrder(id int) {
	for i, d := range r.order {
		if d == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// VisibleDrawList returns visible drawable IDs back to front.
func (r *Renderer) VisibleDrawList() []int {
	out := make([]int, 0, len(r.order))
	for _, id := range r.order {
		if d := r.drawables[id]; d != nil && d.Visible {
			out = append(out, id)
		}
	}
	return out
}

// DrawableBounds returns the stage-space box covered by id's skin.
func (r *Renderer) DrawableBounds(id int) Rect {
	d := r.drawables[id]
	if d == nil || d.Skin == nil {
		return Rect{}
	}
	left := d.X - d.CenterX
	top := d.Y + d.CenterY
	b := d.Skin.Bounds()
	return Rect{Left: left, Right: left + float64(b.Dx()), Top: top, Bottom: top - float64(b.Dy())}
}

// pixel returns the skin color of d at a stage point and whether it is opaque.
func (d *Drawable) pixel(x, y float64) (cast.RGB, bool) {
	if d == nil || d.Skin == nil {
		return cast.RGB{}, false
	}
	col, err := safecast.Convert[int](math.Floor(x - d.X + d.CenterX))
	if err != nil {
		return cast.RGB{}, false
	}
	row, err := safecast.Convert[int](math.Floor(d.Y - y + d.CenterY))
	if err != nil {
		return cast.RGB{}, false
	}
	if !image.Pt(col, row).In(d.Skin.Bounds()) {
		return cast.RGB{}, false
	}
	c := d.Skin.RGBAAt(col, row)
	if c.A == 0 {
		return cast.RGB{}, false
	}
	return cast.RGB{c.R, c.G, c.B}, true
}

// PointInDrawable reports whether id has an opaque pixel at (x, y).
func (r *Renderer) PointInDrawable(id int, x, y float64) bool {
	_, ok := r.drawables[id].pixel(x, y)
	return ok
}

// SampleColor returns the color of the first opaque drawable in ids (front to
// back) at (x, y), or White.
func (r *Renderer) SampleColor(x, y float64, ids []int) cast.RGB {
	for _, id := range ids {
		if c, ok := r.drawables[id].pixel(x, y); ok {
			return c
		}
	}
	return White
}

// ColorMatches compares colors with 5/5/4 bits of precision.
func ColorMatches(a, b cast.RGB) bool {
	return a[0]&0xF8 == b[0]&0xF8 && a[1]&0xF8 == b[1]&0xF8 && a[2]&0xF0 == b[2]&0xF0
}

// maskMatches is the tolerance used for a sprite's own mask color.
func maskMatches(a, b cast.RGB) bool {
	return a[0]&0xFC == b[0]&0xFC && a[1]&0xFC == b[1]&0xFC && a[2]&0xFC == b[2]&0xFC
}

// frontToBackExcept returns visible drawables, front first, without skip.
func (r *Renderer) frontToBackExcept(skip int) []int {
	list := r.VisibleDrawList()
	out := make([]int, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] != skip {
			out = append(out, list[i])
		}
	}
	return out
}

// IsTouchingColor reports whether any opaque pixel of id covers a point where
// the drawables around it show c.
func (r *Renderer) IsTouchingColor(id int, c cast.RGB) bool {
	return r.touchingColor(id, c, nil)
}

// IsTouchingColorMasked is IsTouchingColor restricted to pixels of id whose
// own color matches mask.
func (r *Renderer) IsTouchingColorMasked(id int, c, mask cast.RGB) bool {
	return r.touchingColor(id, c, &mask)
}

func (r *Renderer) touchingColor(id int, c cast.RGB, mask *cast.RGB) bool {
	d := r.drawables[id]
	if d == nil || d.Skin == nil {
		return false
	}
	others := r.frontToBackExcept(id)
	b := r.DrawableBounds(id)
	for y := b.Top - 0.5; y > b.Bottom; y-- {
		for x := b.Left + 0.5; x < b.Right; x++ {
			own, ok := d.pixel(x, y)
			if !ok {
				continue
			}
			if mask != nil && !maskMatches(own, *mask) {
				continue
			}
			if ColorMatches(r.SampleColor(x, y, others), c) {
				return true
			}
		}
	}
	return false
}

// IsTouchingDrawables reports whether id overlaps any of others with opaque
// pixels on both sides.
func (r *Renderer) IsTouchingDrawables(id int, others []int) bool {
	d := r.drawables[id]
	if d == nil || !d.Visible {
		return false
	}
	b := r.DrawableBounds(id)
	for _, oid := range others {
		o := r.drawables[oid]
		if o == nil || oid == id || !o.Visible {
			continue
		}
		ob := r.DrawableBounds(oid)
		if !b.Intersects(ob) {
			continue
		}
		inter := Rect{
			Left:   math.Max(b.Left, ob.Left),
			Right:  math.Min(b.Right, ob.Right),
			Top:    math.Min(b.Top, ob.Top),
			Bottom: math.Max(b.Bottom, ob.Bottom),
		}
		for y := inter.Top - 0.5; y > inter.Bottom; y-- {
			for x := inter.Left + 0.5; x < inter.Right; x++ {
				_, a := d.pixel(x, y)
				_, c := o.pixel(x, y)
				if a && c {
					return true
				}
			}
		}
	}
	return false
}

// DrawableAt returns the front-most visible drawable with an opaque pixel at
// (x, y), or 0.
func (r *Renderer) DrawableAt(x, y float64) int {
	for _, id := range r.frontToBackExcept(0) {
		if r.PointInDrawable(id, x, y) {
			return id
		}
	}
	return 0
}

// Drawables returns all drawable IDs in ascending order.
func (r *Renderer) Drawables() []int {
	ids := make([]int, 0, len(r.drawables))
	for id := range r.drawables {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SolidSkin returns a width×height image filled with c.
func SolidSkin(width, height int, c cast.RGB) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	return img
}
