package engine

import (
	"math"

	"blockvm/internal/cast"
	"blockvm/internal/render"
)

// maxColorSamples bounds the grid search to about one sample per 10×10 pixel
// cell of a 480×360 stage.
const maxColorSamples = 48 * 36

type point struct{ x, y int }

// pointQueueSet is an insertion-ordered set of grid points. Iterating its
// queue while pushing yields a breadth-first walk.
type pointQueueSet struct {
	seen  map[point]struct{}
	queue []point
}

func newPointQueueSet() *pointQueueSet {
	return &pointQueueSet{seen: make(map[point]struct{})}
}

func (s *pointQueueSet) push(pts ...point) {
	for _, p := range pts {
		if _, ok := s.seen[p]; ok {
			continue
		}
		s.seen[p] = struct{}{}
		s.queue = append(s.queue, p)
	}
}

func (s *pointQueueSet) has(p point) bool {
	_, ok := s.seen[p]
	return ok
}

// walkGrid visits grid points spaced space apart inside bounds, starting at
// the truncated start point and moving outwards ring by ring. Each point is
// visited once. visit returns false to stop.
func walkGrid(startX, startY float64, bounds render.Rect, space int, visit func(x, y int) bool) {
	inX := func(x int) bool { return bounds.Left <= float64(x) && float64(x) <= bounds.Right }
	inY := func(y int) bool { return bounds.Bottom <= float64(y) && float64(y) <= bounds.Top }

	visited := newPointQueueSet()
	pending := newPointQueueSet()
	start := point{int(math.Trunc(startX)), int(math.Trunc(startY))}
	pending.push(start)
	visited.push(start)

	for i := 0; i < len(pending.queue); i++ {
		next := pending.queue[i]
		for _, nx := range [3]int{next.x - space, next.x, next.x + space} {
			if !inX(nx) {
				continue
			}
			for _, ny := range [3]int{next.y - space, next.y, next.y + space} {
				if !inY(ny) {
					continue
				}
				p := point{nx, ny}
				if !visited.has(p) {
					visited.push(p)
					pending.push(p)
				}
			}
		}
		if !visit(next.x, next.y) {
			return
		}
	}
}

type colorSearch struct {
	distance Distance
	found    bool
	x, y     float64
}

// fuzzyFindColor looks for want among touchables, nearest to (x, y) first.
// The distance of a hit is normalized by the diagonal of bounds; a miss
// reports [1, 0].
func fuzzyFindColor(r Renderer, touchables []int, want cast.RGB, x, y float64, bounds render.Rect) colorSearch {
	diameter := math.Hypot(bounds.Top-bounds.Bottom, bounds.Right-bounds.Left)
	width := math.Ceil(bounds.Right - bounds.Left)
	height := math.Ceil(bounds.Top - bounds.Bottom)
	space := int(math.Max(1, math.Trunc(math.Sqrt(width*height/maxColorSamples))))

	result := colorSearch{distance: distNotTaken}
	walkGrid(x, y, bounds, space, func(px, py int) bool {
		if !render.ColorMatches(want, r.SampleColor(float64(px), float64(py), touchables)) {
			return true
		}
		d := 0.0
		if diameter > 0 {
			d = math.Hypot(x-float64(px), y-float64(py)) / diameter
		}
		result = colorSearch{distance: Distance{True: d, False: 0}, found: true, x: float64(px), y: float64(py)}
		return false
	})
	return result
}
