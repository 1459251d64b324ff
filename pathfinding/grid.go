package pathfinding

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// GridPosition is a cell of the navigation grid.
type GridPosition struct {
	X, Y int
}

// BoundingBox is an axis aligned obstacle on the field.
type BoundingBox struct {
	Min r2.Point
	Max r2.Point
}

// NewBoundingBox returns the box spanned by two opposite corners.
func NewBoundingBox(a, b r2.Point) BoundingBox {
	return BoundingBox{
		Min: r2.Point{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: r2.Point{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// Contains reports whether p lies in the box, edges included.
func (b BoundingBox) Contains(p r2.Point) bool {
	return b.Min.X <= p.X && p.X <= b.Max.X && b.Min.Y <= p.Y && p.Y <= b.Max.Y
}

// Validate checks that the box has finite, ordered corners.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("bounding box %v has a non-finite corner", b)
		}
	}
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y {
		return errors.Errorf("bounding box min %v is not below max %v", b.Min, b.Max)
	}
	return nil
}

func validateBoxes(boxes []BoundingBox) error {
	var errs error
	for i, b := range boxes {
		if err := b.Validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "obstacle %d", i))
		}
	}
	return errs
}

// cellGrid is the geometry of the navigation grid. Cells are indexed y*nodesX + x.
type cellGrid struct {
	nodeSize       float64
	nodesX, nodesY int
}

func (g cellGrid) size() int {
	return g.nodesX * g.nodesY
}

func (g cellGrid) index(p GridPosition) int {
	return p.Y*g.nodesX + p.X
}

func (g cellGrid) position(i int) GridPosition {
	return GridPosition{X: i % g.nodesX, Y: i / g.nodesX}
}

func (g cellGrid) inBounds(x, y int) bool {
	return x >= 0 && x < g.nodesX && y >= 0 && y < g.nodesY
}

// cellOf maps a field position to its cell, clamped into the grid.
func (g cellGrid) cellOf(p r2.Point) GridPosition {
	return GridPosition{
		X: min(max(int(math.Floor(p.X/g.nodeSize)), 0), g.nodesX-1),
		Y: min(max(int(math.Floor(p.Y/g.nodeSize)), 0), g.nodesY-1),
	}
}

// center is the field position of the middle of a cell.
func (g cellGrid) center(p GridPosition) r2.Point {
	return r2.Point{
		X: float64(p.X)*g.nodeSize + g.nodeSize/2,
		Y: float64(p.Y)*g.nodeSize + g.nodeSize/2,
	}
}

// neighbors returns the 8-connected neighbours of cell i that lie in the grid.
func (g cellGrid) neighbors(i int) []int {
	p := g.position(i)
	out := make([]int, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			x, y := p.X+dx, p.Y+dy
			if g.inBounds(x, y) {
				out = append(out, y*g.nodesX+x)
			}
		}
	}
	return out
}

// openNeighbors are the neighbours of cell i that are not obstacles.
func (g cellGrid) openNeighbors(i int, obstacles []bool) []int {
	all := g.neighbors(i)
	out := all[:0]
	for _, n := range all {
		if !obstacles[n] {
			out = append(out, n)
		}
	}
	return out
}

func (g cellGrid) heuristic(a, b int) float64 {
	pa, pb := g.position(a), g.position(b)
	return math.Hypot(float64(pb.X-pa.X), float64(pb.Y-pa.Y))
}

// collides reports whether the step between two adjacent cells is blocked. A diagonal step is
// blocked by either of the two cells it squeezes between.
func (g cellGrid) collides(a, b int, obstacles []bool) bool {
	if obstacles[a] || obstacles[b] {
		return true
	}
	pa, pb := g.position(a), g.position(b)
	if pa.X != pb.X && pa.Y != pb.Y {
		return obstacles[g.index(GridPosition{X: pa.X, Y: pb.Y})] ||
			obstacles[g.index(GridPosition{X: pb.X, Y: pa.Y})]
	}
	return false
}

func (g cellGrid) cost(a, b int, obstacles []bool) float64 {
	if g.collides(a, b, obstacles) {
		return math.Inf(1)
	}
	return g.heuristic(a, b)
}

// walkable traverses every cell the segment between the two cell centres passes through.
func (g cellGrid) walkable(a, b GridPosition, obstacles []bool) bool {
	dx, dy := abs(b.X-a.X), abs(b.Y-a.Y)
	x, y := a.X, a.Y
	n := 1 + dx + dy
	xInc, yInc := -1, -1
	if b.X > a.X {
		xInc = 1
	}
	if b.Y > a.Y {
		yInc = 1
	}
	e := dx - dy
	dx *= 2
	dy *= 2

	for ; n > 0; n-- {
		if obstacles[g.index(GridPosition{X: x, Y: y})] {
			return false
		}
		switch {
		case e > 0:
			x += xInc
			e -= dy
		case e < 0:
			y += yInc
			e += dx
		default:
			x += xInc
			y += yInc
			e += dx - dy
			n--
		}
	}
	return true
}

// closestFree returns the nearest cell to p, by breadth first search over all neighbours, that
// is not an obstacle.
func (g cellGrid) closestFree(p GridPosition, obstacles []bool) (GridPosition, bool) {
	start := g.index(p)
	if !obstacles[start] {
		return p, true
	}
	visited := make([]bool, g.size())
	visited[start] = true
	queue := []int{start}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if !obstacles[c] {
			return g.position(c), true
		}
		for _, n := range g.neighbors(c) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return GridPosition{}, false
}

// rasterize marks every cell touched by the boxes.
func (g cellGrid) rasterize(boxes []BoundingBox) []bool {
	cells := make([]bool, g.size())
	for _, b := range boxes {
		lo, hi := g.cellOf(b.Min), g.cellOf(b.Max)
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				cells[g.index(GridPosition{X: x, Y: y})] = true
			}
		}
	}
	return cells
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
