package path

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/spatialmath"
)

const (
	// targetIncrement is the coarse step in u between samples.
	targetIncrement = 0.05
	// targetSpacing is the desired distance in meters between consecutive points.
	targetSpacing = 0.2
	// spacingTolerance is the relative deviation from targetSpacing that triggers a correction.
	spacingTolerance = 0.25
	// degenerateDistance is the distance below which two samples are treated as the same point.
	degenerateDistance = 0.01
	// targetSnapTolerance is how close in u a rotation target must be to a point to be attached
	// to it rather than getting a point of its own.
	targetSnapTolerance = 1e-3

	tightRadius = 0.25
	looseRadius = 0.5

	maxTerminalSteps = 10000
	maxBisections    = 50
)

type builder struct {
	path        *Path
	bezier      []r2.Point
	numSegments int

	points     []Point
	lastU      float64
	nextTarget int
}

func newBuilder(p *Path) *builder {
	return &builder{
		path:        p,
		bezier:      BezierPoints(p.waypoints),
		numSegments: len(p.waypoints) - 1,
	}
}

// sample evaluates the Bézier chain at waypoint-relative position u.
func (b *builder) sample(u float64) r2.Point {
	seg := int(math.Floor(u))
	if seg >= b.numSegments {
		seg = b.numSegments - 1
	}
	if seg < 0 {
		seg = 0
	}
	t := u - float64(seg)
	i := seg * 3
	return spatialmath.CubicLerp(b.bezier[i], b.bezier[i+1], b.bezier[i+2], b.bezier[i+3], t)
}

func (b *builder) last() *Point {
	return &b.points[len(b.points)-1]
}

func (b *builder) append(u float64, pos r2.Point) {
	b.points = append(b.points, Point{Position: pos, WaypointRelativePos: u})
	b.lastU = u
}

// emit appends a point at u. Rotation targets passed on the way are attached to the nearest point
// when within targetSnapTolerance, otherwise they get an exact point of their own.
func (b *builder) emit(u float64, pos r2.Point) {
	targets := b.path.rotationTargets
	for b.nextTarget < len(targets) && targets[b.nextTarget].Position < u-targetSnapTolerance {
		target := targets[b.nextTarget]
		if target.Position-b.lastU <= targetSnapTolerance {
			b.last().RotationTarget = &target
		} else {
			b.append(target.Position, b.sample(target.Position))
			b.last().RotationTarget = &target
		}
		b.nextTarget++
	}
	b.append(u, pos)
	b.attachTargetsAtLast()
}

func (b *builder) attachTargetsAtLast() {
	targets := b.path.rotationTargets
	for b.nextTarget < len(targets) && targets[b.nextTarget].Position <= b.lastU+targetSnapTolerance {
		target := targets[b.nextTarget]
		b.last().RotationTarget = &target
		b.nextTarget++
	}
}

// correctedStep picks the u after lastU whose sample lies about targetSpacing from the last
// point, given the sample at u was d away. When the linear guess overshoots, the step is bisected
// until the gap is back within tolerance.
func (b *builder) correctedStep(u, d float64) float64 {
	lower := (1 - spacingTolerance) * targetSpacing
	upper := (1 + spacingTolerance) * targetSpacing
	from := b.last().Position

	next := math.Min(b.lastU+(u-b.lastU)*targetSpacing/d, float64(b.numSegments))
	d2 := spatialmath.Distance(from, b.sample(next))
	if d2 <= upper {
		return next
	}

	lo, hi := b.lastU, next
	if d < lower {
		lo = u
	}
	for range maxBisections {
		mid := (lo + hi) / 2
		dm := spatialmath.Distance(from, b.sample(mid))
		switch {
		case dm > upper:
			hi = mid
		case dm < lower:
			lo = mid
		default:
			return mid
		}
	}
	return lo
}

func (b *builder) samplePoints() {
	n := float64(b.numSegments)
	b.append(0, b.sample(0))
	b.attachTargetsAtLast()

	u := targetIncrement
	for u < n {
		pos := b.sample(u)
		d := spatialmath.Distance(b.last().Position, pos)
		if d <= degenerateDistance {
			u = math.Min(u+targetIncrement, n)
			continue
		}
		if math.Abs(d-targetSpacing) > spacingTolerance*targetSpacing {
			u = b.correctedStep(u, d)
			if u >= n {
				break
			}
			pos = b.sample(u)
		}
		b.emit(u, pos)
		u = math.Min(u+targetIncrement, n)
	}

	// Close the gap to the final anchor with the same spacing discipline.
	end := b.sample(n)
	for range maxTerminalSteps {
		d := spatialmath.Distance(b.last().Position, end)
		if d <= (1+spacingTolerance)*targetSpacing {
			break
		}
		next := b.correctedStep(n, d)
		if next >= n {
			break
		}
		pos := b.sample(next)
		if spatialmath.Distance(b.last().Position, pos) <= degenerateDistance {
			break
		}
		b.emit(next, pos)
	}

	if len(b.points) > 1 && spatialmath.Distance(b.last().Position, end) <= degenerateDistance {
		last := b.last()
		last.Position = end
		last.WaypointRelativePos = n
		b.lastU = n
		b.attachTargetsAtLast()
	} else {
		b.emit(n, end)
	}
}

// tighten densifies the path around sharp corners. Each gap is split into the largest number of
// parts requested by the points on either side of it.
func (b *builder) tighten() {
	if len(b.points) < 3 {
		return
	}
	parts := make([]int, len(b.points)-1)
	for i := range parts {
		parts[i] = 1
	}
	for i := 1; i < len(b.points)-1; i++ {
		radius := math.Abs(spatialmath.CalculateRadius(b.points[i-1].Position, b.points[i].Position, b.points[i+1].Position))
		want := 1
		switch {
		case radius < tightRadius:
			want = 3
		case radius < looseRadius:
			want = 2
		}
		parts[i-1] = max(parts[i-1], want)
		parts[i] = max(parts[i], want)
	}

	tightened := make([]Point, 0, len(b.points)*2)
	for i, pt := range b.points {
		tightened = append(tightened, pt)
		if i == len(b.points)-1 {
			break
		}
		u0, u1 := pt.WaypointRelativePos, b.points[i+1].WaypointRelativePos
		for k := 1; k < parts[i]; k++ {
			u := u0 + (u1-u0)*float64(k)/float64(parts[i])
			tightened = append(tightened, Point{Position: b.sample(u), WaypointRelativePos: u})
		}
	}
	b.points = tightened
}

func (b *builder) radiusAt(i int) float64 {
	n := len(b.points)
	switch {
	case n < 3:
		return math.Inf(1)
	case i == 0:
		return spatialmath.CalculateRadius(b.points[0].Position, b.points[1].Position, b.points[2].Position)
	case i == n-1:
		return spatialmath.CalculateRadius(b.points[n-3].Position, b.points[n-2].Position, b.points[n-1].Position)
	default:
		return spatialmath.CalculateRadius(b.points[i-1].Position, b.points[i].Position, b.points[i+1].Position)
	}
}

// precalculate assigns constraints, point towards rotations, speed caps and distances.
func (b *builder) precalculate() {
	for i := range b.points {
		pt := &b.points[i]
		u := pt.WaypointRelativePos
		pt.Constraints = b.path.ConstraintsForPosition(u)

		if zone, ok := b.path.PointTowardsZoneForPosition(u); ok {
			pt.RotationTarget = &RotationTarget{Position: u, Rotation: zone.RotationFrom(pt.Position)}
		}

		pt.MaxV = pt.Constraints.MaxVelocity
		if radius := b.radiusAt(i); !math.IsInf(radius, 0) {
			pt.MaxV = math.Min(math.Sqrt(pt.Constraints.MaxAcceleration*math.Abs(radius)), pt.Constraints.MaxVelocity)
		}

		if i > 0 {
			prev := b.points[i-1]
			pt.Distance = prev.Distance + spatialmath.Distance(prev.Position, pt.Position)
		}
	}

	last := b.last()
	last.RotationTarget = &RotationTarget{Position: float64(b.numSegments), Rotation: b.path.goalEndState.Rotation}
	last.MaxV = b.path.goalEndState.Velocity
}

func (b *builder) build() []Point {
	b.samplePoints()
	b.tighten()
	b.precalculate()
	return b.points
}
