package spatialmath

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// Distance returns the euclidean distance between two points.
func Distance(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// PolarPoint returns the point at the given distance along rot from the origin.
func PolarPoint(distance float64, rot Rotation) r2.Point {
	return r2.Point{X: distance * rot.Cos(), Y: distance * rot.Sin()}
}

// LerpPoint linearly interpolates between two points.
func LerpPoint(a, b r2.Point, t float64) r2.Point {
	return a.Add(b.Sub(a).Mul(t))
}

// QuadraticLerp is one de Casteljau step over three control points.
func QuadraticLerp(a, b, c r2.Point, t float64) r2.Point {
	return LerpPoint(LerpPoint(a, b, t), LerpPoint(b, c, t), t)
}

// CubicLerp samples the cubic Bézier curve (a, b, c, d) at t.
func CubicLerp(a, b, c, d r2.Point, t float64) r2.Point {
	return LerpPoint(QuadraticLerp(a, b, c, t), QuadraticLerp(b, c, d, t), t)
}

// CalculateRadius returns the signed radius of the circle through a, b and c. Collinear points
// give +Inf. The radius is positive when the points turn counter-clockwise.
func CalculateRadius(a, b, c r2.Point) float64 {
	vba := a.Sub(b)
	vbc := c.Sub(b)
	sign := -1.0
	if vba.Cross(vbc) < 0 {
		sign = 1.0
	}

	ab := Distance(a, b)
	bc := Distance(b, c)
	ac := Distance(a, c)

	area := triangleArea(ab, bc, ac)
	if area < 1e-12 {
		return math.Inf(1)
	}
	return sign * (ab * bc * ac) / (4 * area)
}

// triangleArea is Heron's formula in Kahan's arrangement, which stays accurate for needle-like
// triangles.
func triangleArea(x, y, z float64) float64 {
	sides := []float64{x, y, z}
	sort.Sort(sort.Reverse(sort.Float64Slice(sides)))
	a, b, c := sides[0], sides[1], sides[2]
	prod := (a + (b + c)) * (c - (a - b)) * (c + (a - b)) * (a + (b - c))
	if prod <= 0 {
		return 0
	}
	return math.Sqrt(prod) / 4
}
