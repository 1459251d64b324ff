// Package utils contains small numeric helpers and the background worker primitive shared by the
// planner packages.
package utils

import "math"

// Epsilon is the tolerance used when comparing floating point quantities.
const Epsilon = 1e-9

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Clamp restricts value to [low, high].
func Clamp(value, low, high float64) float64 {
	return math.Max(low, math.Min(value, high))
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// CosineInterp interpolates between a and b with a cosine warp of t, which has zero slope at both
// ends.
func CosineInterp(a, b, t float64) float64 {
	t2 := (1 - math.Cos(t*math.Pi)) / 2
	return Lerp(a, b, t2)
}

// InputModulus wraps input into the range [minimumInput, maximumInput).
func InputModulus(input, minimumInput, maximumInput float64) float64 {
	modulus := maximumInput - minimumInput
	return input - math.Floor((input-minimumInput)/modulus)*modulus
}

// AngleModulus wraps an angle in radians into [-pi, pi).
func AngleModulus(radians float64) float64 {
	return InputModulus(radians, -math.Pi, math.Pi)
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less
// than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// Square returns n*n.
func Square(n float64) float64 {
	return n * n
}

// Sign returns -1, 0 or 1 depending on the sign of x.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// IsFinite reports whether x is neither infinite nor NaN.
func IsFinite(x float64) bool {
	return !math.IsInf(x, 0) && !math.IsNaN(x)
}
