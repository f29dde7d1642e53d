package game

import (
	"math"

	"github.com/lishuceo/draw-and-guess/domain"
)

// DefaultSimplifyTolerance is the maximum perpendicular deviation, in canvas pixels, a point
// may have from the simplified polyline before it is kept.
const DefaultSimplifyTolerance = 2.0

// Simplify reduces a freehand gesture with the Douglas-Peucker algorithm. The result is an
// ordered subsequence of points that always keeps both endpoints.
func Simplify(points []domain.Point, tolerance float64) []domain.Point {
	if len(points) < 3 {
		return append([]domain.Point(nil), points...)
	}

	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true
	markFarthest(points, 0, len(points)-1, tolerance, keep)

	out := make([]domain.Point, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

func markFarthest(points []domain.Point, first, last int, tolerance float64, keep []bool) {
	if last-first < 2 {
		return
	}
	maxDist := -1.0
	index := first
	for i := first + 1; i < last; i++ {
		d := perpendicularDistance(points[i], points[first], points[last])
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist <= tolerance {
		return
	}
	keep[index] = true
	markFarthest(points, first, index, tolerance, keep)
	markFarthest(points, index, last, tolerance, keep)
}

// perpendicularDistance from p to the line through a and b. Degenerates to the point
// distance when a and b coincide, which happens for closed gestures.
func perpendicularDistance(p, a, b domain.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / length
}
