package geometry

import "math"

// MinControlPoints is the floor for the adaptive simplifier; a polygon with
// fewer vertices is too coarse to edit by hand.
const MinControlPoints = 8

// Simplify reduces the number of points in a polygon using the
// Douglas–Peucker algorithm with the given tolerance epsilon.
// The polygon is treated as closed for simplification continuity.
func Simplify(pts []Point, epsilon float64) []Point {
	if len(pts) <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	dpSimplify(pts, 0, len(pts)-1, epsilon, keep)
	// Always keep endpoints to ensure closure continuity
	keep[0] = true
	keep[len(pts)-1] = true
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		// Keep the farthest point and recurse
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	// Distance from point p to segment ab
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		dx, dy := p.X-a.X, p.Y-a.Y
		return math.Hypot(dx, dy)
	}
	// Area of parallelogram / base length
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	den := math.Hypot(vx, vy)
	return num / den
}

// SimplifyAdaptive reduces a contour to at most maxPoints control points by
// auto-tuning the Douglas–Peucker tolerance. The starting epsilon is 1% of the
// contour's bounding diagonal; it is scaled up when the result is still too
// dense and down when it falls below MinControlPoints. The first point of the
// contour is always preserved.
func SimplifyAdaptive(pts []Point, maxPoints int) []Point {
	if maxPoints < MinControlPoints {
		maxPoints = MinControlPoints
	}
	if len(pts) <= maxPoints {
		return append([]Point(nil), pts...)
	}

	box := BoundingBox(pts)
	diag := math.Hypot(box.Width(), box.Height())
	if diag == 0 {
		return append([]Point(nil), pts[:1]...)
	}

	eps := 0.01 * diag
	best := Simplify(pts, eps)
	for range 24 {
		out := Simplify(pts, eps)
		best = out
		switch {
		case len(out) > maxPoints:
			eps *= 1.5
		case len(out) < MinControlPoints:
			eps *= 0.7
		default:
			return out
		}
	}
	return best
}
