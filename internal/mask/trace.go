package mask

import "github.com/MeKo-Tech/lasso/internal/geometry"

// Trace extracts the outer boundary of the mask's first connected component
// by 8-connected boundary following. The returned sequence is closed (the
// start pixel is repeated at the end) when the walk returns to its start;
// degenerate or disconnected masks yield the partial trace, and an empty
// mask yields nil. Interior holes and further components are not traced.
func Trace(pixels []uint8, w, h int) []geometry.Point {
	if w <= 0 || h <= 0 || len(pixels) != w*h {
		return nil
	}

	sx, sy := findStartPixel(pixels, w, h)
	if sx == -1 {
		return nil
	}

	pts := make([]geometry.Point, 0, 64)
	pts = append(pts, geometry.Point{X: float64(sx), Y: float64(sy)})

	cx, cy := sx, sy
	bx, by := sx-1, sy // backtrack to the left of start
	maxSteps := w*h*4 + 8

	for steps := 0; steps < maxSteps; steps++ {
		nx, ny, found := nextBoundaryPixel(pixels, w, h, cx, cy, bx, by)
		if !found {
			return pts
		}
		bx, by = cx, cy
		cx, cy = nx, ny
		pts = append(pts, geometry.Point{X: float64(cx), Y: float64(cy)})
		if cx == sx && cy == sy {
			return pts
		}
	}
	return pts
}

// findStartPixel returns the first foreground pixel in row-major order whose
// left neighbor is background or which sits on the left edge.
func findStartPixel(pixels []uint8, w, h int) (int, int) {
	for y := range h {
		for x := range w {
			if pixels[y*w+x] == 0 {
				continue
			}
			if x == 0 || pixels[y*w+x-1] == 0 {
				return x, y
			}
		}
	}
	return -1, -1
}

func isForeground(pixels []uint8, w, h, x, y int) bool {
	if x < 0 || y < 0 || x >= w || y >= h {
		return false
	}
	return pixels[y*w+x] != 0
}

// isBoundary reports whether (x, y) is a foreground pixel with at least one
// background or out-of-bounds pixel in its 8-neighborhood.
func isBoundary(pixels []uint8, w, h, x, y int) bool {
	if !isForeground(pixels, w, h, x, y) {
		return false
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if !isForeground(pixels, w, h, x+dx, y+dy) {
				return true
			}
		}
	}
	return false
}

// 8-neighborhood clockwise order: E, SE, S, SW, W, NW, N, NE.
var (
	neighborDX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	neighborDY = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// nextBoundaryPixel scans the 8 neighbors of (cx, cy) clockwise, starting one
// step past the backtrack direction, and returns the first foreground
// neighbor that is itself a boundary pixel.
func nextBoundaryPixel(pixels []uint8, w, h, cx, cy, bx, by int) (int, int, bool) {
	start := 0
	dx, dy := bx-cx, by-cy
	for i := range 8 {
		if neighborDX[i] == dx && neighborDY[i] == dy {
			start = (i + 1) % 8
			break
		}
	}
	for k := range 8 {
		i := (start + k) % 8
		tx, ty := cx+neighborDX[i], cy+neighborDY[i]
		if isBoundary(pixels, w, h, tx, ty) {
			return tx, ty, true
		}
	}
	return 0, 0, false
}
