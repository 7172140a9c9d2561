package geometry

import "sort"

// Rasterize fills a closed polygon into a binary mask of size w*h using
// even-odd scanline filling. The polygon is closed implicitly (the last
// vertex connects to the first); fewer than 3 vertices yields an
// all-background mask.
func Rasterize(polygon []Point, w, h int) []uint8 {
	if w <= 0 || h <= 0 {
		return nil
	}
	pixels := make([]uint8, w*h)
	if len(polygon) < 3 {
		return pixels
	}

	xs := make([]float64, 0, len(polygon))
	for y := range h {
		fy := float64(y)
		xs = xs[:0]
		for i := range polygon {
			a := polygon[i]
			b := polygon[(i+1)%len(polygon)]
			// Half-open rule: count the edge only when it spans the scanline,
			// so shared vertices are not counted twice.
			if (a.Y <= fy && b.Y > fy) || (b.Y <= fy && a.Y > fy) {
				t := (fy - a.Y) / (b.Y - a.Y)
				xs = append(xs, a.X+t*(b.X-a.X))
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(xs[i] + 0.5)
			x1 := int(xs[i+1] + 0.5)
			if x0 < 0 {
				x0 = 0
			}
			if x1 > w {
				x1 = w
			}
			for x := x0; x < x1; x++ {
				pixels[y*w+x] = 1
			}
		}
	}
	return pixels
}
