package geometry

import (
	"image"
	"image/color"
	"math"
)

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	// Top and bottom edges
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	// Left and right edges
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst *image.RGBA, pts []Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	ip := make([]image.Point, len(pts))
	for i, p := range pts {
		ip[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	for i := range ip {
		a := ip[i]
		b := ip[(i+1)%len(ip)]
		drawLine(dst, a, b, col, thickness)
	}
}

// drawLine draws a line between two points using a simple Bresenham variant.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}
