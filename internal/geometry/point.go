package geometry

// Point represents a 2D coordinate in image pixel space.
type Point struct {
	X float64
	Y float64
}

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
