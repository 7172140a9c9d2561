package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lasso/internal/geometry"
)

func TestTrace_Rectangle(t *testing.T) {
	pixels := []uint8{
		0, 0, 0, 0, 0, 0,
		0, 1, 1, 1, 1, 0,
		0, 1, 1, 1, 1, 0,
		0, 1, 1, 1, 1, 0,
		0, 0, 0, 0, 0, 0,
	}
	contour := Trace(pixels, 6, 5)
	require.NotEmpty(t, contour)

	// The walk returns to its start, so the sequence is closed.
	assert.Equal(t, contour[0], contour[len(contour)-1])
	assert.Equal(t, geometry.Point{X: 1, Y: 1}, contour[0])

	// Every contour point must be a boundary pixel of the rectangle.
	for _, p := range contour {
		x, y := int(p.X), int(p.Y)
		assert.True(t, isBoundary(pixels, 6, 5, x, y), "(%d,%d) is not a boundary pixel", x, y)
	}

	// The interior pixel (2,2)..(3,2) band center must not appear.
	for _, p := range contour {
		assert.False(t, p.X == 2 && p.Y == 2, "interior pixel traced")
	}
}

func TestTrace_TouchesCanvasEdge(t *testing.T) {
	// A block flush against the top-left corner; out-of-bounds neighbors count
	// as background, so the edge pixels are still boundary pixels.
	pixels := []uint8{
		1, 1, 0,
		1, 1, 0,
		0, 0, 0,
	}
	contour := Trace(pixels, 3, 3)
	require.NotEmpty(t, contour)
	assert.Equal(t, contour[0], contour[len(contour)-1])
	assert.Equal(t, geometry.Point{X: 0, Y: 0}, contour[0])
}

func TestTrace_SinglePixel(t *testing.T) {
	pixels := []uint8{
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	}
	contour := Trace(pixels, 3, 3)
	require.Len(t, contour, 1)
	assert.Equal(t, geometry.Point{X: 1, Y: 1}, contour[0])
}

func TestTrace_EmptyMask(t *testing.T) {
	assert.Nil(t, Trace(make([]uint8, 9), 3, 3))
}

func TestTrace_MismatchedBuffer(t *testing.T) {
	assert.Nil(t, Trace(make([]uint8, 5), 3, 3))
	assert.Nil(t, Trace(nil, 0, 0))
}

func TestTrace_FirstComponentOnly(t *testing.T) {
	// Two disconnected blocks; only the first in scan order is traced.
	pixels := []uint8{
		1, 1, 0, 0, 0,
		1, 1, 0, 0, 0,
		0, 0, 0, 0, 0,
		0, 0, 0, 1, 1,
		0, 0, 0, 1, 1,
	}
	contour := Trace(pixels, 5, 5)
	require.NotEmpty(t, contour)
	for _, p := range contour {
		assert.LessOrEqual(t, p.X, 1.0)
		assert.LessOrEqual(t, p.Y, 1.0)
	}
}

func TestTrace_LShape(t *testing.T) {
	pixels := []uint8{
		1, 0, 0,
		1, 0, 0,
		1, 1, 1,
	}
	contour := Trace(pixels, 3, 3)
	require.NotEmpty(t, contour)
	assert.Equal(t, contour[0], contour[len(contour)-1])

	// The concave corner pixels all lie on the boundary of an L; the trace
	// must cover every foreground pixel here since the shape is one pixel wide.
	seen := make(map[geometry.Point]bool)
	for _, p := range contour {
		seen[p] = true
	}
	for y := range 3 {
		for x := range 3 {
			if pixels[y*3+x] != 0 {
				assert.True(t, seen[geometry.Point{X: float64(x), Y: float64(y)}],
					"foreground pixel (%d,%d) missing from trace", x, y)
			}
		}
	}
}
