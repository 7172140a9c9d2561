package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockMask(w, h, x0, y0, x1, y1 int) RLE {
	pixels := make([]uint8, w*h)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			pixels[y*w+x] = 1
		}
	}
	return Encode(pixels, w, h)
}

func TestTranslate_Shift(t *testing.T) {
	r := blockMask(6, 6, 1, 1, 3, 3)
	moved := Translate(r, 2, 1)
	require.NoError(t, Validate(moved))

	x, y, w, h := BBox(moved)
	assert.Equal(t, 3, x)
	assert.Equal(t, 2, y)
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, r.Area(), moved.Area())
}

func TestTranslate_RoundsToNearestPixel(t *testing.T) {
	r := blockMask(6, 6, 2, 2, 4, 4)

	half := Translate(r, 0.5, 0.5)
	x, y, _, _ := BBox(half)
	assert.Equal(t, 3, x)
	assert.Equal(t, 3, y)

	small := Translate(r, 0.4, -0.4)
	x, y, _, _ = BBox(small)
	assert.Equal(t, 2, x)
	assert.Equal(t, 2, y)
}

func TestTranslate_ClipsAtCanvas(t *testing.T) {
	r := blockMask(4, 4, 2, 2, 4, 4)
	moved := Translate(r, 1, 1)

	// Only the top-left pixel of the block survives inside the canvas.
	assert.Equal(t, 1, moved.Area())
	x, y, w, h := BBox(moved)
	assert.Equal(t, [4]int{3, 3, 1, 1}, [4]int{x, y, w, h})
}

func TestTranslate_EverythingOutOfBounds(t *testing.T) {
	r := blockMask(4, 4, 0, 0, 2, 2)
	moved := Translate(r, 10, 10)

	require.NoError(t, Validate(moved))
	assert.Equal(t, 0, moved.Area())
	assert.Equal(t, r.Size, moved.Size)
}

func TestTranslate_NegativeOffsets(t *testing.T) {
	r := blockMask(5, 5, 2, 2, 4, 4)
	moved := Translate(r, -2, -2)
	x, y, w, h := BBox(moved)
	assert.Equal(t, [4]int{0, 0, 2, 2}, [4]int{x, y, w, h})
	assert.Equal(t, 4, moved.Area())
}

func TestCentroid_SingleBlock(t *testing.T) {
	// A 2x2 block at (2,2)..(3,3) has its pixel centroid at (2.5, 2.5).
	r := blockMask(6, 6, 2, 2, 4, 4)
	cx, cy, ok := Centroid(r)
	require.True(t, ok)
	assert.InDelta(t, 2.5, cx, 1e-9)
	assert.InDelta(t, 2.5, cy, 1e-9)
}

func TestCentroid_UnionOfMasks(t *testing.T) {
	// Two single-pixel masks at (0,0) and (4,4): centroid of the union is (2,2).
	a := blockMask(5, 5, 0, 0, 1, 1)
	b := blockMask(5, 5, 4, 4, 5, 5)
	cx, cy, ok := Centroid(a, b)
	require.True(t, ok)
	assert.InDelta(t, 2.0, cx, 1e-9)
	assert.InDelta(t, 2.0, cy, 1e-9)
}

func TestCentroid_OverlapCountedOnce(t *testing.T) {
	// Identical masks must not double-weight shared pixels.
	r := blockMask(6, 6, 1, 1, 3, 3)
	cx1, cy1, ok := Centroid(r)
	require.True(t, ok)
	cx2, cy2, ok := Centroid(r, r)
	require.True(t, ok)
	assert.Equal(t, cx1, cx2)
	assert.Equal(t, cy1, cy2)
}

func TestCentroid_NoForeground(t *testing.T) {
	_, _, ok := Centroid(Encode(make([]uint8, 9), 3, 3))
	assert.False(t, ok)

	_, _, ok = Centroid()
	assert.False(t, ok)
}
