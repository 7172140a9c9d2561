package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lasso/internal/geometry"
)

// iou computes intersection-over-union of two binary buffers.
func iou(a, b []uint8) float64 {
	inter, union := 0, 0
	for i := range a {
		af, bf := a[i] != 0, b[i] != 0
		if af && bf {
			inter++
		}
		if af || bf {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// TestTraceSimplifyRasterize_ApproximatesOriginal checks that tracing a
// convex mask, simplifying the contour, and rasterizing the polygon
// reconstructs most of the original foreground.
func TestTraceSimplifyRasterize_ApproximatesOriginal(t *testing.T) {
	w, h := 40, 40
	pixels := make([]uint8, w*h)
	// Filled disk of radius 12 around (20,20).
	for y := range h {
		for x := range w {
			dx, dy := x-20, y-20
			if dx*dx+dy*dy <= 12*12 {
				pixels[y*w+x] = 1
			}
		}
	}

	contour := Trace(pixels, w, h)
	require.GreaterOrEqual(t, len(contour), 3)

	simplified := geometry.SimplifyAdaptive(contour, 16)
	require.LessOrEqual(t, len(simplified), 17) // closing point may remain
	require.GreaterOrEqual(t, len(simplified), 3)

	rebuilt := geometry.Rasterize(simplified, w, h)
	assert.Greater(t, iou(pixels, rebuilt), 0.8,
		"reconstructed disk overlaps poorly:\noriginal area %d rebuilt area %d",
		Encode(pixels, w, h).Area(), Encode(rebuilt, w, h).Area())
}

func TestTraceSimplifyRasterize_Rectangle(t *testing.T) {
	w, h := 30, 20
	orig := blockMask(w, h, 5, 4, 25, 16)
	pixels := Decode(orig)

	contour := Trace(pixels, w, h)
	require.NotEmpty(t, contour)
	simplified := geometry.SimplifyAdaptive(contour, 16)
	rebuilt := geometry.Rasterize(simplified, w, h)

	assert.Greater(t, iou(pixels, rebuilt), 0.85)
}
