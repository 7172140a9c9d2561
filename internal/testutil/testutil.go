package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lasso/internal/mask"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// PixelGrid parses a drawing of a mask into a pixel buffer. Rows are
// separated by newlines; '#' marks foreground, anything else background.
// All rows must have the same length.
//
//	pixels, w, h := testutil.PixelGrid(t, `
//	....
//	.##.
//	.##.
//	....`)
func PixelGrid(t *testing.T, grid string) ([]uint8, int, int) {
	t.Helper()

	rows := strings.Split(strings.TrimSpace(grid), "\n")
	require.NotEmpty(t, rows, "empty pixel grid")

	width := len(strings.TrimSpace(rows[0]))
	height := len(rows)
	pixels := make([]uint8, width*height)
	for y, row := range rows {
		row = strings.TrimSpace(row)
		require.Len(t, row, width, "ragged pixel grid at row %d", y)
		for x := range width {
			if row[x] == '#' {
				pixels[y*width+x] = 1
			}
		}
	}
	return pixels, width, height
}

// MaskFromGrid parses a drawing of a mask into an RLE value.
func MaskFromGrid(t *testing.T, grid string) mask.RLE {
	t.Helper()

	pixels, w, h := PixelGrid(t, grid)
	return mask.Encode(pixels, w, h)
}

// RectMask builds a mask with a filled axis-aligned rectangle.
func RectMask(width, height, x0, y0, x1, y1 int) mask.RLE {
	pixels := make([]uint8, width*height)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if x >= 0 && x < width && y >= 0 && y < height {
				pixels[y*width+x] = 1
			}
		}
	}
	return mask.Encode(pixels, width, height)
}

// GridFromPixels renders a pixel buffer back into the PixelGrid drawing
// format, for readable failure output.
func GridFromPixels(pixels []uint8, width, height int) string {
	var sb strings.Builder
	for y := range height {
		for x := range width {
			if pixels[y*width+x] != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Annotation builds a minimal valid annotation around a mask.
func Annotation(t *testing.T, imageID string, categoryID int, seg mask.RLE) store.Annotation {
	t.Helper()

	require.NoError(t, mask.Validate(seg))
	return store.Annotation{
		ImageID:      imageID,
		CategoryID:   categoryID,
		CategoryName: "object",
		Segmentation: seg,
		Score:        1.0,
	}
}
