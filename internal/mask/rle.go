package mask

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/lasso/internal/mempool"
)

// RLE is a run-length encoded binary mask in COCO convention: counts are
// alternating background/foreground run lengths in row-major scan order, and
// the first run is always background (possibly zero-length). Size is [height,
// width]. RLE values are immutable; every edit produces a new value.
type RLE struct {
	Counts []int  `json:"counts" yaml:"counts"`
	Size   [2]int `json:"size" yaml:"size"`
}

// Height returns the mask height in pixels.
func (r RLE) Height() int { return r.Size[0] }

// Width returns the mask width in pixels.
func (r RLE) Width() int { return r.Size[1] }

// Area returns the number of foreground pixels (the sum of foreground runs).
func (r RLE) Area() int {
	area := 0
	for i := 1; i < len(r.Counts); i += 2 {
		area += r.Counts[i]
	}
	return area
}

// Clone returns an independent copy sharing no substructure with r.
func (r RLE) Clone() RLE {
	return RLE{Counts: append([]int(nil), r.Counts...), Size: r.Size}
}

var errEmptySize = errors.New("mask: non-positive dimensions")

// Validate checks the structural invariants of an RLE at a trust boundary:
// positive dimensions, non-negative counts, and sum(counts) == height*width.
// Decode itself never fails; malformed counts are recovered best-effort.
func Validate(r RLE) error {
	h, w := r.Height(), r.Width()
	if h <= 0 || w <= 0 {
		return fmt.Errorf("%w: %dx%d", errEmptySize, w, h)
	}
	sum := 0
	for i, c := range r.Counts {
		if c < 0 {
			return fmt.Errorf("mask: negative run length %d at index %d", c, i)
		}
		sum += c
	}
	if sum != h*w {
		return fmt.Errorf("mask: run lengths sum to %d, want %d", sum, h*w)
	}
	return nil
}

// Decode expands an RLE into a row-major pixel buffer of length
// height*width with values 0 (background) and 1 (foreground). Counts that
// under- or over-shoot the buffer are clamped: excess runs are truncated and
// a shortfall is left as background.
func Decode(r RLE) []uint8 {
	h, w := r.Height(), r.Width()
	if h <= 0 || w <= 0 {
		return nil
	}
	pixels := make([]uint8, h*w)
	decodeInto(r, pixels)
	return pixels
}

// DecodePooled is Decode using a pooled buffer. The caller must return the
// buffer via mempool.PutPixels when done.
func DecodePooled(r RLE) []uint8 {
	h, w := r.Height(), r.Width()
	if h <= 0 || w <= 0 {
		return nil
	}
	pixels := mempool.GetPixels(h * w)
	decodeInto(r, pixels)
	return pixels
}

func decodeInto(r RLE, pixels []uint8) {
	pos := 0
	val := uint8(0)
	for _, c := range r.Counts {
		if c > 0 && val == 1 {
			end := pos + c
			if end > len(pixels) {
				end = len(pixels)
			}
			for i := pos; i < end; i++ {
				pixels[i] = 1
			}
		}
		pos += c
		if pos >= len(pixels) {
			break
		}
		val = 1 - val
	}
}

// Encode converts a row-major binary pixel buffer into an RLE. Any non-zero
// pixel counts as foreground. A leading zero run is emitted when the first
// pixel is foreground so decode(encode(x)) == x holds for all binary buffers.
func Encode(pixels []uint8, w, h int) RLE {
	counts := make([]int, 0, 16)
	if len(pixels) > 0 && pixels[0] != 0 {
		counts = append(counts, 0)
	}
	run := 0
	var cur uint8
	if len(pixels) > 0 && pixels[0] != 0 {
		cur = 1
	}
	for _, p := range pixels {
		v := uint8(0)
		if p != 0 {
			v = 1
		}
		if v == cur {
			run++
			continue
		}
		counts = append(counts, run)
		cur = v
		run = 1
	}
	if run > 0 || len(counts) == 0 {
		counts = append(counts, run)
	}
	return RLE{Counts: counts, Size: [2]int{h, w}}
}

// BBox returns the foreground extent of the mask as (x, y, width, height).
// A mask with no foreground yields all zeros.
func BBox(r RLE) (x, y, w, h int) {
	pixels := DecodePooled(r)
	defer mempool.PutPixels(pixels)
	width := r.Width()
	minX, minY := width, r.Height()
	maxX, maxY := -1, -1
	for i, p := range pixels {
		if p == 0 {
			continue
		}
		px, py := i%width, i/width
		if px < minX {
			minX = px
		}
		if px > maxX {
			maxX = px
		}
		if py < minY {
			minY = py
		}
		if py > maxY {
			maxY = py
		}
	}
	if maxX < 0 {
		return 0, 0, 0, 0
	}
	return minX, minY, maxX - minX + 1, maxY - minY + 1
}
