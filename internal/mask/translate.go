package mask

import (
	"math"

	"github.com/MeKo-Tech/lasso/internal/mempool"
)

// Translate shifts every foreground pixel of r by (dx, dy), rounded to the
// nearest integer. The result has the same size; pixels that land outside the
// canvas are dropped, never wrapped or clamped. Translating everything out of
// bounds yields a valid all-background mask.
func Translate(r RLE, dx, dy float64) RLE {
	h, w := r.Height(), r.Width()
	if h <= 0 || w <= 0 {
		return r.Clone()
	}
	ix := int(math.Round(dx))
	iy := int(math.Round(dy))

	src := DecodePooled(r)
	defer mempool.PutPixels(src)
	dst := mempool.GetPixels(h * w)
	defer mempool.PutPixels(dst)

	for i, p := range src {
		if p == 0 {
			continue
		}
		x := i%w + ix
		y := i/w + iy
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		dst[y*w+x] = 1
	}
	return Encode(dst, w, h)
}

// Centroid returns the mean (x, y) over the union of foreground pixels of the
// given masks. All masks are interpreted on a shared canvas sized to the
// largest input. ok is false when no mask contributes any foreground.
func Centroid(masks ...RLE) (cx, cy float64, ok bool) {
	maxW, maxH := 0, 0
	for _, r := range masks {
		if r.Width() > maxW {
			maxW = r.Width()
		}
		if r.Height() > maxH {
			maxH = r.Height()
		}
	}
	if maxW <= 0 || maxH <= 0 {
		return 0, 0, false
	}

	union := mempool.GetPixels(maxW * maxH)
	defer mempool.PutPixels(union)
	for _, r := range masks {
		w := r.Width()
		pixels := DecodePooled(r)
		for i, p := range pixels {
			if p != 0 {
				union[(i/w)*maxW+i%w] = 1
			}
		}
		mempool.PutPixels(pixels)
	}

	var sumX, sumY float64
	count := 0
	for i, p := range union {
		if p == 0 {
			continue
		}
		sumX += float64(i % maxW)
		sumY += float64(i / maxW)
		count++
	}
	if count == 0 {
		return 0, 0, false
	}
	return sumX / float64(count), sumY / float64(count), true
}
