package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/lasso/internal/geometry"
	"github.com/MeKo-Tech/lasso/internal/mask"
	"github.com/MeKo-Tech/lasso/internal/mempool"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// Options controls overlay rendering.
type Options struct {
	FillAlpha     uint8 // mask tint opacity, 0 disables the fill
	DrawBoxes     bool
	DrawPolygons  bool
	OutlinePoints int // simplification target for polygon outlines
}

// DefaultOptions are the interactive-display defaults.
func DefaultOptions() Options {
	return Options{FillAlpha: 96, DrawBoxes: true, DrawPolygons: true, OutlinePoints: 16}
}

// Overlay draws the visible annotations over the image and returns an RGBA
// copy. Hidden annotations are skipped; the source image is never modified.
func Overlay(img image.Image, annotations []store.Annotation, opts Options) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, a := range annotations {
		if !a.Visible {
			continue
		}
		col, err := ParseHexColor(a.Color)
		if err != nil {
			col = color.RGBA{R: 255, A: 255}
		}
		if opts.FillAlpha > 0 {
			tintMask(dst, a.Segmentation, col, opts.FillAlpha)
		}
		if opts.DrawBoxes {
			rect := image.Rect(
				int(a.BBox[0]), int(a.BBox[1]),
				int(a.BBox[0]+a.BBox[2]), int(a.BBox[1]+a.BBox[3]))
			geometry.DrawRect(dst, rect, col, 1)
		}
		if opts.DrawPolygons {
			drawOutline(dst, a.Segmentation, col, opts.OutlinePoints)
		}
	}
	return dst
}

// tintMask alpha-blends the annotation color over the mask's foreground.
func tintMask(dst *image.RGBA, r mask.RLE, col color.RGBA, alpha uint8) {
	w := r.Width()
	bounds := dst.Bounds()
	pixels := mask.DecodePooled(r)
	defer mempool.PutPixels(pixels)

	a := uint32(alpha)
	for i, p := range pixels {
		if p == 0 {
			continue
		}
		x, y := i%w, i/w
		if x >= bounds.Dx() || y >= bounds.Dy() {
			continue
		}
		off := dst.PixOffset(x, y)
		px := dst.Pix[off : off+4 : off+4]
		px[0] = uint8((uint32(col.R)*a + uint32(px[0])*(255-a)) / 255)
		px[1] = uint8((uint32(col.G)*a + uint32(px[1])*(255-a)) / 255)
		px[2] = uint8((uint32(col.B)*a + uint32(px[2])*(255-a)) / 255)
	}
}

func drawOutline(dst *image.RGBA, r mask.RLE, col color.RGBA, maxPoints int) {
	pixels := mask.DecodePooled(r)
	defer mempool.PutPixels(pixels)
	contour := mask.Trace(pixels, r.Width(), r.Height())
	if len(contour) < 3 {
		return
	}
	outline := geometry.SimplifyAdaptive(contour, maxPoints)
	geometry.DrawPolygon(dst, outline, col, 1)
}

// ParseHexColor parses "#rrggbb" (or "#rgb") into an opaque RGBA color.
func ParseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 255}
	switch len(s) {
	case 7:
		_, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
		if err != nil {
			return c, fmt.Errorf("render: invalid color %q: %w", s, err)
		}
	case 4:
		_, err := fmt.Sscanf(s, "#%1x%1x%1x", &c.R, &c.G, &c.B)
		if err != nil {
			return c, fmt.Errorf("render: invalid color %q: %w", s, err)
		}
		c.R *= 17
		c.G *= 17
		c.B *= 17
	default:
		return c, fmt.Errorf("render: invalid color %q", s)
	}
	return c, nil
}
