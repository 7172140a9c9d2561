package store

import (
	"github.com/MeKo-Tech/lasso/internal/mask"
)

// Annotation is one labeled region of an image. Segmentation is the
// authoritative shape; BBox and Area are derived from it and recomputed
// whenever the mask changes. ImageID is a lookup key into an externally
// managed image registry, not an ownership edge.
type Annotation struct {
	ID           int        `json:"id" yaml:"id"`
	ImageID      string     `json:"image_id" yaml:"image_id"`
	CategoryID   int        `json:"category_id" yaml:"category_id"`
	CategoryName string     `json:"category_name" yaml:"category_name"`
	Segmentation mask.RLE   `json:"segmentation" yaml:"segmentation"`
	BBox         [4]float64 `json:"bbox" yaml:"bbox"` // x, y, width, height
	Area         int        `json:"area" yaml:"area"`
	Score        float64    `json:"score" yaml:"score"`
	Color        string     `json:"color" yaml:"color"`
	Visible      bool       `json:"visible" yaml:"visible"`
	Selected     bool       `json:"selected" yaml:"-"`
}

// Clone returns a deep copy sharing no mutable substructure with a.
func (a Annotation) Clone() Annotation {
	out := a
	out.Segmentation = a.Segmentation.Clone()
	return out
}

// recomputeDerived refreshes BBox and Area from the segmentation mask.
func (a *Annotation) recomputeDerived() {
	x, y, w, h := mask.BBox(a.Segmentation)
	a.BBox = [4]float64{float64(x), float64(y), float64(w), float64(h)}
	a.Area = a.Segmentation.Area()
}

func cloneAnnotations(src []Annotation) []Annotation {
	out := make([]Annotation, len(src))
	for i, a := range src {
		out[i] = a.Clone()
	}
	return out
}
