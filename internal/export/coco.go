package export

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/lasso/internal/geometry"
	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/mask"
	"github.com/MeKo-Tech/lasso/internal/mempool"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// Category is an annotation category in the project.
type Category struct {
	ID            int    `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Supercategory string `json:"supercategory" yaml:"supercategory"`
}

// COCO document structure. Image ids are remapped to 1-based integers and
// category ids to 0-based integers on export, matching the common COCO
// tooling expectations.
type COCO struct {
	Info        COCOInfo         `json:"info"`
	Licenses    []COCOLicense    `json:"licenses"`
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

type COCOInfo struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	Year        int    `json:"year"`
	DateCreated string `json:"date_created"`
}

type COCOLicense struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type COCOImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// COCOAnnotation carries the RLE segmentation untouched: [height, width]
// order and the background-first counts convention are preserved exactly.
type COCOAnnotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	Segmentation mask.RLE    `json:"segmentation"`
	Polygon      [][]float64 `json:"polygon,omitempty"`
	BBox         [4]float64  `json:"bbox"`
	Area         int         `json:"area"`
	IsCrowd      int         `json:"iscrowd"`
	Score        float64     `json:"score"`
}

// Options controls export behavior.
type Options struct {
	// WithPolygons additionally derives polygon vertices for each mask via
	// contour tracing and fixed-tolerance simplification.
	WithPolygons bool
	// PolygonMaxPoints bounds the derived polygon size; zero means 20.
	PolygonMaxPoints int
}

// ToCOCO converts project images, categories and annotations into a COCO
// document.
func ToCOCO(images []imagestore.Info, categories []Category, annotations []store.Annotation, opts Options) COCO {
	now := time.Now()
	out := COCO{
		Info: COCOInfo{
			Description: "lasso annotation export",
			Version:     "1.0.0",
			Year:        now.Year(),
			DateCreated: now.Format(time.RFC3339),
		},
		Licenses:    []COCOLicense{{ID: 1, Name: "Unknown", URL: ""}},
		Images:      make([]COCOImage, 0, len(images)),
		Annotations: make([]COCOAnnotation, 0, len(annotations)),
		Categories:  make([]COCOCategory, 0, len(categories)),
	}

	imageIDMap := make(map[string]int, len(images))
	for i, img := range images {
		id := i + 1
		imageIDMap[img.ID] = id
		fileName := img.FileName
		if fileName == "" {
			fileName = fmt.Sprintf("image_%d.jpg", id)
		}
		out.Images = append(out.Images, COCOImage{
			ID: id, FileName: fileName, Width: img.Width, Height: img.Height,
		})
	}

	categoryIDMap := make(map[int]int, len(categories))
	for i, cat := range categories {
		categoryIDMap[cat.ID] = i
		out.Categories = append(out.Categories, COCOCategory{
			ID: i, Name: cat.Name, Supercategory: cat.Supercategory,
		})
	}

	maxPts := opts.PolygonMaxPoints
	if maxPts <= 0 {
		maxPts = 20
	}
	for _, a := range annotations {
		imageID, ok := imageIDMap[a.ImageID]
		if !ok {
			imageID = 1
		}
		categoryID, ok := categoryIDMap[a.CategoryID]
		if !ok {
			categoryID = a.CategoryID
		}
		ann := COCOAnnotation{
			ID:           a.ID,
			ImageID:      imageID,
			CategoryID:   categoryID,
			Segmentation: a.Segmentation.Clone(),
			BBox:         a.BBox,
			Area:         a.Area,
			IsCrowd:      0,
			Score:        a.Score,
		}
		if opts.WithPolygons {
			ann.Polygon = maskPolygon(a.Segmentation, maxPts)
		}
		out.Annotations = append(out.Annotations, ann)
	}
	return out
}

// maskPolygon derives flattened polygon vertices [x0, y0, x1, y1, ...] for a
// mask. This is the batch/offline use of the contour pipeline: unlike the
// interactive path the tolerance is fixed per mask, not user-tuned.
func maskPolygon(r mask.RLE, maxPoints int) [][]float64 {
	pixels := mask.DecodePooled(r)
	defer mempool.PutPixels(pixels)
	contour := mask.Trace(pixels, r.Width(), r.Height())
	if len(contour) < 3 {
		return nil
	}
	simplified := geometry.SimplifyAdaptive(contour, maxPoints)
	flat := make([]float64, 0, len(simplified)*2)
	for _, p := range simplified {
		flat = append(flat, p.X, p.Y)
	}
	return [][]float64{flat}
}

// Validate performs a structural check of a COCO document and returns the
// list of problems found, empty when valid.
func Validate(doc COCO) []string {
	var errs []string
	if len(doc.Images) == 0 {
		errs = append(errs, "no images found")
	}
	if len(doc.Annotations) == 0 {
		errs = append(errs, "no annotations found")
	}
	if len(doc.Categories) == 0 {
		errs = append(errs, "no categories found")
	}

	imageIDs := make(map[int]struct{}, len(doc.Images))
	for _, img := range doc.Images {
		imageIDs[img.ID] = struct{}{}
	}
	categoryIDs := make(map[int]struct{}, len(doc.Categories))
	for _, cat := range doc.Categories {
		categoryIDs[cat.ID] = struct{}{}
	}
	for _, ann := range doc.Annotations {
		if _, ok := imageIDs[ann.ImageID]; !ok {
			errs = append(errs, fmt.Sprintf("annotation %d references invalid image_id %d", ann.ID, ann.ImageID))
		}
		if _, ok := categoryIDs[ann.CategoryID]; !ok {
			errs = append(errs, fmt.Sprintf("annotation %d references invalid category_id %d", ann.ID, ann.CategoryID))
		}
		if err := mask.Validate(ann.Segmentation); err != nil {
			errs = append(errs, fmt.Sprintf("annotation %d: %v", ann.ID, err))
		}
	}
	return errs
}
