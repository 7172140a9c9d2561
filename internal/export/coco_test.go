package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/mask"
	"github.com/MeKo-Tech/lasso/internal/store"
)

func diskMask(w, h, cx, cy, r int) mask.RLE {
	pixels := make([]uint8, w*h)
	for y := range h {
		for x := range w {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				pixels[y*w+x] = 1
			}
		}
	}
	return mask.Encode(pixels, w, h)
}

func sampleInputs() ([]imagestore.Info, []Category, []store.Annotation) {
	images := []imagestore.Info{
		{ID: "uuid-a", FileName: "cat.jpg", Width: 64, Height: 48},
		{ID: "uuid-b", FileName: "dog.jpg", Width: 32, Height: 32},
	}
	categories := []Category{
		{ID: 10, Name: "cat", Supercategory: "animal"},
		{ID: 20, Name: "dog", Supercategory: "animal"},
	}
	seg := diskMask(64, 48, 30, 20, 8)
	annotations := []store.Annotation{
		{ID: 1, ImageID: "uuid-a", CategoryID: 10, Segmentation: seg, Area: seg.Area(), Score: 0.8},
		{ID: 2, ImageID: "uuid-b", CategoryID: 20, Segmentation: diskMask(32, 32, 16, 16, 5), Score: 0.9},
	}
	return images, categories, annotations
}

func TestToCOCO_RemapsIDs(t *testing.T) {
	images, categories, annotations := sampleInputs()
	doc := ToCOCO(images, categories, annotations, Options{})

	require.Len(t, doc.Images, 2)
	assert.Equal(t, 1, doc.Images[0].ID)
	assert.Equal(t, 2, doc.Images[1].ID)
	assert.Equal(t, "cat.jpg", doc.Images[0].FileName)

	require.Len(t, doc.Categories, 2)
	assert.Equal(t, 0, doc.Categories[0].ID)
	assert.Equal(t, 1, doc.Categories[1].ID)

	require.Len(t, doc.Annotations, 2)
	assert.Equal(t, 1, doc.Annotations[0].ImageID)
	assert.Equal(t, 0, doc.Annotations[0].CategoryID)
	assert.Equal(t, 2, doc.Annotations[1].ImageID)
	assert.Equal(t, 1, doc.Annotations[1].CategoryID)
	assert.Equal(t, 0, doc.Annotations[0].IsCrowd)
}

func TestToCOCO_SegmentationPreserved(t *testing.T) {
	images, categories, annotations := sampleInputs()
	doc := ToCOCO(images, categories, annotations, Options{})

	// RLE travels untouched: same counts, same [height, width] order.
	assert.Equal(t, annotations[0].Segmentation.Counts, doc.Annotations[0].Segmentation.Counts)
	assert.Equal(t, [2]int{48, 64}, doc.Annotations[0].Segmentation.Size)
	assert.Nil(t, doc.Annotations[0].Polygon)
}

func TestToCOCO_UnknownImageFallsBack(t *testing.T) {
	images, categories, annotations := sampleInputs()
	annotations[1].ImageID = "missing"
	doc := ToCOCO(images, categories, annotations, Options{})
	assert.Equal(t, 1, doc.Annotations[1].ImageID)
}

func TestToCOCO_WithPolygons(t *testing.T) {
	images, categories, annotations := sampleInputs()
	doc := ToCOCO(images, categories, annotations, Options{WithPolygons: true})

	require.Len(t, doc.Annotations[0].Polygon, 1)
	flat := doc.Annotations[0].Polygon[0]
	require.NotEmpty(t, flat)
	assert.Zero(t, len(flat)%2, "flattened polygon must pair x,y")
	assert.LessOrEqual(t, len(flat)/2, 21)
}

func TestToCOCO_EmptyFileName(t *testing.T) {
	doc := ToCOCO([]imagestore.Info{{ID: "x", Width: 4, Height: 4}}, nil, nil, Options{})
	require.Len(t, doc.Images, 1)
	assert.Equal(t, "image_1.jpg", doc.Images[0].FileName)
}

func TestValidate_CleanDocument(t *testing.T) {
	images, categories, annotations := sampleInputs()
	doc := ToCOCO(images, categories, annotations, Options{})
	assert.Empty(t, Validate(doc))
}

func TestValidate_ReportsProblems(t *testing.T) {
	images, categories, annotations := sampleInputs()
	doc := ToCOCO(images, categories, annotations, Options{})

	doc.Annotations[0].ImageID = 99
	doc.Annotations[1].Segmentation.Counts = []int{1}
	errs := Validate(doc)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "invalid image_id")
	assert.Contains(t, errs[1], "run lengths sum")
}

func TestValidate_EmptyDocument(t *testing.T) {
	errs := Validate(COCO{})
	assert.Len(t, errs, 3)
}
