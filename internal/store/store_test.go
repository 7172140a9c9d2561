package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lasso/internal/geometry"
	"github.com/MeKo-Tech/lasso/internal/mask"
)

// rectAnn builds an annotation whose mask is a filled rectangle on a w*h
// canvas.
func rectAnn(w, h, x0, y0, x1, y1 int) Annotation {
	pixels := make([]uint8, w*h)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			pixels[y*w+x] = 1
		}
	}
	return Annotation{
		ImageID:      "img-1",
		CategoryID:   1,
		CategoryName: "object",
		Segmentation: mask.Encode(pixels, w, h),
		Score:        0.9,
	}
}

func TestStore_Add(t *testing.T) {
	s := New()
	id := s.Add(rectAnn(10, 10, 2, 2, 5, 5))

	assert.Equal(t, 1, id)
	assert.Equal(t, 1, s.Len())

	a, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 9, a.Area)
	assert.Equal(t, [4]float64{2, 2, 3, 3}, a.BBox)
	assert.True(t, a.Visible)
	assert.NotEmpty(t, a.Color)
}

func TestStore_Add_AssignsSequentialIDs(t *testing.T) {
	s := New()
	first := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	second := s.Add(rectAnn(8, 8, 3, 3, 5, 5))
	assert.Equal(t, first+1, second)
}

func TestStore_Add_DerivedFieldsRecomputed(t *testing.T) {
	s := New()
	a := rectAnn(10, 10, 1, 1, 4, 4)
	// Stale derived fields supplied by the caller must be overwritten.
	a.Area = 9999
	a.BBox = [4]float64{99, 99, 1, 1}

	id := s.Add(a)
	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Area)
	assert.Equal(t, [4]float64{1, 1, 3, 3}, got.BBox)
}

func TestStore_PaletteCycles(t *testing.T) {
	s := New()
	colors := make(map[string]int)
	for range 4 {
		id := s.Add(rectAnn(8, 8, 1, 1, 3, 3))
		a, err := s.Get(id)
		require.NoError(t, err)
		colors[a.Color]++
	}
	assert.Len(t, colors, 4, "each annotation should get a distinct palette color")
}

func TestStore_CategoryColorWins(t *testing.T) {
	s := New()
	s.SetCategoryColor(7, "#123456")

	a := rectAnn(8, 8, 1, 1, 3, 3)
	a.CategoryID = 7
	id := s.Add(a)

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "#123456", got.Color)

	// A category-colored annotation does not burn a palette slot.
	other := s.Add(rectAnn(8, 8, 4, 4, 6, 6))
	o, err := s.Get(other)
	require.NoError(t, err)
	assert.Equal(t, palette[0], o.Color)
}

func TestStore_Get_NotFound(t *testing.T) {
	s := New()
	_, err := s.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Annotations_DeepCopy(t *testing.T) {
	s := New()
	s.Add(rectAnn(8, 8, 1, 1, 3, 3))

	out := s.Annotations()
	require.Len(t, out, 1)
	out[0].CategoryName = "mutated"
	out[0].Segmentation.Counts[0] = -1

	fresh := s.Annotations()
	assert.Equal(t, "object", fresh[0].CategoryName)
	assert.NoError(t, mask.Validate(fresh[0].Segmentation))
}

func TestStore_Delete(t *testing.T) {
	s := New()
	a := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	b := s.Add(rectAnn(8, 8, 3, 3, 5, 5))

	s.Delete(a)
	assert.Equal(t, 1, s.Len())
	_, err := s.Get(a)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(b)
	assert.NoError(t, err)
}

func TestStore_Delete_RemovesFromSelection(t *testing.T) {
	s := New()
	id := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	s.Select(id, false)
	require.Equal(t, []int{id}, s.Selection())

	s.Delete(id)
	assert.Empty(t, s.Selection())
}

func TestStore_Delete_UnknownIDIgnored(t *testing.T) {
	s := New()
	id := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	s.Delete(999)
	assert.Equal(t, 1, s.Len())
	_, err := s.Get(id)
	assert.NoError(t, err)
}

func TestStore_Update(t *testing.T) {
	s := New()
	id := s.Add(rectAnn(10, 10, 1, 1, 3, 3))

	name := "cat"
	score := 0.42
	visible := false
	require.NoError(t, s.Update(id, Patch{
		CategoryName: &name,
		Score:        &score,
		Visible:      &visible,
	}))

	a, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "cat", a.CategoryName)
	assert.Equal(t, 0.42, a.Score)
	assert.False(t, a.Visible)
	// Untouched fields stay.
	assert.Equal(t, 1, a.CategoryID)
}

func TestStore_Update_SegmentationRecomputesDerived(t *testing.T) {
	s := New()
	id := s.Add(rectAnn(10, 10, 1, 1, 3, 3))

	bigger := rectAnn(10, 10, 0, 0, 5, 5).Segmentation
	require.NoError(t, s.Update(id, Patch{Segmentation: &bigger}))

	a, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 25, a.Area)
	assert.Equal(t, [4]float64{0, 0, 5, 5}, a.BBox)
}

func TestStore_Update_NotFound(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Update(5, Patch{}), ErrNotFound)
}

func TestStore_Select_Single(t *testing.T) {
	s := New()
	a := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	b := s.Add(rectAnn(8, 8, 3, 3, 5, 5))

	s.Select(a, false)
	s.Select(b, false)
	assert.Equal(t, []int{b}, s.Selection(), "single select replaces the set")
}

func TestStore_Select_MultiToggles(t *testing.T) {
	s := New()
	a := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	b := s.Add(rectAnn(8, 8, 3, 3, 5, 5))

	s.Select(a, false)
	s.Select(b, true)
	assert.Equal(t, []int{a, b}, s.Selection())

	s.Select(a, true)
	assert.Equal(t, []int{b}, s.Selection())
}

func TestStore_Select_UnknownIDNoOp(t *testing.T) {
	s := New()
	a := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	s.Select(a, false)
	s.Select(99, false)
	assert.Equal(t, []int{a}, s.Selection())
}

func TestStore_Select_IsNotHistory(t *testing.T) {
	s := New()
	a := s.Add(rectAnn(8, 8, 0, 0, 2, 2))
	before := s.HistoryLen()

	s.Select(a, false)
	s.ClearSelection()
	assert.Equal(t, before, s.HistoryLen())
}

func TestStore_CopyPaste(t *testing.T) {
	s := New()
	// 2x2 block at (2,2)..(3,3), centroid (2.5, 2.5).
	id := s.Add(rectAnn(10, 10, 2, 2, 4, 4))
	s.Select(id, false)
	require.Equal(t, 1, s.Copy())

	ids := s.Paste(geometry.Point{X: 6.5, Y: 6.5})
	require.Len(t, ids, 1)

	pasted, err := s.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 4, pasted.Area)
	assert.Equal(t, [4]float64{6, 6, 2, 2}, pasted.BBox)
	// The original stays put.
	orig, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, [4]float64{2, 2, 2, 2}, orig.BBox)
}

func TestStore_Paste_ClipsAtBorder(t *testing.T) {
	s := New()
	id := s.Add(rectAnn(10, 10, 4, 4, 6, 6))
	s.Select(id, false)
	require.Equal(t, 1, s.Copy())

	ids := s.Paste(geometry.Point{X: 9.5, Y: 9.5})
	require.Len(t, ids, 1)
	pasted, err := s.Get(ids[0])
	require.NoError(t, err)
	assert.Less(t, pasted.Area, 4, "pixels past the border are dropped")
	assert.NotZero(t, pasted.Area)
}

func TestStore_Paste_EmptyClipboard(t *testing.T) {
	s := New()
	assert.Nil(t, s.Paste(geometry.Point{X: 5, Y: 5}))
}

func TestStore_Paste_MultipleSharedOffset(t *testing.T) {
	s := New()
	a := s.Add(rectAnn(20, 20, 2, 2, 4, 4))
	b := s.Add(rectAnn(20, 20, 6, 2, 8, 4))
	s.Select(a, false)
	s.Select(b, true)
	require.Equal(t, 2, s.Copy())

	// Combined centroid is (4.5, 2.5); paste at (10.5, 10.5) shifts both by
	// (+6, +8), preserving their relative arrangement.
	ids := s.Paste(geometry.Point{X: 10.5, Y: 10.5})
	require.Len(t, ids, 2)

	first, err := s.Get(ids[0])
	require.NoError(t, err)
	second, err := s.Get(ids[1])
	require.NoError(t, err)
	assert.Equal(t, [4]float64{8, 10, 2, 2}, first.BBox)
	assert.Equal(t, [4]float64{12, 10, 2, 2}, second.BBox)
}

func TestStore_Copy_NothingSelectedKeepsClipboard(t *testing.T) {
	s := New()
	id := s.Add(rectAnn(10, 10, 2, 2, 4, 4))
	s.Select(id, false)
	require.Equal(t, 1, s.Copy())

	s.ClearSelection()
	assert.Equal(t, 0, s.Copy())

	// The previous clipboard contents still paste.
	ids := s.Paste(geometry.Point{X: 5.5, Y: 5.5})
	assert.Len(t, ids, 1)
}
