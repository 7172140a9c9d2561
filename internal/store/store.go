package store

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/lasso/internal/geometry"
	"github.com/MeKo-Tech/lasso/internal/mask"
)

// ErrNotFound is returned when an annotation id is not in the collection.
var ErrNotFound = errors.New("store: annotation not found")

// Store owns the annotation collection for one image set, together with the
// selection set, the clipboard, and a linear undo/redo history of full
// annotation-set snapshots. The store is not safe for concurrent use; the
// engine is single-threaded and callers serialize access.
type Store struct {
	annotations    []Annotation
	selection      map[int]struct{}
	clipboard      []Annotation
	history        []snapshot
	historyIndex   int
	nextID         int
	nextColorIndex int
	categoryColors map[int]string
	maxControlPts  int
	edit           *EditSession
}

// Option configures a Store at creation time.
type Option func(*Store)

// WithMaxControlPoints sets the target control-point count for edit sessions.
func WithMaxControlPoints(n int) Option {
	return func(s *Store) {
		if n >= geometry.MinControlPoints {
			s.maxControlPts = n
		}
	}
}

// New creates an empty store. History starts empty; the first snapshot is
// pushed by the first mutating operation.
func New(opts ...Option) *Store {
	s := &Store{
		selection:      make(map[int]struct{}),
		categoryColors: make(map[int]string),
		historyIndex:   -1,
		nextID:         1,
		maxControlPts:  16,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Annotations returns a deep copy of the live annotation collection.
func (s *Store) Annotations() []Annotation {
	out := cloneAnnotations(s.annotations)
	for i := range out {
		_, out[i].Selected = s.selection[out[i].ID]
	}
	return out
}

// Get returns a deep copy of the annotation with the given id.
func (s *Store) Get(id int) (Annotation, error) {
	for _, a := range s.annotations {
		if a.ID == id {
			out := a.Clone()
			_, out.Selected = s.selection[id]
			return out, nil
		}
	}
	return Annotation{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// Len returns the number of live annotations.
func (s *Store) Len() int { return len(s.annotations) }

// Add appends one annotation, assigning a fresh id and display color, and
// pushes one history snapshot. Returns the assigned id.
func (s *Store) Add(a Annotation) int {
	id := s.insert(a)
	s.pushSnapshot()
	return id
}

// AddBatch appends several annotations as one logical user action: ids and
// colors are assigned per item, but exactly one history snapshot is pushed.
func (s *Store) AddBatch(anns []Annotation) []int {
	ids := s.AddBatchWithoutSnapshot(anns)
	s.CommitHistory()
	return ids
}

// AddBatchWithoutSnapshot appends annotations without recording history.
// The caller controls the snapshot boundary with CommitHistory; the commit
// must land before the next user-visible state read.
func (s *Store) AddBatchWithoutSnapshot(anns []Annotation) []int {
	ids := make([]int, len(anns))
	for i, a := range anns {
		ids[i] = s.insert(a)
	}
	return ids
}

// CommitHistory pushes a snapshot of the current annotation collection.
func (s *Store) CommitHistory() {
	s.pushSnapshot()
}

func (s *Store) insert(a Annotation) int {
	a = a.Clone()
	a.ID = s.nextID
	s.nextID++
	a.Color = s.nextColor(a.CategoryID)
	a.Visible = true
	a.Selected = false
	a.recomputeDerived()
	s.annotations = append(s.annotations, a)
	return a.ID
}

// Delete removes the given annotations from the collection and the selection
// set, then pushes one snapshot. Unknown ids are ignored.
func (s *Store) Delete(ids ...int) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(s.selection, id)
		if s.edit != nil && s.edit.id == id {
			s.edit = nil
		}
	}
	kept := s.annotations[:0]
	for _, a := range s.annotations {
		if _, gone := drop[a.ID]; !gone {
			kept = append(kept, a)
		}
	}
	s.annotations = kept
	s.pushSnapshot()
}

// Patch holds the optional fields of an annotation update; nil fields are
// left unchanged. Setting Segmentation recomputes bbox and area.
type Patch struct {
	CategoryID   *int
	CategoryName *string
	Segmentation *mask.RLE
	Score        *float64
	Color        *string
	Visible      *bool
}

// Update merges a partial update into the annotation with the given id and
// pushes one snapshot.
func (s *Store) Update(id int, p Patch) error {
	a := s.find(id)
	if a == nil {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if p.CategoryID != nil {
		a.CategoryID = *p.CategoryID
	}
	if p.CategoryName != nil {
		a.CategoryName = *p.CategoryName
	}
	if p.Score != nil {
		a.Score = *p.Score
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.Visible != nil {
		a.Visible = *p.Visible
	}
	if p.Segmentation != nil {
		a.Segmentation = p.Segmentation.Clone()
		a.recomputeDerived()
	}
	s.pushSnapshot()
	return nil
}

func (s *Store) find(id int) *Annotation {
	for i := range s.annotations {
		if s.annotations[i].ID == id {
			return &s.annotations[i]
		}
	}
	return nil
}

// Select updates the selection set. Single-select replaces the set with id;
// multi-select toggles membership of id. Selecting is not a history-producing
// action. Unknown ids are a no-op.
func (s *Store) Select(id int, multi bool) {
	if s.find(id) == nil {
		return
	}
	if !multi {
		s.clearSelection()
		s.selection[id] = struct{}{}
	} else if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
	} else {
		s.selection[id] = struct{}{}
	}
	// An edit session only stays alive while its annotation remains the
	// sole selection.
	if s.edit != nil {
		if _, ok := s.selection[s.edit.id]; !ok || len(s.selection) != 1 {
			s.edit = nil
		}
	}
}

// ClearSelection empties the selection set.
func (s *Store) ClearSelection() {
	s.clearSelection()
	s.edit = nil
}

func (s *Store) clearSelection() {
	for id := range s.selection {
		delete(s.selection, id)
	}
}

// Selection returns the selected annotation ids in collection order.
func (s *Store) Selection() []int {
	out := make([]int, 0, len(s.selection))
	for _, a := range s.annotations {
		if _, ok := s.selection[a.ID]; ok {
			out = append(out, a.ID)
		}
	}
	return out
}

// Copy places deep copies of the selected annotations on the clipboard.
// Returns the number of annotations copied.
func (s *Store) Copy() int {
	var copied []Annotation
	for _, a := range s.annotations {
		if _, ok := s.selection[a.ID]; ok {
			copied = append(copied, a.Clone())
		}
	}
	if len(copied) > 0 {
		s.clipboard = copied
	}
	return len(copied)
}

// Paste duplicates the clipboard annotations so that the pixel centroid of
// their combined foreground lands on target. Each pasted mask is translated
// by (target - centroid) and clipped at the canvas; the whole paste is one
// logical action with one snapshot. Returns the new annotation ids.
func (s *Store) Paste(target geometry.Point) []int {
	if len(s.clipboard) == 0 {
		return nil
	}
	masks := make([]mask.RLE, len(s.clipboard))
	for i, a := range s.clipboard {
		masks[i] = a.Segmentation
	}
	cx, cy, ok := mask.Centroid(masks...)
	if !ok {
		return nil
	}
	dx, dy := target.X-cx, target.Y-cy

	ids := make([]int, 0, len(s.clipboard))
	for _, a := range s.clipboard {
		dup := a.Clone()
		dup.Segmentation = mask.Translate(dup.Segmentation, dx, dy)
		ids = append(ids, s.insert(dup))
	}
	s.pushSnapshot()
	return ids
}
