package store

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/lasso/internal/geometry"
	"github.com/MeKo-Tech/lasso/internal/mask"
)

// ControlPoint is a draggable vertex of the polygon approximating the
// currently edited annotation's mask. Control points exist only while exactly
// one annotation is selected and are never persisted.
type ControlPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Index int     `json:"index"`
}

// EditSession accumulates control-point moves without touching the store.
// Pointer moves mutate only the in-memory points; CommitEdit writes the
// result back exactly once, which keeps intermediate drag states out of the
// undo history.
type EditSession struct {
	id     int
	points []ControlPoint
	width  int
	height int
}

// ID returns the id of the annotation being edited.
func (e *EditSession) ID() int { return e.id }

// ControlPoints returns a copy of the current control points.
func (e *EditSession) ControlPoints() []ControlPoint {
	return append([]ControlPoint(nil), e.points...)
}

var (
	// ErrNoEdit is returned when no edit session is active.
	ErrNoEdit = errors.New("store: no active edit session")
	// ErrNotSoleSelection is returned when an edit is requested while the
	// annotation is not the only selected one.
	ErrNotSoleSelection = errors.New("store: annotation is not the sole selection")
	// ErrDegenerateContour is returned when a mask has too little foreground
	// to derive an editable polygon.
	ErrDegenerateContour = errors.New("store: mask contour is degenerate")
)

// BeginEdit loads control points for the annotation with the given id, which
// must be the sole selection. Control points are traced and simplified from
// the mask once per selected id: calling BeginEdit again for the same id
// returns the existing session unchanged, so in-progress drags survive
// redundant calls.
func (s *Store) BeginEdit(id int) (*EditSession, error) {
	if _, ok := s.selection[id]; !ok || len(s.selection) != 1 {
		s.edit = nil
		return nil, fmt.Errorf("%w: id %d", ErrNotSoleSelection, id)
	}
	if s.edit != nil && s.edit.id == id {
		return s.edit, nil
	}
	a := s.find(id)
	if a == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	w, h := a.Segmentation.Width(), a.Segmentation.Height()
	pixels := mask.Decode(a.Segmentation)
	contour := mask.Trace(pixels, w, h)
	if len(contour) < 3 {
		return nil, fmt.Errorf("%w: id %d", ErrDegenerateContour, id)
	}
	simplified := geometry.SimplifyAdaptive(contour, s.maxControlPts)
	// Drop the duplicated closing point; the edit polygon closes implicitly.
	if n := len(simplified); n > 1 && simplified[0] == simplified[n-1] {
		simplified = simplified[:n-1]
	}

	points := make([]ControlPoint, len(simplified))
	for i, p := range simplified {
		points[i] = ControlPoint{X: p.X, Y: p.Y, Index: i}
	}
	s.edit = &EditSession{id: id, points: points, width: w, height: h}
	return s.edit, nil
}

// MoveControlPoint updates one control point position in the active session.
// Nothing is committed to the store until CommitEdit.
func (s *Store) MoveControlPoint(index int, p geometry.Point) error {
	if s.edit == nil {
		return ErrNoEdit
	}
	if index < 0 || index >= len(s.edit.points) {
		return fmt.Errorf("store: control point index %d out of range [0,%d)", index, len(s.edit.points))
	}
	s.edit.points[index].X = p.X
	s.edit.points[index].Y = p.Y
	return nil
}

// CommitEdit rasterizes the edited control polygon back into a mask,
// re-encodes it, recomputes bbox and area, writes the annotation and pushes
// one history snapshot. The session stays active for further edits.
func (s *Store) CommitEdit() error {
	if s.edit == nil {
		return ErrNoEdit
	}
	a := s.find(s.edit.id)
	if a == nil {
		id := s.edit.id
		s.edit = nil
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	polygon := make([]geometry.Point, len(s.edit.points))
	for i, cp := range s.edit.points {
		polygon[i] = geometry.Point{X: cp.X, Y: cp.Y}
	}
	pixels := geometry.Rasterize(polygon, s.edit.width, s.edit.height)
	a.Segmentation = mask.Encode(pixels, s.edit.width, s.edit.height)
	a.recomputeDerived()
	s.pushSnapshot()
	return nil
}

// CancelEdit discards the active edit session without touching the store.
func (s *Store) CancelEdit() {
	s.edit = nil
}

// ActiveEdit returns the active edit session, or nil.
func (s *Store) ActiveEdit() *EditSession { return s.edit }
