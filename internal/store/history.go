package store

import "time"

// snapshot is one entry in the linear undo/redo timeline: a deep copy of the
// full annotation collection. A stored snapshot is never mutated afterwards.
type snapshot struct {
	annotations []Annotation
	takenAt     time.Time
}

// pushSnapshot records the current annotation collection, discarding any
// entries past the cursor first (standard undo-branch pruning).
func (s *Store) pushSnapshot() {
	if s.historyIndex+1 < len(s.history) {
		s.history = s.history[:s.historyIndex+1]
	}
	s.history = append(s.history, snapshot{
		annotations: cloneAnnotations(s.annotations),
		takenAt:     time.Now(),
	})
	s.historyIndex = len(s.history) - 1
}

// Undo moves the history cursor back one entry and restores that snapshot.
// Selection is not restorable state and is cleared. Returns false at the
// history boundary (silent no-op).
func (s *Store) Undo() bool {
	if s.historyIndex <= 0 {
		return false
	}
	s.historyIndex--
	s.restoreSnapshot()
	return true
}

// Redo moves the history cursor forward one entry and restores that snapshot.
// Returns false at the history boundary (silent no-op).
func (s *Store) Redo() bool {
	if s.historyIndex+1 >= len(s.history) {
		return false
	}
	s.historyIndex++
	s.restoreSnapshot()
	return true
}

func (s *Store) restoreSnapshot() {
	s.annotations = cloneAnnotations(s.history[s.historyIndex].annotations)
	s.clearSelection()
	s.edit = nil
}

// CanUndo reports whether an undo step is available.
func (s *Store) CanUndo() bool { return s.historyIndex > 0 }

// CanRedo reports whether a redo step is available.
func (s *Store) CanRedo() bool { return s.historyIndex+1 < len(s.history) }

// HistoryLen returns the number of snapshots in the timeline.
func (s *Store) HistoryLen() int { return len(s.history) }

// HistoryIndex returns the current cursor position, or -1 for empty history.
func (s *Store) HistoryIndex() int { return s.historyIndex }
