package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/lasso/internal/export"
	"github.com/MeKo-Tech/lasso/internal/geometry"
	"github.com/MeKo-Tech/lasso/internal/mask"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// listAnnotationsHandler returns the live annotation collection and the
// history position for an image.
func (s *Server) listAnnotationsHandler(w http.ResponseWriter, r *http.Request) {
	var resp AnnotationListResponse
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		resp = AnnotationListResponse{
			Annotations:  st.Annotations(),
			Count:        st.Len(),
			HistoryLen:   st.HistoryLen(),
			HistoryIndex: st.HistoryIndex(),
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

// addAnnotationsHandler appends one or more annotations as one logical user
// action. Masks are validated at the boundary; the core assumes well-formed
// RLE values.
func (s *Server) addAnnotationsHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	var req AddAnnotationsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Annotations) == 0 {
		writeError(w, "no annotations provided", http.StatusBadRequest)
		return
	}
	for i := range req.Annotations {
		if err := mask.Validate(req.Annotations[i].Segmentation); err != nil {
			writeError(w, fmt.Sprintf("annotation %d: %v", i, err), http.StatusBadRequest)
			return
		}
		req.Annotations[i].ImageID = imageID
	}

	var ids []int
	s.withStore(imageID, func(st *store.Store) {
		if req.DeferSnapshot {
			ids = st.AddBatchWithoutSnapshot(req.Annotations)
		} else {
			ids = st.AddBatch(req.Annotations)
		}
	})
	storeOperationsTotal.WithLabelValues("add").Add(float64(len(ids)))
	s.hub.broadcast(Event{Type: "annotations_added", ImageID: imageID, Payload: ids})
	writeJSON(w, http.StatusOK, AddAnnotationsResponse{IDs: ids})
}

// commitHistoryHandler closes a deferred snapshot boundary opened by an add
// with defer_snapshot.
func (s *Server) commitHistoryHandler(w http.ResponseWriter, r *http.Request) {
	var resp HistoryResponse
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		st.CommitHistory()
		resp = HistoryResponse{Applied: true, HistoryLen: st.HistoryLen(), HistoryIndex: st.HistoryIndex()}
	})
	writeJSON(w, http.StatusOK, resp)
}

func annotationID(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("aid"))
}

// updateAnnotationHandler merges a partial update into one annotation.
func (s *Server) updateAnnotationHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	id, err := annotationID(r)
	if err != nil {
		writeError(w, "Invalid annotation id", http.StatusBadRequest)
		return
	}
	var req UpdateAnnotationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Segmentation != nil {
		if err := mask.Validate(*req.Segmentation); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var updateErr error
	var updated store.Annotation
	s.withStore(imageID, func(st *store.Store) {
		updateErr = st.Update(id, store.Patch{
			CategoryID:   req.CategoryID,
			CategoryName: req.CategoryName,
			Segmentation: req.Segmentation,
			Score:        req.Score,
			Color:        req.Color,
			Visible:      req.Visible,
		})
		if updateErr == nil {
			updated, updateErr = st.Get(id)
		}
	})
	if updateErr != nil {
		s.writeStoreError(w, updateErr)
		return
	}
	storeOperationsTotal.WithLabelValues("update").Inc()
	s.hub.broadcast(Event{Type: "annotation_updated", ImageID: imageID, Payload: id})
	writeJSON(w, http.StatusOK, updated)
}

// deleteAnnotationHandler removes a single annotation.
func (s *Server) deleteAnnotationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := annotationID(r)
	if err != nil {
		writeError(w, "Invalid annotation id", http.StatusBadRequest)
		return
	}
	s.deleteAnnotations(w, r, []int{id})
}

// deleteAnnotationsHandler removes a batch of annotations as one action.
func (s *Server) deleteAnnotationsHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteAnnotationsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, "no annotation ids provided", http.StatusBadRequest)
		return
	}
	s.deleteAnnotations(w, r, req.IDs)
}

func (s *Server) deleteAnnotations(w http.ResponseWriter, r *http.Request, ids []int) {
	imageID := r.PathValue("id")
	s.withStore(imageID, func(st *store.Store) {
		st.Delete(ids...)
	})
	storeOperationsTotal.WithLabelValues("delete").Add(float64(len(ids)))
	s.hub.broadcast(Event{Type: "annotations_deleted", ImageID: imageID, Payload: ids})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ids": ids})
}

// undoHandler steps the history cursor back; a boundary hit is a no-op.
func (s *Server) undoHandler(w http.ResponseWriter, r *http.Request) {
	s.applyHistory(w, r, "undo", func(st *store.Store) bool { return st.Undo() })
}

// redoHandler steps the history cursor forward; a boundary hit is a no-op.
func (s *Server) redoHandler(w http.ResponseWriter, r *http.Request) {
	s.applyHistory(w, r, "redo", func(st *store.Store) bool { return st.Redo() })
}

func (s *Server) applyHistory(w http.ResponseWriter, r *http.Request, op string, step func(*store.Store) bool) {
	imageID := r.PathValue("id")
	var resp HistoryResponse
	s.withStore(imageID, func(st *store.Store) {
		resp = HistoryResponse{
			Applied:      step(st),
			HistoryLen:   st.HistoryLen(),
			HistoryIndex: st.HistoryIndex(),
		}
	})
	if resp.Applied {
		storeOperationsTotal.WithLabelValues(op).Inc()
		s.hub.broadcast(Event{Type: op, ImageID: imageID})
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectHandler updates the selection set; selecting is never a
// history-producing action.
func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var selection []int
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		st.Select(req.ID, req.Multi)
		selection = st.Selection()
	})
	writeJSON(w, http.StatusOK, map[string]any{"selection": selection})
}

func (s *Server) clearSelectionHandler(w http.ResponseWriter, r *http.Request) {
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		st.ClearSelection()
	})
	writeJSON(w, http.StatusOK, map[string]any{"selection": []int{}})
}

// copyHandler places the selected annotations on the clipboard.
func (s *Server) copyHandler(w http.ResponseWriter, r *http.Request) {
	var copied int
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		copied = st.Copy()
	})
	writeJSON(w, http.StatusOK, map[string]any{"copied": copied})
}

// pasteHandler duplicates the clipboard so the combined pixel centroid lands
// on the target point.
func (s *Server) pasteHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	var req PasteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var ids []int
	s.withStore(imageID, func(st *store.Store) {
		ids = st.Paste(geometry.Point{X: req.X, Y: req.Y})
	})
	if len(ids) == 0 {
		writeError(w, "Clipboard is empty or has no foreground", http.StatusConflict)
		return
	}
	storeOperationsTotal.WithLabelValues("paste").Add(float64(len(ids)))
	s.hub.broadcast(Event{Type: "annotations_added", ImageID: imageID, Payload: ids})
	writeJSON(w, http.StatusOK, AddAnnotationsResponse{IDs: ids})
}

// beginEditHandler loads control points for the sole selected annotation.
func (s *Server) beginEditHandler(w http.ResponseWriter, r *http.Request) {
	var req BeginEditRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var session *store.EditSession
	var beginErr error
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		session, beginErr = st.BeginEdit(req.AnnotationID)
	})
	if beginErr != nil {
		s.writeStoreError(w, beginErr)
		return
	}
	writeJSON(w, http.StatusOK, ControlPointsResponse{
		AnnotationID:  session.ID(),
		ControlPoints: session.ControlPoints(),
	})
}

// moveControlPointHandler updates one dragged control point. Nothing reaches
// the store or the history until commit.
func (s *Server) moveControlPointHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveControlPointRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var moveErr error
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		moveErr = st.MoveControlPoint(req.Index, geometry.Point{X: req.X, Y: req.Y})
	})
	if moveErr != nil {
		s.writeStoreError(w, moveErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// commitEditHandler rasterizes the edited polygon back into the annotation
// and snapshots history, exactly once per drag release.
func (s *Server) commitEditHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	var commitErr error
	var updated store.Annotation
	s.withStore(imageID, func(st *store.Store) {
		commitErr = st.CommitEdit()
		if commitErr == nil {
			if edit := st.ActiveEdit(); edit != nil {
				updated, commitErr = st.Get(edit.ID())
			}
		}
	})
	if commitErr != nil {
		s.writeStoreError(w, commitErr)
		return
	}
	storeOperationsTotal.WithLabelValues("edit_commit").Inc()
	s.hub.broadcast(Event{Type: "annotation_updated", ImageID: imageID, Payload: updated.ID})
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) cancelEditHandler(w http.ResponseWriter, r *http.Request) {
	s.withStore(r.PathValue("id"), func(st *store.Store) {
		st.CancelEdit()
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// exportHandler converts every image's annotations into one COCO document.
func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := s.buildExport(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=annotations_coco.json")
	writeJSON(w, http.StatusOK, doc)
}

// validateExportHandler checks the export without downloading it.
func (s *Server) validateExportHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := s.buildExport(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	errs := export.Validate(doc)
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:  len(errs) == 0,
		Errors: errs,
		Summary: ValidateSummary{
			Images:      len(doc.Images),
			Annotations: len(doc.Annotations),
			Categories:  len(doc.Categories),
		},
	})
}

func (s *Server) buildExport(r *http.Request) (export.COCO, error) {
	var req ExportRequest
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return export.COCO{}, errors.New("invalid request body")
	}
	images := s.registry.List()
	var annotations []store.Annotation
	for _, img := range images {
		s.withStore(img.ID, func(st *store.Store) {
			annotations = append(annotations, st.Annotations()...)
		})
	}
	return export.ToCOCO(images, req.Categories, annotations, export.Options{
		WithPolygons: req.WithPolygons,
	}), nil
}

// writeStoreError maps store errors onto HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrNotSoleSelection),
		errors.Is(err, store.ErrNoEdit),
		errors.Is(err, store.ErrDegenerateContour):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}
