package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// New creates an annotation server around an image registry and a
// segmentation client.
func New(cfg Config, registry *imagestore.Registry, seg segmenter) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 0.5
	}
	if cfg.MaxControlPoints <= 0 {
		cfg.MaxControlPoints = 16
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	return &Server{
		registry:         registry,
		segmenter:        seg,
		stores:           make(map[string]*store.Store),
		hub:              newHub(),
		corsOrigin:       cfg.CORSOrigin,
		maxUploadMB:      cfg.MaxUploadMB,
		defaultThreshold: cfg.DefaultThreshold,
		maxControlPoints: cfg.MaxControlPoints,
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.withMiddleware("/health", s.healthHandler))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.eventsHandler)

	mux.HandleFunc("POST /api/images", s.withMiddleware("/api/images", s.uploadImageHandler))
	mux.HandleFunc("POST /api/images/register", s.withMiddleware("/api/images/register", s.registerImageHandler))
	mux.HandleFunc("GET /api/images", s.withMiddleware("/api/images", s.listImagesHandler))
	mux.HandleFunc("GET /api/images/{id}", s.withMiddleware("/api/images/{id}", s.getImageHandler))
	mux.HandleFunc("GET /api/images/{id}/thumbnail", s.withMiddleware("/api/images/{id}/thumbnail", s.thumbnailHandler))
	mux.HandleFunc("GET /api/images/{id}/overlay", s.withMiddleware("/api/images/{id}/overlay", s.overlayHandler))
	mux.HandleFunc("DELETE /api/images/{id}", s.withMiddleware("/api/images/{id}", s.deleteImageHandler))

	mux.HandleFunc("POST /api/images/{id}/segment/text", s.withMiddleware("/segment/text", s.segmentTextHandler))
	mux.HandleFunc("POST /api/images/{id}/segment/points", s.withMiddleware("/segment/points", s.segmentPointsHandler))
	mux.HandleFunc("POST /api/images/{id}/segment/box", s.withMiddleware("/segment/box", s.segmentBoxHandler))
	mux.HandleFunc("POST /api/images/{id}/segment/template", s.withMiddleware("/segment/template", s.segmentTemplateHandler))
	mux.HandleFunc("POST /api/images/{id}/segment/reset-mask", s.withMiddleware("/segment/reset-mask", s.resetMaskHandler))
	mux.HandleFunc("POST /api/images/{id}/reset", s.withMiddleware("/reset", s.resetPromptsHandler))

	mux.HandleFunc("GET /api/images/{id}/annotations", s.withMiddleware("/annotations", s.listAnnotationsHandler))
	mux.HandleFunc("POST /api/images/{id}/annotations", s.withMiddleware("/annotations", s.addAnnotationsHandler))
	mux.HandleFunc("PATCH /api/images/{id}/annotations/{aid}", s.withMiddleware("/annotations/{aid}", s.updateAnnotationHandler))
	mux.HandleFunc("DELETE /api/images/{id}/annotations/{aid}", s.withMiddleware("/annotations/{aid}", s.deleteAnnotationHandler))
	mux.HandleFunc("POST /api/images/{id}/annotations/delete", s.withMiddleware("/annotations/delete", s.deleteAnnotationsHandler))
	mux.HandleFunc("POST /api/images/{id}/history/commit", s.withMiddleware("/history/commit", s.commitHistoryHandler))
	mux.HandleFunc("POST /api/images/{id}/undo", s.withMiddleware("/undo", s.undoHandler))
	mux.HandleFunc("POST /api/images/{id}/redo", s.withMiddleware("/redo", s.redoHandler))
	mux.HandleFunc("POST /api/images/{id}/select", s.withMiddleware("/select", s.selectHandler))
	mux.HandleFunc("POST /api/images/{id}/selection/clear", s.withMiddleware("/selection/clear", s.clearSelectionHandler))
	mux.HandleFunc("POST /api/images/{id}/copy", s.withMiddleware("/copy", s.copyHandler))
	mux.HandleFunc("POST /api/images/{id}/paste", s.withMiddleware("/paste", s.pasteHandler))

	mux.HandleFunc("POST /api/images/{id}/edit/begin", s.withMiddleware("/edit/begin", s.beginEditHandler))
	mux.HandleFunc("POST /api/images/{id}/edit/move", s.withMiddleware("/edit/move", s.moveControlPointHandler))
	mux.HandleFunc("POST /api/images/{id}/edit/commit", s.withMiddleware("/edit/commit", s.commitEditHandler))
	mux.HandleFunc("POST /api/images/{id}/edit/cancel", s.withMiddleware("/edit/cancel", s.cancelEditHandler))

	mux.HandleFunc("POST /api/export/coco", s.withMiddleware("/export/coco", s.exportHandler))
	mux.HandleFunc("POST /api/export/coco/validate", s.withMiddleware("/export/coco/validate", s.validateExportHandler))

	// CORS preflight for every route; withMiddleware answers OPTIONS itself.
	mux.HandleFunc("OPTIONS /", s.withMiddleware("/preflight", func(http.ResponseWriter, *http.Request) {}))

	return mux
}

// withStore runs fn with exclusive access to the image's store. The core
// engine is single-threaded; this is the serialization point.
func (s *Server) withStore(imageID string, fn func(st *store.Store)) {
	s.storeMu.Lock()
	st, ok := s.stores[imageID]
	if !ok {
		st = store.New(store.WithMaxControlPoints(s.maxControlPoints))
		s.stores[imageID] = st
	}
	fn(st)
	s.updateLiveGauge()
	s.storeMu.Unlock()
}

// dropStore removes the annotation store for a deleted image.
func (s *Server) dropStore(imageID string) {
	s.storeMu.Lock()
	delete(s.stores, imageID)
	s.updateLiveGauge()
	s.storeMu.Unlock()
}

// updateLiveGauge recounts live annotations. Called with storeMu held.
func (s *Server) updateLiveGauge() {
	total := 0
	for _, st := range s.stores {
		total += st.Len()
	}
	annotationsLive.Set(float64(total))
}
