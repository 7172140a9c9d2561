package server

import (
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofrs/uuid"

	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/render"
	"github.com/MeKo-Tech/lasso/internal/segment"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// uploadImageHandler accepts a multipart image upload, registers it locally
// and with the segmentation backend, and returns its metadata plus a display
// data URL.
func (s *Server) uploadImageHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		writeError(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	img, err := imagestore.Decode(data)
	if err != nil {
		writeError(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	id, err := uuid.NewV4()
	if err != nil {
		writeError(w, "Failed to generate image id", http.StatusInternalServerError)
		return
	}
	info := s.registry.Register(id.String(), header.Filename, img)

	dataURL, err := s.registry.DataURL(info.ID)
	if err != nil {
		writeError(w, "Failed to encode image", http.StatusInternalServerError)
		return
	}
	if err := s.registerWithBackend(r, info, dataURL); err != nil {
		slog.Warn("Backend image registration failed", "image_id", info.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, ImageResponse{Info: info, ImageURL: dataURL})
}

// registerImageHandler registers an image from a base64 data URL, the path
// used for images already loaded by an external tool.
func (s *Server) registerImageHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterImageRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ImageID == "" {
		writeError(w, "image_id is required", http.StatusBadRequest)
		return
	}
	info, err := s.registry.RegisterDataURL(req.ImageID, req.FileName, req.ImageData)
	if err != nil {
		writeError(w, fmt.Sprintf("Failed to register image: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.registerWithBackend(r, info, req.ImageData); err != nil {
		slog.Warn("Backend image registration failed", "image_id", info.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) registerWithBackend(r *http.Request, info imagestore.Info, dataURL string) error {
	if s.segmenter == nil {
		return nil
	}
	return s.segmenter.RegisterImage(r.Context(), info.ID, info.FileName, dataURL)
}

// listImagesHandler lists registered images.
func (s *Server) listImagesHandler(w http.ResponseWriter, r *http.Request) {
	images := s.registry.List()
	writeJSON(w, http.StatusOK, ImageListResponse{Images: images, Count: len(images)})
}

// getImageHandler serves the image as JPEG for display.
func (s *Server) getImageHandler(w http.ResponseWriter, r *http.Request) {
	data, err := s.registry.JPEG(r.PathValue("id"))
	if err != nil {
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

// thumbnailHandler serves a small JPEG preview.
func (s *Server) thumbnailHandler(w http.ResponseWriter, r *http.Request) {
	data, err := s.registry.Thumbnail(r.PathValue("id"), 256)
	if err != nil {
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

// overlayHandler renders the image with its visible annotations as PNG.
func (s *Server) overlayHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	img, err := s.registry.Get(imageID)
	if err != nil {
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	var annotations []store.Annotation
	s.withStore(imageID, func(st *store.Store) {
		annotations = st.Annotations()
	})
	overlay := render.Overlay(img, annotations, render.DefaultOptions())
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, overlay); err != nil {
		slog.Error("Failed to encode overlay", "image_id", imageID, "error", err)
	}
}

// deleteImageHandler removes an image and every annotation owned by it.
func (s *Server) deleteImageHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	if _, err := s.registry.GetInfo(imageID); err != nil {
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	s.registry.Remove(imageID)
	s.dropStore(imageID)
	s.hub.broadcast(Event{Type: "image_deleted", ImageID: imageID})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "image_id": imageID})
}

// threshold resolves the effective confidence threshold for a request.
func (s *Server) threshold(override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.defaultThreshold
}

func (s *Server) segmentTextHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	var req SegmentTextRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		writeError(w, "prompt is required", http.StatusBadRequest)
		return
	}
	s.proxySegment(w, r, imageID, "text", func() ([]segment.Result, error) {
		return s.segmenter.SegmentText(r.Context(), imageID, req.Prompt, s.threshold(req.ConfidenceThreshold))
	})
}

func (s *Server) segmentPointsHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	var req SegmentPointsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Points) == 0 {
		writeError(w, "at least one point is required", http.StatusBadRequest)
		return
	}
	s.proxySegment(w, r, imageID, "points", func() ([]segment.Result, error) {
		return s.segmenter.SegmentPoints(r.Context(), imageID, req.Points, s.threshold(req.ConfidenceThreshold), req.ResetMask)
	})
}

func (s *Server) segmentBoxHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	var req SegmentBoxRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	positive := true
	if req.Label != nil {
		positive = *req.Label
	}
	s.proxySegment(w, r, imageID, "box", func() ([]segment.Result, error) {
		return s.segmenter.SegmentBox(r.Context(), imageID, req.Box, positive, s.threshold(req.ConfidenceThreshold))
	})
}

func (s *Server) segmentTemplateHandler(w http.ResponseWriter, r *http.Request) {
	imageID := r.PathValue("id")
	var req SegmentTemplateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TemplateImageID == "" {
		writeError(w, "template_image_id is required", http.StatusBadRequest)
		return
	}
	s.proxySegment(w, r, imageID, "template", func() ([]segment.Result, error) {
		return s.segmenter.SegmentTemplate(r.Context(), imageID, req.TemplateImageID, req.TemplateBox, s.threshold(req.ConfidenceThreshold))
	})
}

// proxySegment runs a segmentation call with metrics and uniform error
// handling. Stale responses for images the user navigated away from are the
// frontend's concern; the server just relays.
func (s *Server) proxySegment(w http.ResponseWriter, r *http.Request, imageID, prompt string, call func() ([]segment.Result, error)) {
	if s.segmenter == nil {
		writeError(w, "Segmentation backend not configured", http.StatusServiceUnavailable)
		return
	}
	if _, err := s.registry.GetInfo(imageID); err != nil {
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	start := time.Now()
	results, err := call()
	segmentDuration.WithLabelValues(prompt).Observe(time.Since(start).Seconds())
	if err != nil {
		segmentRequestsTotal.WithLabelValues(prompt, "error").Inc()
		slog.Error("Segmentation request failed", "prompt", prompt, "image_id", imageID, "error", err)
		writeError(w, fmt.Sprintf("Segmentation failed: %v", err), http.StatusBadGateway)
		return
	}
	segmentRequestsTotal.WithLabelValues(prompt, "ok").Inc()
	writeJSON(w, http.StatusOK, SegmentResponse{ImageID: imageID, Results: results})
}

func (s *Server) resetMaskHandler(w http.ResponseWriter, r *http.Request) {
	s.backendReset(w, r, func(imageID string) error {
		return s.segmenter.ResetMask(r.Context(), imageID)
	})
}

func (s *Server) resetPromptsHandler(w http.ResponseWriter, r *http.Request) {
	s.backendReset(w, r, func(imageID string) error {
		return s.segmenter.ResetPrompts(r.Context(), imageID)
	})
}

func (s *Server) backendReset(w http.ResponseWriter, r *http.Request, call func(imageID string) error) {
	if s.segmenter == nil {
		writeError(w, "Segmentation backend not configured", http.StatusServiceUnavailable)
		return
	}
	imageID := r.PathValue("id")
	if err := call(imageID); err != nil {
		writeError(w, fmt.Sprintf("Reset failed: %v", err), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "image_id": imageID})
}
