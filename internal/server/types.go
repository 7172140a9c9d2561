package server

import (
	"context"
	"sync"

	"github.com/MeKo-Tech/lasso/internal/export"
	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/mask"
	"github.com/MeKo-Tech/lasso/internal/segment"
	"github.com/MeKo-Tech/lasso/internal/store"
)

// segmenter defines the calls the server needs from the segmentation client.
type segmenter interface {
	SegmentText(ctx context.Context, imageID, prompt string, threshold float64) ([]segment.Result, error)
	SegmentPoints(ctx context.Context, imageID string, points []segment.PromptPoint, threshold float64, resetMask bool) ([]segment.Result, error)
	SegmentBox(ctx context.Context, imageID string, box segment.PromptBox, positive bool, threshold float64) ([]segment.Result, error)
	SegmentTemplate(ctx context.Context, imageID, templateImageID string, templateBox segment.PromptBox, threshold float64) ([]segment.Result, error)
	ResetMask(ctx context.Context, imageID string) error
	ResetPrompts(ctx context.Context, imageID string) error
	RegisterImage(ctx context.Context, imageID, fileName, dataURL string) error
}

// Server holds the HTTP server state and dependencies. Each image gets its
// own annotation store; the engine itself is single-threaded, so all store
// access is serialized by storeMu.
type Server struct {
	registry  *imagestore.Registry
	segmenter segmenter

	storeMu sync.Mutex
	stores  map[string]*store.Store

	hub *hub

	corsOrigin       string
	maxUploadMB      int64
	defaultThreshold float64
	maxControlPoints int
}

// Config holds server configuration.
type Config struct {
	CORSOrigin       string
	MaxUploadMB      int64
	DefaultThreshold float64
	MaxControlPoints int
}

// Response types for API endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type ImageResponse struct {
	imagestore.Info
	ImageURL string `json:"image_url,omitempty"`
}

type ImageListResponse struct {
	Images []imagestore.Info `json:"images"`
	Count  int               `json:"count"`
}

type RegisterImageRequest struct {
	ImageID   string `json:"image_id"`
	FileName  string `json:"file_name"`
	ImageData string `json:"image_data"`
}

type SegmentTextRequest struct {
	Prompt              string   `json:"prompt"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

type SegmentPointsRequest struct {
	Points              []segment.PromptPoint `json:"points"`
	ConfidenceThreshold *float64              `json:"confidence_threshold,omitempty"`
	ResetMask           bool                  `json:"reset_mask"`
}

type SegmentBoxRequest struct {
	Box                 segment.PromptBox `json:"box"`
	Label               *bool             `json:"label,omitempty"`
	ConfidenceThreshold *float64          `json:"confidence_threshold,omitempty"`
}

type SegmentTemplateRequest struct {
	TemplateImageID     string            `json:"template_image_id"`
	TemplateBox         segment.PromptBox `json:"template_box"`
	ConfidenceThreshold *float64          `json:"confidence_threshold,omitempty"`
}

type SegmentResponse struct {
	ImageID string           `json:"image_id"`
	Results []segment.Result `json:"results"`
}

type AnnotationListResponse struct {
	Annotations  []store.Annotation `json:"annotations"`
	Count        int                `json:"count"`
	HistoryLen   int                `json:"history_len"`
	HistoryIndex int                `json:"history_index"`
}

type AddAnnotationsRequest struct {
	Annotations []store.Annotation `json:"annotations"`
	// DeferSnapshot delays the history snapshot; the caller must follow up
	// with POST .../history/commit before the next state read.
	DeferSnapshot bool `json:"defer_snapshot"`
}

type AddAnnotationsResponse struct {
	IDs []int `json:"ids"`
}

type UpdateAnnotationRequest struct {
	CategoryID   *int      `json:"category_id,omitempty"`
	CategoryName *string   `json:"category_name,omitempty"`
	Segmentation *mask.RLE `json:"segmentation,omitempty"`
	Score        *float64  `json:"score,omitempty"`
	Color        *string   `json:"color,omitempty"`
	Visible      *bool     `json:"visible,omitempty"`
}

type DeleteAnnotationsRequest struct {
	IDs []int `json:"ids"`
}

type SelectRequest struct {
	ID    int  `json:"id"`
	Multi bool `json:"multi"`
}

type HistoryResponse struct {
	Applied      bool `json:"applied"`
	HistoryLen   int  `json:"history_len"`
	HistoryIndex int  `json:"history_index"`
}

type PasteRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type BeginEditRequest struct {
	AnnotationID int `json:"annotation_id"`
}

type ControlPointsResponse struct {
	AnnotationID  int                  `json:"annotation_id"`
	ControlPoints []store.ControlPoint `json:"control_points"`
}

type MoveControlPointRequest struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type ExportRequest struct {
	Categories   []export.Category `json:"categories"`
	WithPolygons bool              `json:"with_polygons"`
}

type ValidateResponse struct {
	Valid   bool            `json:"valid"`
	Errors  []string        `json:"errors"`
	Summary ValidateSummary `json:"summary"`
}

type ValidateSummary struct {
	Images      int `json:"images"`
	Annotations int `json:"annotations"`
	Categories  int `json:"categories"`
}
