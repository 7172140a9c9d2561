package segment

import (
	"github.com/MeKo-Tech/lasso/internal/mask"
)

// Wire types for the external segmentation service. The shapes mirror the
// service's JSON API and must not be reordered: mask sizes stay [height,
// width] and counts stay background-first.

// PromptPoint is a prompt point in image pixel coordinates; label 1 is
// positive, 0 is negative.
type PromptPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label int     `json:"label"`
}

// PromptBox is a prompt box as two corners in image pixel coordinates.
type PromptBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type textPromptRequest struct {
	ImageID             string  `json:"image_id"`
	Prompt              string  `json:"prompt"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type pointPromptRequest struct {
	ImageID             string        `json:"image_id"`
	Points              []PromptPoint `json:"points"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	ResetMask           bool          `json:"reset_mask"`
}

type boxPromptRequest struct {
	ImageID             string    `json:"image_id"`
	Box                 PromptBox `json:"box"`
	Label               bool      `json:"label"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
}

type templatePromptRequest struct {
	ImageID             string    `json:"image_id"`
	TemplateImageID     string    `json:"template_image_id"`
	TemplateBox         PromptBox `json:"template_box"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
}

type registerImageRequest struct {
	ImageID   string `json:"image_id"`
	FileName  string `json:"file_name"`
	ImageData string `json:"image_data"` // data:image/...;base64,... URL
}

// Result is one segmentation proposal: an RLE mask with its extent box,
// confidence score, and foreground pixel count.
type Result struct {
	MaskRLE mask.RLE   `json:"mask_rle"`
	Box     [4]float64 `json:"box"` // x1, y1, x2, y2
	Score   float64    `json:"score"`
	Area    int        `json:"area"`
}

type segmentationResponse struct {
	ImageID string   `json:"image_id"`
	Results []Result `json:"results"`
}
