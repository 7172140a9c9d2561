package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/lasso/internal/mask"
)

// Client talks to the external segmentation service. The engine never blocks
// on this client from the core; callers await results and hand finished masks
// to the store.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a segmentation client for the given base URL
// (e.g. "http://localhost:8100/api/annotation").
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("segment: invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("segment: base URL %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// SegmentText requests segmentation for a free-text prompt. The prompt is
// NFC-normalized before sending so visually identical prompts hit the same
// backend cache entries.
func (c *Client) SegmentText(ctx context.Context, imageID, prompt string, threshold float64) ([]Result, error) {
	req := textPromptRequest{
		ImageID:             imageID,
		Prompt:              norm.NFC.String(prompt),
		ConfidenceThreshold: threshold,
	}
	return c.segment(ctx, "/segment/text", req)
}

// SegmentPoints requests segmentation for labeled point prompts. With
// resetMask the backend starts fresh instead of refining its previous mask.
func (c *Client) SegmentPoints(ctx context.Context, imageID string, points []PromptPoint, threshold float64, resetMask bool) ([]Result, error) {
	req := pointPromptRequest{
		ImageID:             imageID,
		Points:              points,
		ConfidenceThreshold: threshold,
		ResetMask:           resetMask,
	}
	return c.segment(ctx, "/segment/points", req)
}

// SegmentBox requests segmentation for a box prompt.
func (c *Client) SegmentBox(ctx context.Context, imageID string, box PromptBox, positive bool, threshold float64) ([]Result, error) {
	req := boxPromptRequest{
		ImageID:             imageID,
		Box:                 box,
		Label:               positive,
		ConfidenceThreshold: threshold,
	}
	return c.segment(ctx, "/segment/box", req)
}

// SegmentTemplate requests segmentation using a region of another image as a
// visual exemplar.
func (c *Client) SegmentTemplate(ctx context.Context, imageID, templateImageID string, templateBox PromptBox, threshold float64) ([]Result, error) {
	req := templatePromptRequest{
		ImageID:             imageID,
		TemplateImageID:     templateImageID,
		TemplateBox:         templateBox,
		ConfidenceThreshold: threshold,
	}
	return c.segment(ctx, "/segment/template", req)
}

// RegisterImage registers an image with the backend from a base64 data URL so
// prompts can reference it without a separate upload.
func (c *Client) RegisterImage(ctx context.Context, imageID, fileName, dataURL string) error {
	req := registerImageRequest{ImageID: imageID, FileName: fileName, ImageData: dataURL}
	_, err := c.post(ctx, "/register-image", req)
	return err
}

// ResetMask clears the backend's mask-refinement state for an image. Called
// when a new annotation is started.
func (c *Client) ResetMask(ctx context.Context, imageID string) error {
	_, err := c.post(ctx, "/segment/reset-mask/"+url.PathEscape(imageID), nil)
	return err
}

// ResetPrompts clears all prompts for an image on the backend.
func (c *Client) ResetPrompts(ctx context.Context, imageID string) error {
	_, err := c.post(ctx, "/reset/"+url.PathEscape(imageID), nil)
	return err
}

func (c *Client) segment(ctx context.Context, path string, req any) ([]Result, error) {
	body, err := c.post(ctx, path, req)
	if err != nil {
		return nil, err
	}
	var resp segmentationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("segment: decoding response: %w", err)
	}
	// Validate masks at the trust boundary; the core assumes well-formed RLE.
	valid := resp.Results[:0]
	for _, res := range resp.Results {
		if err := mask.Validate(res.MaskRLE); err != nil {
			slog.Warn("Dropping malformed segmentation result", "error", err)
			continue
		}
		valid = append(valid, res)
	}
	return valid, nil
}

func (c *Client) post(ctx context.Context, path string, req any) ([]byte, error) {
	var reader io.Reader
	if req != nil {
		payload, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("segment: encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("segment: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("segment: calling %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("segment: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("segment: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
