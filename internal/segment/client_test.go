package segment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lasso/internal/mask"
)

func validResult() Result {
	return Result{
		MaskRLE: mask.RLE{Counts: []int{2, 2}, Size: [2]int{2, 2}},
		Box:     [4]float64{0, 1, 2, 2},
		Score:   0.91,
		Area:    2,
	}
}

func newBackend(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)
	return srv, client
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:8100", time.Second)
	assert.Error(t, err)

	_, err = NewClient("/api/annotation", time.Second)
	assert.Error(t, err)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient("http://localhost:8100/api/annotation/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8100/api/annotation", c.baseURL)
}

func TestSegmentText(t *testing.T) {
	var gotPath string
	var gotBody textPromptRequest
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(segmentationResponse{
			ImageID: "img-1",
			Results: []Result{validResult()},
		})
	})

	results, err := client.SegmentText(context.Background(), "img-1", "red car", 0.6)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.91, results[0].Score)

	assert.Equal(t, "/segment/text", gotPath)
	assert.Equal(t, "img-1", gotBody.ImageID)
	assert.Equal(t, "red car", gotBody.Prompt)
	assert.Equal(t, 0.6, gotBody.ConfidenceThreshold)
}

func TestSegmentText_NormalizesPrompt(t *testing.T) {
	var gotBody textPromptRequest
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(segmentationResponse{})
	})

	// "é" as 'e' + combining accent must arrive NFC-composed.
	_, err := client.SegmentText(context.Background(), "img-1", "café", 0.5)
	require.NoError(t, err)
	assert.Equal(t, "café", gotBody.Prompt)
}

func TestSegment_DropsMalformedMasks(t *testing.T) {
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		bad := validResult()
		bad.MaskRLE.Counts = []int{1, 1} // sums to 2, canvas is 4
		_ = json.NewEncoder(w).Encode(segmentationResponse{
			Results: []Result{validResult(), bad, validResult()},
		})
	})

	results, err := client.SegmentText(context.Background(), "img-1", "cat", 0.5)
	require.NoError(t, err)
	assert.Len(t, results, 2, "the malformed result is dropped, valid ones kept")
}

func TestSegmentPoints(t *testing.T) {
	var gotBody pointPromptRequest
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(segmentationResponse{Results: []Result{validResult()}})
	})

	pts := []PromptPoint{{X: 10, Y: 20, Label: 1}, {X: 30, Y: 40, Label: 0}}
	_, err := client.SegmentPoints(context.Background(), "img-1", pts, 0.5, true)
	require.NoError(t, err)
	assert.Equal(t, pts, gotBody.Points)
	assert.True(t, gotBody.ResetMask)
}

func TestSegmentBox(t *testing.T) {
	var gotBody boxPromptRequest
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(segmentationResponse{Results: []Result{validResult()}})
	})

	box := PromptBox{X1: 1, Y1: 2, X2: 30, Y2: 40}
	_, err := client.SegmentBox(context.Background(), "img-1", box, true, 0.7)
	require.NoError(t, err)
	assert.Equal(t, box, gotBody.Box)
	assert.True(t, gotBody.Label)
}

func TestSegmentTemplate(t *testing.T) {
	var gotBody templatePromptRequest
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(segmentationResponse{Results: []Result{validResult()}})
	})

	box := PromptBox{X1: 5, Y1: 5, X2: 15, Y2: 15}
	_, err := client.SegmentTemplate(context.Background(), "img-2", "img-1", box, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "img-2", gotBody.ImageID)
	assert.Equal(t, "img-1", gotBody.TemplateImageID)
	assert.Equal(t, box, gotBody.TemplateBox)
}

func TestResetEndpoints(t *testing.T) {
	var paths []string
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.ResetMask(context.Background(), "img-1"))
	require.NoError(t, client.ResetPrompts(context.Background(), "img-1"))
	assert.Equal(t, []string{"/segment/reset-mask/img-1", "/reset/img-1"}, paths)
}

func TestRegisterImage(t *testing.T) {
	var gotBody registerImageRequest
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := client.RegisterImage(context.Background(), "img-1", "cat.jpg", "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "img-1", gotBody.ImageID)
	assert.Equal(t, "cat.jpg", gotBody.FileName)
}

func TestSegment_BackendError(t *testing.T) {
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := client.SegmentText(context.Background(), "img-1", "cat", 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestSegment_ContextCancelled(t *testing.T) {
	_, client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(segmentationResponse{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.SegmentText(ctx, "img-1", "cat", 0.5)
	assert.Error(t, err)
}
