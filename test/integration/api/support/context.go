// Package support provides the godog test context and step definitions for
// the annotation API integration suite. The server runs in-process behind
// an httptest listener with no segmentation backend attached.
package support

import (
	"encoding/json"
	"net/http/httptest"

	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/server"
)

// TestContext holds the state shared between steps of one scenario.
type TestContext struct {
	HTTPServer *httptest.Server
	Registry   *imagestore.Registry

	ImageID      string
	AddedIDs     []int
	CanvasWidth  int
	CanvasHeight int

	LastStatusCode int
	LastBody       []byte
}

// NewTestContext starts a fresh in-process annotation server.
func NewTestContext() (*TestContext, error) {
	registry := imagestore.NewRegistry()
	srv := server.New(server.Config{}, registry, nil)
	return &TestContext{
		HTTPServer: httptest.NewServer(srv.Handler()),
		Registry:   registry,
	}, nil
}

// Cleanup tears down the scenario's server.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	return nil
}

func (testCtx *TestContext) lastJSON(v any) error {
	return json.Unmarshal(testCtx.LastBody, v)
}
