package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandFlags(t *testing.T) {
	flags := serveCmd.Flags()

	tests := []struct {
		name     string
		flagType string
	}{
		{"host", "string"},
		{"port", "int"},
		{"cors-origin", "string"},
		{"max-upload-size", "int64"}, // matches config MaxUploadMB
		{"timeout", "int"},
		{"shutdown-timeout", "int"},
		{"segmenter-url", "string"},
		{"segmenter-timeout", "int"},
		{"confidence-threshold", "float64"},
		{"max-control-points", "int"},
	}
	for _, tt := range tests {
		flag := flags.Lookup(tt.name)
		require.NotNil(t, flag, "flag %q not registered", tt.name)
		assert.Equal(t, tt.flagType, flag.Value.Type(), "flag %q", tt.name)
	}
}

func TestServeCommandHelpListsRealRoutes(t *testing.T) {
	assert.Contains(t, serveCmd.Long, "POST /api/images/{id}/undo")
	assert.NotContains(t, serveCmd.Long, "history/undo")
}
