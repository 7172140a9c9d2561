package config

import (
	"fmt"

	"github.com/MeKo-Tech/lasso/internal/geometry"
)

// Config represents the complete configuration for the lasso annotation
// service. It supports loading from configuration files, environment
// variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// HTTP server settings
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Segmentation backend settings
	Segmenter SegmenterConfig `mapstructure:"segmenter" yaml:"segmenter" json:"segmenter"`

	// Interactive editing settings
	Editor EditorConfig `mapstructure:"editor" yaml:"editor" json:"editor"`

	// Export settings
	Export ExportConfig `mapstructure:"export" yaml:"export" json:"export"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// SegmenterConfig contains settings for the external segmentation service.
type SegmenterConfig struct {
	BaseURL             string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	TimeoutSec          int     `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
}

// EditorConfig contains interactive mask-editing settings.
type EditorConfig struct {
	MaxControlPoints int `mapstructure:"max_control_points" yaml:"max_control_points" json:"max_control_points"`
}

// ExportConfig contains COCO export settings.
type ExportConfig struct {
	WithPolygons     bool `mapstructure:"with_polygons" yaml:"with_polygons" json:"with_polygons"`
	PolygonMaxPoints int  `mapstructure:"polygon_max_points" yaml:"polygon_max_points" json:"polygon_max_points"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Segmenter.ConfidenceThreshold < 0 || c.Segmenter.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %g", c.Segmenter.ConfidenceThreshold)
	}
	if c.Editor.MaxControlPoints < geometry.MinControlPoints {
		return fmt.Errorf("max_control_points must be at least %d, got %d",
			geometry.MinControlPoints, c.Editor.MaxControlPoints)
	}
	return nil
}
