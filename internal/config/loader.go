package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "lasso"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LASSO"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
// It uses the global viper instance so cobra flag bindings take effect.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// SetConfigFile instructs the loader to read a specific config file instead
// of searching the default paths.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

func (l *Loader) load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine, we fall back to defaults and env vars.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
		l.v.AddConfigPath(filepath.Join(home, ".config", "lasso"))
	}
	l.v.AddConfigPath("/etc/lasso")
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log_level", "info")
	l.v.SetDefault("verbose", false)

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors_origin", "*")
	l.v.SetDefault("server.max_upload_mb", int64(50))
	l.v.SetDefault("server.timeout", 120)
	l.v.SetDefault("server.shutdown_timeout", 10)

	l.v.SetDefault("segmenter.base_url", "http://localhost:8100/api/annotation")
	l.v.SetDefault("segmenter.timeout", 60)
	l.v.SetDefault("segmenter.confidence_threshold", 0.5)

	l.v.SetDefault("editor.max_control_points", 16)

	l.v.SetDefault("export.with_polygons", false)
	l.v.SetDefault("export.polygon_max_points", 20)
}
