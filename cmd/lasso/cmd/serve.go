package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/lasso/internal/imagestore"
	"github.com/MeKo-Tech/lasso/internal/segment"
	"github.com/MeKo-Tech/lasso/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the annotation HTTP server",
	Long: `Start an HTTP server that provides REST API endpoints for image upload,
mask annotation editing and segmentation prompting.

The server provides the following endpoints:
  POST /api/images                       - Upload an image
  POST /api/images/{id}/segment/text     - Segment by text prompt
  GET  /api/images/{id}/annotations      - List annotations
  POST /api/images/{id}/undo             - Undo the last action
  POST /api/export/coco                  - Export all annotations as COCO
  GET  /health                           - Health check endpoint

Examples:
  lasso serve
  lasso serve --port 8080
  lasso serve --host 0.0.0.0 --segmenter-url http://sam:8100/api/annotation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt64("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		segmenterURL := cfg.Segmenter.BaseURL
		if cmd.Flags().Changed("segmenter-url") {
			segmenterURL, _ = cmd.Flags().GetString("segmenter-url")
		}

		segmenterTimeout := cfg.Segmenter.TimeoutSec
		if cmd.Flags().Changed("segmenter-timeout") {
			segmenterTimeout, _ = cmd.Flags().GetInt("segmenter-timeout")
		}

		threshold := cfg.Segmenter.ConfidenceThreshold
		if cmd.Flags().Changed("confidence-threshold") {
			threshold, _ = cmd.Flags().GetFloat64("confidence-threshold")
		}

		maxControlPoints := cfg.Editor.MaxControlPoints
		if cmd.Flags().Changed("max-control-points") {
			maxControlPoints, _ = cmd.Flags().GetInt("max-control-points")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client, err := segment.NewClient(segmenterURL, time.Duration(segmenterTimeout)*time.Second)
		if err != nil {
			return fmt.Errorf("failed to create segmentation client: %w", err)
		}

		srv := server.New(server.Config{
			CORSOrigin:       corsOrigin,
			MaxUploadMB:      maxUploadSize,
			DefaultThreshold: threshold,
			MaxControlPoints: maxControlPoints,
		}, imagestore.NewRegistry(), client)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting annotation server", "host", host, "port", port, "segmenter", segmenterURL)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int64("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("segmenter-url", "http://localhost:8100/api/annotation",
		"base URL of the segmentation backend")
	serveCmd.Flags().Int("segmenter-timeout", 60, "segmentation backend timeout in seconds")
	serveCmd.Flags().Float64("confidence-threshold", 0.5, "default segmentation confidence threshold (0..1)")
	serveCmd.Flags().Int("max-control-points", 16, "target number of control points for mask editing")
}
