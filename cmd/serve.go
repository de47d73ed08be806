package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cardfolio/cardscan/internal/config"
	"github.com/cardfolio/cardscan/internal/handlers"
	"github.com/cardfolio/cardscan/internal/pipeline"
	"github.com/cardfolio/cardscan/internal/telemetry"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scan HTTP API",
		Long: `Starts the cardscan HTTP API on the specified port.

The API accepts card images as multipart uploads or URL lists, runs them
through the recognition pipeline and returns recognized text, confidence
and matched card detections.`,
		Example: `  # Start server on the configured port (default 8080)
  cardscan serve

  # Start server on a custom port
  cardscan serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			orch, err := pipeline.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("failed to build pipeline: %w", err)
			}

			handler := handlers.New(orch)

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/scan", handler.HandleScan)
			mux.HandleFunc("/api/validate-text", handler.HandleValidateText)
			mux.HandleFunc("/api/cache/stats", handler.HandleCacheStats)
			mux.HandleFunc("/api/cache/clear", handler.HandleCacheClear)
			mux.Handle("/metrics", telemetry.Handler())
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			if port == "" {
				port = cfg.Serve.Port
			}
			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Scan API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (defaults to config)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to cardscan config file")

	return cmd
}
