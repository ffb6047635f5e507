package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve summaries and session ingestion over HTTP",
	Long: `Start the HTTP API. Routes:

  GET  /health
  GET  /metrics
  GET  /api/v1/schema
  GET  /api/v1/months
  GET  /api/v1/months/:month/summary
  GET  /api/v1/best-month?key=distance
  GET  /api/v1/personal-bests
  PUT  /api/v1/personal-bests
  POST /api/v1/sessions

The address defaults to http.addr from .tracksconfig.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" && Config != nil {
			addr = Config.HTTPAddr
		}
		if addr == "" {
			addr = ":8080"
		}

		gin.SetMode(gin.ReleaseMode)
		logger := slog.Default()
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(Engine, api.RouterOptions{Gatherer: Gatherer, Logger: logger}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("http server listening", slog.String("addr", addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serving http on %s: %w", addr, err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
