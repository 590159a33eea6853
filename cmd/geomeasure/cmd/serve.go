package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Long: `Start an HTTP server exposing the measurement engine to frontends.

The server provides the following endpoints:
  GET  /health               - Health check
  GET  /version              - Build information
  GET  /metrics              - Prometheus metrics
  POST /v1/homography        - Homography from point correspondences
  POST /v1/homography/apply  - Map points through a homography
  POST /v1/elevation         - Sun elevation from arrows and a ground quad
  POST /v1/rectify           - Rectify an uploaded image region (multipart)
  GET  /ws/session           - Live elevation session over WebSocket

Examples:
  geomeasure serve
  geomeasure serve --port 8080
  geomeasure serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts.cfg)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origin")
	f.Int64("max-upload-size", 50, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 10000, "maximum requests per day per client")
	f.Int64("max-data-per-day", 1024, "maximum upload data per day per client (MB)")
	return cmd
}

// serveSettings is the resolved server setup for one serve run.
type serveSettings struct {
	server          server.Config
	shutdownTimeout int
}

// resolveServeSettings applies changed flags over the loaded configuration.
func resolveServeSettings(cfg *config.Config, cmd *cobra.Command) (serveSettings, error) {
	sc := cfg.Server
	rl := sc.RateLimit
	flags := cmd.Flags()

	if flags.Changed("host") {
		sc.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		sc.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		sc.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		sc.MaxUploadMB, _ = flags.GetInt64("max-upload-size")
	}
	if flags.Changed("timeout") {
		sc.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-limit-enabled") {
		rl.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		rl.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		rl.MaxDataPerDayMB, _ = flags.GetInt64("max-data-per-day")
	}

	if sc.Port < 1 || sc.Port > 65535 {
		return serveSettings{}, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}
	if sc.MaxUploadMB <= 0 {
		return serveSettings{}, fmt.Errorf("invalid max upload size: %d MB", sc.MaxUploadMB)
	}
	if sc.TimeoutSec <= 0 {
		return serveSettings{}, fmt.Errorf("invalid timeout: %d seconds", sc.TimeoutSec)
	}

	return serveSettings{
		server: server.Config{
			Host:           sc.Host,
			Port:           sc.Port,
			CORSOrigin:     sc.CORSOrigin,
			MaxUploadMB:    sc.MaxUploadMB,
			TimeoutSec:     sc.TimeoutSec,
			Calculator:     cfg.Calculator(slog.Default()),
			RectifyWorkers: cfg.Rectify.Workers,
			RateLimit: server.RateLimitConfig{
				Enabled:           rl.Enabled,
				RequestsPerMinute: rl.RequestsPerMinute,
				RequestsPerHour:   rl.RequestsPerHour,
				MaxRequestsPerDay: rl.MaxRequestsPerDay,
				MaxDataPerDay:     rl.MaxDataPerDayMB * 1024 * 1024,
			},
			Logger: slog.Default(),
		},
		shutdownTimeout: sc.ShutdownTimeout,
	}, nil
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	settings, err := resolveServeSettings(cfg, cmd)
	if err != nil {
		return err
	}
	sc := settings.server

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := server.NewServer(sc)
	defer func() { _ = srv.Close() }()

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting geomeasure server", "host", sc.Host, "port", sc.Port,
			"rate_limit", sc.RateLimit.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", settings.shutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(settings.shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
