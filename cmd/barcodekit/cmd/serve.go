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

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/config"
	"github.com/MeKo-Tech/barcodekit/internal/render"
	"github.com/MeKo-Tech/barcodekit/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the barcode API",
	Long: `Start an HTTP server that provides REST and WebSocket endpoints for
barcode generation and scanning.

The server provides the following endpoints:
  GET|POST /barcode/generate - Render a barcode image
  POST     /barcode/decode   - Decode an uploaded image
  GET      /ws/scan          - Live scan session over WebSocket
  GET      /formats          - List supported symbologies
  GET      /health           - Health check endpoint
  GET      /metrics          - Prometheus metrics

Examples:
  barcodekit serve
  barcodekit serve --port 8080
  barcodekit serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyServeFlags(cmd, cfg)

		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
		}

		serverConfig, err := buildServerConfig(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		apiServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = apiServer.Close() }()

		mux := http.NewServeMux()
		apiServer.SetupRoutes(mux)

		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
		}

		go func() {
			slog.Info("Starting barcode server", "host", cfg.Server.Host, "port", cfg.Server.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
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

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", cfg.Server.ShutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		// Live scan sessions hold hijacked connections that Shutdown does not
		// wait for, so they are closed first.
		if err := apiServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("rate-limit-enabled") {
		cfg.Server.RateLimitEnabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		cfg.Server.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		cfg.Server.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		cfg.Server.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		cfg.Server.MaxDataPerDay, _ = f.GetInt64("max-data-per-day")
	}
}

// buildServerConfig maps the configuration sections onto server.Config.
func buildServerConfig(cfg *config.Config) (server.Config, error) {
	decodeOpts, err := cfg.ToDecodeOptions()
	if err != nil {
		return server.Config{}, err
	}
	captureCfg, err := cfg.ToCaptureConfig()
	if err != nil {
		return server.Config{}, err
	}
	cameraSettings, err := cfg.ToCameraSettings()
	if err != nil {
		return server.Config{}, err
	}
	genDefaults, err := generateDefaults(cfg)
	if err != nil {
		return server.Config{}, err
	}

	return server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Generate:    genDefaults,
		Decode:      decodeOpts,
		Capture:     captureCfg,
		Camera:      cameraSettings,
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimitEnabled,
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			RequestsPerHour:   cfg.Server.RequestsPerHour,
			MaxRequestsPerDay: cfg.Server.MaxRequestsPerDay,
			MaxDataPerDay:     cfg.Server.MaxDataPerDay,
		},
	}, nil
}

func generateDefaults(cfg *config.Config) (server.GenerateDefaults, error) {
	d := server.DefaultGenerateDefaults()
	f, ok := barcode.ParseFormat(cfg.Generate.Format)
	if !ok {
		return d, fmt.Errorf("invalid generate format: %s", cfg.Generate.Format)
	}
	fg, err := render.ParseHexColor(cfg.Generate.Foreground)
	if err != nil {
		return d, err
	}
	bg, err := render.ParseHexColor(cfg.Generate.Background)
	if err != nil {
		return d, err
	}
	out, err := render.ParseOutputFormat(cfg.Generate.OutputFormat)
	if err != nil {
		return d, err
	}
	d.Format = f
	d.Width = cfg.Generate.Width
	d.Height = cfg.Generate.Height
	d.CharacterSet = cfg.Generate.CharacterSet
	d.Foreground = fg
	d.Background = bg
	d.Output = out
	if cfg.Generate.Margin >= 0 {
		m := cfg.Generate.Margin
		d.Margin = &m
	}
	return d, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins (comma separated)")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 120, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 3000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 20000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 1<<30, "maximum data uploaded per day per client (bytes)")
}
