package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"attendancehook/internal/config"
	"attendancehook/internal/metrics"
	"attendancehook/internal/notify"
	"attendancehook/internal/ratelimit"
	"attendancehook/internal/security"
	"attendancehook/internal/server"
	"attendancehook/internal/whatsapp"

	"github.com/spf13/cobra"
)

var (
	host string
	port int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server that receives attendance events.

Configuration is read from the environment, optionally seeded from a .env
file. The server refuses to start when the configuration is invalid.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", config.DefaultHost, "Host to bind to (overrides HOST)")
	serveCmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port to listen on (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := loaded.Config

	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}

	// Set up logging
	logger, logFileHandle, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logFileHandle != nil {
		defer logFileHandle.Close()
	}

	logger.Info("Starting attendancehook",
		"version", version,
		"environment", cfg.Environment,
		"env_file", loaded.EnvFile)
	for _, warning := range loaded.Warnings {
		logger.Warn(warning)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return err
	}

	client, err := whatsapp.NewClient(whatsapp.Config{
		Token:         cfg.WhatsApp.Token,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		BaseURL:       cfg.WhatsApp.APIURL,
		APIVersion:    cfg.WhatsApp.APIVersion,
		Timeout:       cfg.WhatsApp.Timeout,
	})
	if err != nil {
		logger.Error("Failed to initialize WhatsApp client", "error", err)
		return fmt.Errorf("failed to initialize WhatsApp client: %w", err)
	}

	m := metrics.New()
	notifier := notify.New(client, cfg.WhatsApp.RecipientNumber, logger, m)

	limiter, err := ratelimit.New(cfg.RateLimitStorageURL, cfg.RateLimit)
	if err != nil {
		logger.Error("Failed to initialize rate limiter", "error", err)
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	if closer, ok := limiter.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Info("Rate limiting configured", "limit", cfg.RateLimit.String(), "storage", storageName(cfg.RateLimitStorageURL))

	srv := server.NewServer(cfg, notifier, limiter, m, logger)
	srv.Version = version

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx, cfg.Addr()); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// setupLogging configures slog for stdout and, when LOG_FILE is set, the log
// file. The returned file is nil without LOG_FILE (caller must close it otherwise).
func setupLogging(cfg *config.Config) (*slog.Logger, *os.File, error) {
	var (
		out  io.Writer = os.Stdout
		file *os.File
	)

	if cfg.LogFile != "" {
		var err error
		file, err = security.OpenLogFile(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		// Log to both file and console
		out = io.MultiWriter(os.Stdout, file)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     cfg.SlogLevel(),
		AddSource: cfg.Debug,
	})

	return slog.New(handler), file, nil
}

func storageName(storageURL string) string {
	if storageURL == "" {
		return "memory"
	}
	if strings.HasPrefix(storageURL, "rediss://") {
		return "redis (tls)"
	}
	return "redis"
}
