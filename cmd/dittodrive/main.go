package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/server"
	"github.com/marmos91/dittodrive/pkg/auth"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/drive"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure logger
	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logger.SetLevel(level)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure log output: %v", err)
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("DittoDrive - Cloud Storage Server")
	logger.Info("Log level set to: %s", level)

	gateway, err := config.CreateGateway(ctx, &cfg.Store)
	if err != nil {
		log.Fatalf("Failed to create object store gateway: %v", err)
	}

	users, err := config.CreateUserStore(ctx, &cfg.Users)
	if err != nil {
		log.Fatalf("Failed to create user store: %v", err)
	}
	defer func() {
		if err := users.Close(); err != nil {
			logger.Warn("Failed to close user store: %v", err)
		}
	}()

	tokens, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to create token issuer: %v", err)
	}

	files := drive.NewFileEngine(gateway)
	dirs := drive.NewDirectoryEngine(gateway, files)

	// Log server configuration
	logger.Info("Server configuration:")
	logger.Info("  Address: %s", cfg.Server.Address)
	logger.Info("  Read timeout: %v", cfg.Server.ReadTimeout)
	logger.Info("  Write timeout: %v", cfg.Server.WriteTimeout)
	logger.Info("  Shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	logger.Info("  Max upload bytes: %d", cfg.Server.MaxUploadBytes)
	if cfg.Server.RateLimit.Enabled {
		logger.Info("  Rate limit: %.1f req/s (burst %d)", cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	} else {
		logger.Info("  Rate limit: disabled")
	}

	srv := server.New(cfg.Server, files, dirs, users, tokens)

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on %s. Press Ctrl+C to stop.", cfg.Server.Address)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}
