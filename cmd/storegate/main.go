// Package main is the entry point for the StoreGate HTTP-to-object-storage gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storegate/storegate/internal/config"
	"github.com/storegate/storegate/internal/logging"
	"github.com/storegate/storegate/internal/metrics"
	"github.com/storegate/storegate/internal/server"
	"github.com/storegate/storegate/internal/storage"
)

func main() {
	configPath := flag.String("config", "storegate.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 8080)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	shutdownTimeout := flag.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default: from config or 30)")
	partSize := flag.Int64("part-size", 0, "multipart upload part size in bytes (default: from config or 5 MiB)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *shutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}
	if *partSize != 0 {
		cfg.Upload.PartSize = *partSize
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	metrics.Register()

	if cfg.Storage.Bucket == "" {
		fmt.Fprintf(os.Stderr, "storage.bucket is required\n")
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		slog.Warn("auth.token is empty: all mutating requests and non-public reads will be denied")
	}

	store, err := storage.NewS3Client(context.Background(), storage.Options{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		EndpointURL:     cfg.Storage.EndpointURL,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Prefix:          cfg.Storage.Prefix,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize storage client: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg, store)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start the server in a goroutine so we can handle shutdown signals.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("StoreGate listening", "addr", addr, "bucket", cfg.Storage.Bucket)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// SIGTERM/SIGINT handler: stop accepting connections, wait for in-flight
	// requests with a timeout, then exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		slog.Info("server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}
