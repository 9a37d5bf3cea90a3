package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webview-mcp/internal/client"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/config"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webview-mcp/internal/mcp"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol
	logger, err := logging.New(logging.StderrConfig(cfg.LogLevel))
	if err != nil {
		logger = logging.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("MCP server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, logger *logging.Logger) error {
	catalog, err := mcp.DefaultCatalog()
	if err != nil {
		return err
	}

	gateway := client.New(cfg.GatewayURL, cfg.Timeout, logger.Named("client"))
	if gateway.Ready(ctx) {
		logger.Info("Connected to webview gateway", zap.String("url", gateway.BaseURL()))
	} else {
		logger.Warn("Could not reach a ready webview gateway; tools will fail until it is available",
			zap.String("url", gateway.BaseURL()))
	}

	srv := mcp.NewServer(catalog, gateway, logger.Named("mcp"))
	logger.Info("MCP server started",
		zap.String("name", catalog.Server.Name),
		zap.String("version", catalog.Server.Version),
		zap.Int("tools", len(catalog.Tools)+1))
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
