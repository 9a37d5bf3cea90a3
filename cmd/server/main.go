package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/config"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/server"
	"github.com/GriffinCanCode/webview-mcp/internal/surface"
)

//go:embed page.html
var defaultPage string

const defaultPageURL = "http://localhost/index.html"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override environment
	host := flag.String("host", cfg.Server.Host, "Gateway bind host")
	port := flag.String("port", cfg.Server.Port, "Gateway port")
	page := flag.String("page", cfg.Webview.PagePath, "HTML page to load (built-in demo page when empty)")
	watch := flag.Bool("watch", cfg.Webview.Watch, "Reload the page when the file changes")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	cfg.Server.Host = *host
	cfg.Server.Port = *port
	cfg.Webview.PagePath = *page
	cfg.Webview.Watch = *watch
	cfg.Logging.Development = *dev

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Gateway stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	srv.Commands().MustRegister(appCommands()...)
	logger.Info("Host commands registered", zap.Strings("commands", srv.Commands().Names()))

	if err := openPage(ctx, srv, cfg, logger); err != nil {
		srv.Close()
		return err
	}
	return srv.Run(ctx)
}

func openPage(ctx context.Context, srv *server.Server, cfg *config.Config, logger *logging.Logger) error {
	w, err := srv.Windows().Open(ctx, surface.MainLabel)
	if err != nil {
		return fmt.Errorf("open window: %w", err)
	}

	path := cfg.Webview.PagePath
	if path == "" {
		if err := w.LoadHTML(ctx, defaultPageURL, defaultPage); err != nil {
			return fmt.Errorf("load demo page: %w", err)
		}
		return nil
	}

	if err := w.LoadFile(ctx, path); err != nil {
		return fmt.Errorf("load page: %w", err)
	}
	if cfg.Webview.Watch {
		if err := w.Watch(ctx, path); err != nil {
			return fmt.Errorf("watch page: %w", err)
		}
		logger.Info("Watching page for changes", zap.String("path", path))
	}
	return nil
}
