// Command linkeep is the bookmark capture daemon. It drives a Chrome
// instance, injects the page agent, and serves the capture protocol to
// local UI surfaces over HTTP and optionally MCP stdio.
//
// Usage:
//
//	linkeep -config linkeep.yaml            # run the daemon
//	linkeep -config linkeep.yaml -mcp       # also expose MCP tools on stdio
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

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/linkeep/linkeep/agent"
	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/config"
	"github.com/linkeep/linkeep/httpapi"
	"github.com/linkeep/linkeep/internal/browser"
	"github.com/linkeep/linkeep/internal/imgfetch"
	"github.com/linkeep/linkeep/orchestrator"
	"github.com/linkeep/linkeep/remote"
	"github.com/linkeep/linkeep/store"
	"github.com/linkeep/linkeep/watch"
)

func main() {
	configPath := flag.String("config", "", "path to linkeep.yaml config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	mcpStdio := flag.Bool("mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *addr, *mcpStdio); err != nil {
		logger.Error("linkeep: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, addr string, mcpStdio bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Listen = addr
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headful:   cfg.Browser.Headful,
		Logger:    logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	tabs := orchestrator.NewRodTabs(mgr, logger)
	defer tabs.Close()

	fetcher := imgfetch.New(imgfetch.WithLogger(logger))
	builder := agent.NewBuilder(fetcher, logger)
	uploader := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token, remote.WithLogger(logger))

	script := func() ([]byte, error) { return agent.Script(cfg.Agent.ScriptPath) }

	orch := orchestrator.New(tabs, builder, uploader, st, script, cfg.Agent, cfg.Capture,
		orchestrator.WithLogger(logger),
		orchestrator.WithSettings(st),
	)
	if err := orch.ReloadSettings(ctx); err != nil {
		logger.Warn("settings load", "error", err)
	}

	// Hot-reload stored setting overrides whenever the database changes.
	watcher := watch.New(st.DB, watch.Options{Logger: logger})
	go watcher.OnChange(ctx, func() error { return orch.ReloadSettings(ctx) })

	dispatcher := bus.NewDispatcher(bus.WithLogger(logger))
	orch.RegisterBus(dispatcher)

	if mcpStdio {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "linkeep",
			Version: "1.0.0",
		}, nil)
		orch.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp stdio", "error", err)
			}
		}()
	}

	api := httpapi.New(dispatcher, st, httpapi.WithLogger(logger))
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	return nil
}
