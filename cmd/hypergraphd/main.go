// hypergraphd boots configuration, the workspace, the model-provider
// clients, and an HTTP/WebSocket server exposing the entailment hypergraph
// reasoning service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/entailgraph/entailgraph/pkg/api"
	"github.com/entailgraph/entailgraph/pkg/config"
	"github.com/entailgraph/entailgraph/pkg/workspace"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("no .env file loaded", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ws, err := workspace.Open(cfg.WorkspaceDir)
	if err != nil {
		slog.Error("failed to open workspace", "error", err, "workspace_dir", cfg.WorkspaceDir)
		os.Exit(1)
	}

	rt, err := api.NewRuntime(ws, cfg)
	if err != nil {
		slog.Error("failed to construct runtime", "error", err)
		os.Exit(1)
	}
	slog.Info("backend availability",
		"orchestrator", cfg.Available.Orchestrator, "checker", cfg.Available.Checker, "evaluator", cfg.Available.Evaluator)
	server := api.NewServer(cfg, rt)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.RunWatcher(gCtx) })
	g.Go(func() error {
		slog.Info("hypergraphd listening", "addr", cfg.Server.Addr, "workspace_dir", ws.Root())
		return server.Start(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down hypergraphd")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("hypergraphd exited with error", "error", err)
		os.Exit(1)
	}
}
