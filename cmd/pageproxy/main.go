package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/pagelock/internal/config"
	"github.com/udisondev/pagelock/internal/pipeline"
	"github.com/udisondev/pagelock/internal/proxy"
)

const ConfigPath = "config/pagelock.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("PAGELOCK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadPagelock(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	slog.Info("pagelock page proxy starting", "config", cfgPath, "listen", cfg.HTTP.ListenAddress, "cache_ttl", cfg.Cache.TTL)

	p, err := pipeline.New(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer p.Close()

	srv := proxy.NewServer(cfg.HTTP, p.Client)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("page proxy: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
