package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/udisondev/pagelock/internal/batch"
	"github.com/udisondev/pagelock/internal/config"
	"github.com/udisondev/pagelock/internal/pipeline"
)

func main() {
	var (
		in          = flag.String("in", "pages.json", "JSON page list: [\"url\", ...] or [{\"url\": ..., \"headers\": {...}}, ...]")
		out         = flag.String("out", "pages", "output directory")
		concurrency = flag.Int("concurrency", 4, "pages downloaded in parallel")
		cfgPath     = flag.String("config", "config/pagelock.yaml", "config file (PAGELOCK_CONFIG overrides)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *in, *out, *concurrency, *cfgPath); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in, out string, concurrency int, cfgPath string) error {
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
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("opening page list: %w", err)
	}
	pages, err := batch.LoadPages(f)
	f.Close()
	if err != nil {
		return err
	}

	p, err := pipeline.New(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer p.Close()

	slog.Info("descrambling pages", "count", len(pages), "out", out, "concurrency", concurrency)
	results, err := batch.NewDownloader(p.Client, out, concurrency, cfg.HTTP.UserAgent).Run(ctx, pages)
	slog.Info("done", "written", len(results), "total", len(pages))
	return err
}
