package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/colourise-api/internal/app"
	"github.com/Brownie44l1/colourise-api/internal/blobstore"
	"github.com/Brownie44l1/colourise-api/internal/cache"
	"github.com/Brownie44l1/colourise-api/internal/config"
	"github.com/Brownie44l1/colourise-api/internal/handlers"
	"github.com/Brownie44l1/colourise-api/internal/notify"
	"github.com/Brownie44l1/colourise-api/internal/source"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *debug || cfg.Server.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()
	adapter := engine.Adapter

	store, closeStore, err := blobstore.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	store = blobstore.WithTimeout(store, cfg.Server.StoreTimeout())

	var notifier notify.Publisher = notify.Nop{}
	if cfg.MQTT.Broker != "" {
		m, err := notify.Dial(ctx, cfg.MQTT, logger)
		if err != nil {
			return err
		}
		notifier = m
	}
	defer notifier.Close()

	inH, inW := adapter.InputShape()
	outH, outW := adapter.OutputShape()
	h := handlers.NewHandler(engine.Pipeline, cache.New(store, cache.WithLogger(logger)), store, handlers.Options{
		Fetcher:  source.NewFetcher(nil, cfg.Server.MaxDownloadBytes),
		Notifier: notifier,
		Server:   cfg.Server,
		Model: handlers.ModelInfo{
			InputHeight:  inH,
			InputWidth:   inW,
			OutputHeight: outH,
			OutputWidth:  outW,
			Temperature:  adapter.Temperature(),
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server starting",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"input", []int{inH, inW},
		"output", []int{outH, outW},
		"temperature", adapter.Temperature())
	logger.Info("endpoints",
		"health", "GET /health",
		"url", "GET /colour?url=",
		"upload", "POST /colour/image",
		"file", "POST /colour/file",
		"results", "GET "+blobstore.ResultsPath+"{key}")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
