package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tryon-studio/internal/catalog"
	"tryon-studio/internal/config"
	"tryon-studio/internal/gemini"
	"tryon-studio/internal/httpclient"
	"tryon-studio/internal/imagenorm"
	"tryon-studio/internal/relay"
	"tryon-studio/internal/tryon"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	configured := true
	gen, err := gemini.NewGenerator(ctx, cfg.GeminiBackend, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	switch {
	case errors.Is(err, tryon.ErrNotConfigured):
		logger.Warn("GEMINI_API_KEY is not set, generation requests will be refused")
		configured = false
	case err != nil:
		logger.Error("gemini init failed", "err", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("catalog load failed", "path", cfg.CatalogPath, "err", err)
		os.Exit(1)
	}

	pipeline := tryon.NewPipeline(tryon.Options{
		Generator: gen,
		Normalizer: imagenorm.Normalizer{
			MaxDimension: cfg.ImageMaxDimension,
			Quality:      cfg.ImageQuality,
		},
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})

	server := relay.NewServer(relay.ServerOptions{
		Pipeline:   pipeline,
		Configured: configured,
		Catalog:    cat,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.RelayAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("relay started", "addr", cfg.RelayAddr, "backend", cfg.GeminiBackend, "model", cfg.GeminiModel, "catalog", cat.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}
