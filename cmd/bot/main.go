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
	"tryon-studio/internal/handlers"
	"tryon-studio/internal/httpclient"
	"tryon-studio/internal/imagenorm"
	"tryon-studio/internal/mediagroup"
	"tryon-studio/internal/relay"
	"tryon-studio/internal/session"
	"tryon-studio/internal/telegram"
	"tryon-studio/internal/tryon"
)

const sessionIdleTTL = 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.ValidateBot(); err != nil {
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

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	gen, err := newGenerator(ctx, cfg, httpClient, logger)
	if err != nil {
		logger.Error("generator init failed", "err", err)
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

	sessions := session.NewStore(session.Options{
		IdleTTL: sessionIdleTTL,
	})

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Pipeline: pipeline,
		Sessions: sessions,
		Catalog:  cat,
		Fetcher:  catalog.Fetcher{HTTPClient: httpClient},
		Logger:   logger,
	})

	// Generation has its own timeout inside the pipeline; the extra minute
	// covers downloads and the Telegram upload around it.
	updateTimeout := cfg.RequestTimeout + time.Minute

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, updateTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush:  onGroupFlush,
	})
	defer aggregator.Stop()
	handler.SetMediaGroupAggregator(aggregator)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.Prune(); n > 0 {
					logger.Info("idle sessions pruned", "count", n)
				}
			}
		}
	}()

	logger.Info("bot started", "username", tg.Username(), "relay", cfg.RelayURL != "", "catalog", cat.Len())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, updateTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func newGenerator(ctx context.Context, cfg config.Config, httpClient *http.Client, logger *slog.Logger) (tryon.Generator, error) {
	if cfg.RelayURL != "" {
		client, err := relay.NewClient(relay.ClientOptions{
			BaseURL:    cfg.RelayURL,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	return gemini.NewGenerator(ctx, cfg.GeminiBackend, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
}
