package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buildmart/price-scout/internal/aggregate"
	"github.com/buildmart/price-scout/internal/api"
	"github.com/buildmart/price-scout/internal/browser"
	"github.com/buildmart/price-scout/internal/cache"
	"github.com/buildmart/price-scout/internal/config"
	"github.com/buildmart/price-scout/internal/fetch"
	"github.com/buildmart/price-scout/internal/scrape"
	"github.com/buildmart/price-scout/internal/validate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := buildCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var overrides scrape.Overrides
	if cfg.Scraper.SelectorsFile != "" {
		overrides, err = scrape.LoadOverrides(cfg.Scraper.SelectorsFile)
		if err != nil {
			logger.Error("failed to load selector overrides", "error", err)
			os.Exit(1)
		}
		logger.Info("loaded selector overrides", "file", cfg.Scraper.SelectorsFile)
	}

	adapterCfg := scrape.AdapterConfig{
		Timeout:   time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
		Delay:     time.Duration(cfg.Scraper.DelayMS) * time.Millisecond,
		Proxy:     cfg.Scraper.ProxyServer,
		Overrides: overrides,
	}

	// The browser is only needed for rendered-mode sources. When it
	// cannot start, those adapters degrade to plain HTTP fetches.
	if renderer := startBrowser(cfg, logger); renderer != nil {
		adapterCfg.Renderer = renderer
		defer renderer.Close()
	}

	registry := scrape.NewRegistry()
	for _, source := range cfg.Scraper.Sources {
		switch source {
		case "amazon":
			registry.Register(scrape.NewAmazon(adapterCfg))
		case "mercadolibre_mx":
			registry.Register(scrape.NewMercadoLibre(scrape.MercadoLibreMX, adapterCfg))
		case "mercadolibre_ar":
			registry.Register(scrape.NewMercadoLibre(scrape.MercadoLibreAR, adapterCfg))
		default:
			logger.Warn("skipping unknown source in config", "source", source)
		}
	}

	agg := aggregate.New(registry, store, validate.New(),
		time.Duration(cfg.Cache.TTLSeconds)*time.Second)

	handlers := api.NewHandlers(agg, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port, "sources", registry.Names())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func buildCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Store, func(), error) {
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis cache", "addr", cfg.Cache.RedisAddr)
		return rc, func() { rc.Close() }, nil
	}

	mc := cache.NewMemoryCache(time.Duration(cfg.Cache.SweepMinutes) * time.Minute)
	return mc, mc.Close, nil
}

func startBrowser(cfg *config.Config, logger *slog.Logger) *browser.Browser {
	needsRendered := false
	for _, source := range cfg.Scraper.Sources {
		if source == "amazon" {
			needsRendered = true
		}
	}
	if !needsRendered {
		return nil
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Scraper.Headless,
		Timeout:        time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
		UserAgent:      browser.DefaultOptions().UserAgent,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		Locale:         "en-US",
		ProxyServer:    cfg.Scraper.ProxyServer,
	})
	if err != nil {
		logger.Warn("browser unavailable, rendered sources fall back to http", "error", err)
		return nil
	}
	return b
}

var _ fetch.Renderer = (*browser.Browser)(nil)
