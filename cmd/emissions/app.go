package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/adapters"
	"github.com/web3-frozen/unlock-emissions/internal/charts"
	"github.com/web3-frozen/unlock-emissions/internal/config"
	"github.com/web3-frozen/unlock-emissions/internal/futures"
	"github.com/web3-frozen/unlock-emissions/internal/identity"
	"github.com/web3-frozen/unlock-emissions/internal/notify"
	"github.com/web3-frozen/unlock-emissions/internal/pipeline"
	"github.com/web3-frozen/unlock-emissions/internal/prices"
	"github.com/web3-frozen/unlock-emissions/internal/store"
	"github.com/web3-frozen/unlock-emissions/internal/telegram"
	"github.com/web3-frozen/unlock-emissions/internal/valuation"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *store.Store
	cache    *prices.Cache
	adapters adapters.Registry
	orch     *pipeline.Orchestrator
}

func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database connected and migrated")

	a := &app{cfg: cfg, logger: logger, db: db}

	reg, err := identity.LoadRegistry(cfg.ProtocolsPath, cfg.ParentProtocolsPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load protocol registry: %w", err)
	}
	a.adapters, err = adapters.LoadManifest(cfg.AdaptersPath, &http.Client{Timeout: 60 * time.Second})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load adapters: %w", err)
	}
	logger.Info("registries loaded", "protocols", reg.Len(), "adapters", len(a.adapters))

	var lookup prices.Lookup = prices.NewClient(prices.WithBaseURL(cfg.PricesAPI), prices.WithLogger(logger))
	a.cache = connectCache(cfg, lookup, logger)
	if a.cache != nil {
		lookup = a.cache
	}

	proc := pipeline.NewProcessor(pipeline.ProcessorDeps{
		Resolver: identity.NewResolver(reg, cfg.GuardedAdapters),
		Shaper:   charts.NewShaper(),
		Futures:  futuresChain(cfg.FuturesSource, logger),
		Valuer:   valuation.NewEngine(lookup, logger),
		Store:    db,
		Logger:   logger,
	})
	a.orch = pipeline.NewOrchestrator(a.adapters, proc, db,
		pipeline.NewReporter(notifier(cfg, logger), logger), logger,
		pipeline.WithRunRecorder(db),
	)
	return a, nil
}

func (a *app) close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	a.db.Close()
}

const (
	cacheAttempts   = 6
	cacheRetryDelay = 5 * time.Second
)

// sleep is replaced in tests.
var sleep = time.Sleep

// connectCache retries Redis for up to 30s and runs uncached if it never
// becomes ready.
func connectCache(cfg config.Config, next prices.Lookup, logger *slog.Logger) *prices.Cache {
	if cfg.RedisURL == "" {
		return nil
	}
	var err error
	for i := range cacheAttempts {
		if i > 0 {
			sleep(cacheRetryDelay)
		}
		var c *prices.Cache
		c, err = prices.NewCache(cfg.RedisURL, cfg.RedisPassword, 0, next)
		if err == nil {
			logger.Info("redis connected for price cache")
			return c
		}
		logger.Warn("redis not ready", "attempt", i+1, "error", err)
	}
	logger.Warn("running without price cache", "error", err)
	return nil
}

func futuresChain(names string, logger *slog.Logger) *futures.Chain {
	var sources []futures.Source
	for _, name := range strings.Split(names, ",") {
		switch strings.TrimSpace(name) {
		case "binance":
			sources = append(sources, futures.NewBinance())
		case "coinglass":
			sources = append(sources, futures.NewCoinGlass(logger))
		case "":
		default:
			logger.Warn("unknown futures source ignored", "source", name)
		}
	}
	return futures.NewChain(logger, sources...)
}

func notifier(cfg config.Config, logger *slog.Logger) notify.Notifier {
	var channels notify.Multi
	if cfg.UnlocksWebhook != "" {
		channels = append(channels, notify.NewDiscord(cfg.UnlocksWebhook))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		channels = append(channels, telegram.NewNotifier(telegram.NewBot(cfg.TelegramToken), cfg.TelegramChatID))
	}
	switch len(channels) {
	case 0:
		return notify.NewLog(logger)
	case 1:
		return channels[0]
	default:
		return channels
	}
}
