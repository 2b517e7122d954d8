package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
)

type Config struct {
	Port           string
	DatabaseURL    string
	RedisURL       string
	RedisPassword  string
	UnlocksWebhook string
	TelegramToken  string
	TelegramChatID int64

	AdaptersPath        string
	ProtocolsPath       string
	ParentProtocolsPath string
	PricesAPI           string
	FuturesSource       string
	GuardedAdapters     []string

	ScheduleInterval time.Duration
	ScheduleChunk    int
}

func Load() Config {
	cfg := Config{
		Port:                envOr("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            envOr("REDIS_URL", "redis://redis-master.redis.svc.cluster.local:6379/0"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		UnlocksWebhook:      os.Getenv("UNLOCKS_WEBHOOK"),
		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:      envInt64("TELEGRAM_CHAT_ID", 0),
		AdaptersPath:        envOr("ADAPTERS_PATH", "config/adapters.yaml"),
		ProtocolsPath:       envOr("PROTOCOLS_PATH", "config/protocols.yaml"),
		ParentProtocolsPath: envOr("PARENT_PROTOCOLS_PATH", "config/parent_protocols.yaml"),
		PricesAPI:           envOr("PRICES_API", "https://coins.llama.fi"),
		FuturesSource:       envOr("FUTURES_SOURCE", "binance,coinglass"),
		GuardedAdapters:     envList("GUARDED_ADAPTERS", []string{"daomaker"}),
		ScheduleInterval:    envDuration("SCHEDULE_INTERVAL", time.Hour),
		ScheduleChunk:       int(envInt64("SCHEDULE_CHUNK", 0)),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"DATABASE_URL":       &cfg.DatabaseURL,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
		"UNLOCKS_WEBHOOK":    &cfg.UnlocksWebhook,
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramToken,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in env, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in env, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
