package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/web3-frozen/unlock-emissions/internal/config"
	"github.com/web3-frozen/unlock-emissions/internal/notify"
	"github.com/web3-frozen/unlock-emissions/internal/telegram"
)

func TestNotifierSelection(t *testing.T) {
	logger := slog.Default()

	if _, ok := notifier(config.Config{}, logger).(*notify.Log); !ok {
		t.Error("no channels configured should fall back to the log notifier")
	}
	if _, ok := notifier(config.Config{UnlocksWebhook: "https://discord.test/x"}, logger).(*notify.Discord); !ok {
		t.Error("webhook only should use Discord")
	}
	if _, ok := notifier(config.Config{TelegramToken: "t"}, logger).(*notify.Log); !ok {
		t.Error("telegram without chat id should be ignored")
	}
	if _, ok := notifier(config.Config{TelegramToken: "t", TelegramChatID: 1}, logger).(*telegram.Notifier); !ok {
		t.Error("telegram only should use the telegram notifier")
	}
	multi, ok := notifier(config.Config{UnlocksWebhook: "https://discord.test/x", TelegramToken: "t", TelegramChatID: 1}, logger).(notify.Multi)
	if !ok || len(multi) != 2 {
		t.Errorf("both channels should fan out, got %T", multi)
	}
}

func TestFuturesChain(t *testing.T) {
	// Unknown and empty entries are skipped without failing.
	if futuresChain("binance, ,nope,coinglass", slog.Default()) == nil {
		t.Fatal("futuresChain returned nil")
	}
}

type noPrices struct{}

func (noPrices) HistoricalPrice(context.Context, string, int64) (float64, bool) { return 0, false }

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = orig })
	return &slept
}

func TestConnectCacheGivesUp(t *testing.T) {
	slept := stubSleep(t)

	c := connectCache(config.Config{RedisURL: "redis://127.0.0.1:1/0"}, noPrices{}, slog.Default())
	if c != nil {
		t.Fatal("expected no cache for an unreachable redis")
	}
	if len(*slept) != cacheAttempts-1 {
		t.Errorf("sleeps = %d, want %d (none after the last attempt)", len(*slept), cacheAttempts-1)
	}
}

func TestConnectCacheFirstAttempt(t *testing.T) {
	slept := stubSleep(t)
	mr := miniredis.RunT(t)

	c := connectCache(config.Config{RedisURL: "redis://" + mr.Addr() + "/0"}, noPrices{}, slog.Default())
	if c == nil {
		t.Fatal("expected a cache")
	}
	defer c.Close()
	if len(*slept) != 0 {
		t.Errorf("sleeps = %d, want 0", len(*slept))
	}
}

func TestConnectCacheDisabled(t *testing.T) {
	slept := stubSleep(t)
	if connectCache(config.Config{}, noPrices{}, slog.Default()) != nil || len(*slept) != 0 {
		t.Error("empty REDIS_URL should skip the cache without retrying")
	}
}
