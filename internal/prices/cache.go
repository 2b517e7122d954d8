package prices

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/web3-frozen/unlock-emissions/internal/metrics"
)

// Cache is a Redis read-through cache in front of another Lookup. Only
// found prices are stored; a missing price is retried on the next run.
type Cache struct {
	rdb  *redis.Client
	next Lookup
	ttl  time.Duration
}

// NewCache connects to Redis. A ttl of 0 stores prices without expiry,
// which suits historical prices.
func NewCache(redisURL, password string, ttl time.Duration, next Lookup) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, err
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl}, nil
}

// Close shuts down the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func cacheKey(token string, ts int64) string {
	return fmt.Sprintf("price:%s:%d", token, ts)
}

// HistoricalPrice serves from Redis when possible. Redis errors fall
// through to the wrapped lookup.
func (c *Cache) HistoricalPrice(ctx context.Context, token string, ts int64) (float64, bool) {
	key := cacheKey(token, ts)
	if v, err := c.rdb.Get(ctx, key).Result(); err == nil {
		if price, perr := strconv.ParseFloat(v, 64); perr == nil {
			metrics.PriceLookupsTotal.WithLabelValues("hit").Inc()
			return price, true
		}
	}

	price, ok := c.next.HistoricalPrice(ctx, token, ts)
	if ok {
		c.rdb.Set(ctx, key, strconv.FormatFloat(price, 'g', -1, 64), c.ttl) //nolint:errcheck
	}
	return price, ok
}
