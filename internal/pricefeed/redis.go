package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisConfig holds connection parameters for the price cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache implements Feed and Writer on Redis hashes. Each ticker is
// stored at "price:{ticker}" with fields "price" and "ts" (Unix nanoseconds).
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection with a ping
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func priceKey(ticker string) string {
	return "price:" + normalize(ticker)
}

// setIfNewer writes price and ts unless the stored ts is newer
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'price', ARGV[1], 'ts', ARGV[2])
return 1
`)

// SetPrice stores the latest price and timestamp for a ticker
func (c *RedisCache) SetPrice(ctx context.Context, ticker string, price decimal.Decimal, ts time.Time) error {
	err := setIfNewer.Run(ctx, c.rdb, []string{priceKey(ticker)},
		price.String(), strconv.FormatInt(ts.UnixNano(), 10)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to set price for %s: %w", ticker, err)
	}
	return nil
}

// Prices fetches quotes for tickers in a single pipeline
func (c *RedisCache) Prices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	if len(tickers) == 0 {
		return out, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tickers))
	for _, t := range tickers {
		cmds[normalize(t)] = pipe.HGetAll(ctx, priceKey(t))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}

	for ticker, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if q, ok := parseQuote(vals); ok {
			out[ticker] = q.Price
		}
	}
	return out, nil
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func parseQuote(vals map[string]string) (Quote, bool) {
	priceStr, ok := vals["price"]
	if !ok {
		return Quote{}, false
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil || !price.IsPositive() {
		return Quote{}, false
	}

	q := Quote{Price: price}
	if tsStr, ok := vals["ts"]; ok {
		if ns, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			q.AsOf = time.Unix(0, ns)
		}
	}
	return q, true
}

var _ Cache = (*RedisCache)(nil)
