package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"DriftShield/internal/state"
)

// PriceCache stores spot prices as Redis hashes keyed "price:{marketKey}"
// with fields "yes_bps", "no_bps", and "ts". Entries expire so a stale cache
// never outlives the market by much. All methods are nil-receiver safe, so a
// deployment without Redis just skips caching.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &PriceCache{rdb: c.rdb, ttl: ttl}
}

func priceKey(market state.Key) string {
	return "price:" + market.String()
}

// SetPrices stores the latest price pair for a market. Best-effort.
func (pc *PriceCache) SetPrices(ctx context.Context, market state.Key, yesBps, noBps uint64, ts time.Time) {
	if pc == nil {
		return
	}
	key := priceKey(market)
	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"yes_bps": strconv.FormatUint(yesBps, 10),
		"no_bps":  strconv.FormatUint(noBps, 10),
		"ts":      strconv.FormatInt(ts.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, pc.ttl)
	_, _ = pipe.Exec(ctx)
}

// GetPrices retrieves the cached price pair for a market. The second return
// is false on a miss or any Redis failure.
func (pc *PriceCache) GetPrices(ctx context.Context, market state.Key) (yesBps, noBps uint64, ok bool) {
	if pc == nil {
		return 0, 0, false
	}
	vals, err := pc.rdb.HGetAll(ctx, priceKey(market)).Result()
	if err != nil || len(vals) == 0 {
		return 0, 0, false
	}

	yesBps, err = strconv.ParseUint(vals["yes_bps"], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	noBps, err = strconv.ParseUint(vals["no_bps"], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return yesBps, noBps, true
}
