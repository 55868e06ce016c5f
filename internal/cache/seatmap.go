// Package cache holds the Redis-backed seat availability snapshot used
// by the seat-map endpoint.  The seat picker UI polls availability far
// more often than seat state changes, so snapshots are cached briefly
// and dropped by the order service whenever a hold, release, commit or
// expiry touches the showtime.  When no Redis client is configured the
// cache degrades to a no-op and every request computes a fresh snapshot.
package cache

import (
    "context"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"
)

// SeatMap caches serialized seat availability per showtime.
type SeatMap struct {
    rdb    *redis.Client
    ttl    time.Duration
    prefix string
    logger zerolog.Logger
}

// NewSeatMap returns a SeatMap cache.  A nil client disables caching.
func NewSeatMap(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *SeatMap {
    if ttl <= 0 {
        ttl = 5 * time.Second
    }
    return &SeatMap{
        rdb:    rdb,
        ttl:    ttl,
        prefix: "seatmap",
        logger: logger.With().Str("component", "seatmap-cache").Logger(),
    }
}

func (c *SeatMap) key(showTimeID uint64) string {
    return fmt.Sprintf("%s:%d", c.prefix, showTimeID)
}

// Get returns the cached snapshot payload, if present.
func (c *SeatMap) Get(ctx context.Context, showTimeID uint64) ([]byte, bool) {
    if c.rdb == nil {
        return nil, false
    }
    b, err := c.rdb.Get(ctx, c.key(showTimeID)).Bytes()
    if err == redis.Nil {
        return nil, false
    }
    if err != nil {
        c.logger.Warn().Err(err).Uint64("show_time_id", showTimeID).Msg("seat map cache read failed")
        return nil, false
    }
    return b, true
}

// Set stores the snapshot payload with the cache TTL.  Failures are
// logged and ignored; the cache is an optimisation, never a source of
// truth.
func (c *SeatMap) Set(ctx context.Context, showTimeID uint64, payload []byte) {
    if c.rdb == nil {
        return
    }
    if err := c.rdb.Set(ctx, c.key(showTimeID), payload, c.ttl).Err(); err != nil {
        c.logger.Warn().Err(err).Uint64("show_time_id", showTimeID).Msg("seat map cache write failed")
    }
}

// Invalidate drops the showtime's snapshot after seat state changed.
func (c *SeatMap) Invalidate(ctx context.Context, showTimeID uint64) {
    if c.rdb == nil {
        return
    }
    if err := c.rdb.Del(ctx, c.key(showTimeID)).Err(); err != nil {
        c.logger.Warn().Err(err).Uint64("show_time_id", showTimeID).Msg("seat map cache invalidation failed")
    }
}
