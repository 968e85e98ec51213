package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

// SlotCache is a derived read cache for slot listings. One redis hash
// per provider/date, fielded by duration, so a single DEL invalidates
// every duration variant when a reservation changes.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewSlotCache creates a cache with the given entry TTL.
func NewSlotCache(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *SlotCache {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SlotCache{redis: redisClient, ttl: ttl, logger: logger}
}

func (c *SlotCache) key(providerID uuid.UUID, date string) string {
	return fmt.Sprintf("slots:%s:%s", providerID, date)
}

// Get returns the cached slots, or nil on miss.
func (c *SlotCache) Get(ctx context.Context, providerID uuid.UUID, date string, durationMinutes int) ([]Slot, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.HGet(ctx, c.key(providerID, date), strconv.Itoa(durationMinutes)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("slot cache read failed", "error", err)
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.logger.Warn("slot cache decode failed", "error", err)
		return nil, false
	}
	return slots, true
}

// Set stores the slots for the provider/date/duration combination.
func (c *SlotCache) Set(ctx context.Context, providerID uuid.UUID, date string, durationMinutes int, slots []Slot) {
	if c == nil || c.redis == nil {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	key := c.key(providerID, date)
	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(durationMinutes), data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("slot cache write failed", "error", err)
	}
}

// Invalidate drops every cached duration for the provider/date. Called
// on every create/cancel/reschedule so the calculator never serves
// stale availability.
func (c *SlotCache) Invalidate(ctx context.Context, providerID uuid.UUID, dates ...time.Time) {
	if c == nil || c.redis == nil {
		return
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, c.key(providerID, d.UTC().Format("2006-01-02")))
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("slot cache invalidate failed", "error", err)
	}
}
