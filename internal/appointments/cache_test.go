package appointments

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*SlotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSlotCache(client, ttl, nil), mr
}

func TestSlotCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	providerID := uuid.New()
	slots := []Slot{
		{Time: "09:00", EndTime: "10:00", Available: true},
		{Time: "10:00", EndTime: "11:00", Available: false},
	}

	if _, ok := cache.Get(context.Background(), providerID, "2030-06-03", 60); ok {
		t.Fatal("expected a miss before Set")
	}

	cache.Set(context.Background(), providerID, "2030-06-03", 60, slots)

	got, ok := cache.Get(context.Background(), providerID, "2030-06-03", 60)
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if len(got) != 2 || got[0].Time != "09:00" || got[1].Available {
		t.Fatalf("unexpected cached slots %+v", got)
	}

	// A different duration is a separate hash field.
	if _, ok := cache.Get(context.Background(), providerID, "2030-06-03", 30); ok {
		t.Fatal("expected a miss for an uncached duration")
	}
}

func TestSlotCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	providerID := uuid.New()
	cache.Set(context.Background(), providerID, "2030-06-03", 60, []Slot{{Time: "09:00", EndTime: "10:00", Available: true}})

	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(context.Background(), providerID, "2030-06-03", 60); ok {
		t.Fatal("expected a miss after TTL elapsed")
	}
}

func TestSlotCacheInvalidateDropsAllDurations(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	providerID := uuid.New()
	day := time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC)

	cache.Set(context.Background(), providerID, "2030-06-03", 30, []Slot{{Time: "09:00", EndTime: "09:30", Available: true}})
	cache.Set(context.Background(), providerID, "2030-06-03", 60, []Slot{{Time: "09:00", EndTime: "10:00", Available: true}})

	cache.Invalidate(context.Background(), providerID, day)

	if _, ok := cache.Get(context.Background(), providerID, "2030-06-03", 30); ok {
		t.Fatal("expected 30-minute entry to be invalidated")
	}
	if _, ok := cache.Get(context.Background(), providerID, "2030-06-03", 60); ok {
		t.Fatal("expected 60-minute entry to be invalidated")
	}
}

func TestSlotCacheNilSafe(t *testing.T) {
	var cache *SlotCache
	providerID := uuid.New()

	cache.Set(context.Background(), providerID, "2030-06-03", 60, nil)
	cache.Invalidate(context.Background(), providerID, time.Now())
	if _, ok := cache.Get(context.Background(), providerID, "2030-06-03", 60); ok {
		t.Fatal("nil cache must always miss")
	}
}
