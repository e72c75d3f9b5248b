package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-resale/internal/store"
	"ticket-resale/models"
)

const marketStatsKeyPrefix = "market:stats:"

// MarketData serves the public per-event market snapshot. Snapshots are
// cached in Redis with a short TTL; a cache miss recomputes from live
// asking prices and settled sale prices and writes the result back onto
// the event record. Redis being down degrades to recompute-per-call,
// never to an error.
type MarketData struct {
	store store.Store
	redis redis.Cmdable
	ttl   time.Duration

	now timeFunc
}

func NewMarketData(st store.Store, rdb redis.Cmdable, ttl time.Duration) *MarketData {
	return &MarketData{
		store: st,
		redis: rdb,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Stats returns the market snapshot for an event, from cache when
// fresh.
func (m *MarketData) Stats(ctx context.Context, eventID string) (*models.MarketStats, error) {
	if cached := m.cached(ctx, eventID); cached != nil {
		return cached, nil
	}

	if _, err := m.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	listings, err := m.store.ListLiveListingsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sales, err := m.store.ListSettledTransactionsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	stats := computeMarketStats(listings, sales, m.now)
	// Re-read inside the unit so the snapshot update never clobbers a
	// concurrent status transition on the event record.
	err = m.store.RunInTransaction(ctx, func(tx store.Store) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		event.MarketStats = stats
		return tx.SaveEvent(ctx, event)
	})
	if err != nil {
		slog.Warn("marketdata: event snapshot save failed", "event", eventID, "error", err)
	}
	m.cache(ctx, eventID, &stats)
	return &stats, nil
}

// Invalidate drops the cached snapshot so the next read recomputes.
func (m *MarketData) Invalidate(ctx context.Context, eventID string) {
	if m.redis == nil {
		return
	}
	if err := m.redis.Del(ctx, marketStatsKeyPrefix+eventID).Err(); err != nil {
		slog.Warn("marketdata: cache invalidation failed", "event", eventID, "error", err)
	}
}

func (m *MarketData) cached(ctx context.Context, eventID string) *models.MarketStats {
	if m.redis == nil {
		return nil
	}
	raw, err := m.redis.Get(ctx, marketStatsKeyPrefix+eventID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("marketdata: cache read failed", "event", eventID, "error", err)
		}
		return nil
	}
	var stats models.MarketStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		slog.Warn("marketdata: cache payload invalid", "event", eventID, "error", err)
		return nil
	}
	return &stats
}

func (m *MarketData) cache(ctx context.Context, eventID string, stats *models.MarketStats) {
	if m.redis == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := m.redis.Set(ctx, marketStatsKeyPrefix+eventID, raw, m.ttl).Err(); err != nil {
		slog.Warn("marketdata: cache write failed", "event", eventID, "error", err)
	}
}
