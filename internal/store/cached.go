package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/af-corp/mlapi/internal/telemetry"
)

const redisKeyPrefix = "mlapi:manifest:"

// CachedStore fronts a Store with Redis. Either side may be nil: without
// Redis it passes through, without an inner store it is cache-only. Redis
// failures are logged and never fail a call.
type CachedStore struct {
	inner   Store
	redis   *redis.Client
	ttl     time.Duration
	metrics *telemetry.Metrics
}

func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration, metrics *telemetry.Metrics) *CachedStore {
	return &CachedStore{inner: inner, redis: rdb, ttl: ttl, metrics: metrics}
}

func cacheKey(inputDigest string) string { return redisKeyPrefix + inputDigest }

func (s *CachedStore) Get(ctx context.Context, inputDigest string) (*Record, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey(inputDigest)).Bytes()
		if err == nil {
			var rec Record
			if err := json.Unmarshal(cached, &rec); err == nil {
				s.metrics.RecordCache(true)
				return &rec, nil
			}
		} else if err != redis.Nil {
			slog.Warn("manifest cache read failed", "error", err)
		}
		s.metrics.RecordCache(false)
	}

	if s.inner == nil {
		return nil, nil
	}
	rec, err := s.inner.Get(ctx, inputDigest)
	if err != nil || rec == nil {
		return rec, err
	}
	s.cache(ctx, rec)
	return rec, nil
}

func (s *CachedStore) Save(ctx context.Context, rec *Record) error {
	if s.inner != nil {
		if err := s.inner.Save(ctx, rec); err != nil {
			return err
		}
	}
	s.cache(ctx, rec)
	return nil
}

func (s *CachedStore) cache(ctx context.Context, rec *Record) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(rec.InputDigest), data, s.ttl).Err(); err != nil {
		slog.Warn("manifest cache write failed", "error", err)
	}
}
