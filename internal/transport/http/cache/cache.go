// Package cache provides a small read-through cache for GET-by-ID responses.
// The engine itself stays uncached; only the HTTP edge holds serialized
// entities, keyed per entity, and every write path invalidates its key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "bonifica/internal/platform/redis"
	"bonifica/pkg/platform/circuit"
)

// Entity caches serialized entity responses in Redis. A nil Entity (Redis not
// configured) is valid and degrades to pass-through. A breaker stops reads
// and writes while Redis misbehaves; invalidations always go through so a
// recovering cache never serves stale entities.
type Entity struct {
	client  *platformredis.Client
	ttl     time.Duration
	logger  *slog.Logger
	breaker *circuit.Breaker
}

// New wraps a Redis client; client may be nil.
func New(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Entity {
	if client == nil {
		return nil
	}
	return &Entity{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		breaker: circuit.New("entity-cache", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
	}
}

func key(entityType, id string) string {
	return fmt.Sprintf("bonifica:entity:%s:%s", entityType, id)
}

// Get unmarshals a cached entity into dest, reporting whether it was found.
// Cache failures are logged and treated as misses.
func (e *Entity) Get(ctx context.Context, entityType, id string, dest any) bool {
	if e == nil || e.breaker.IsOpen() {
		return false
	}
	raw, err := e.client.Get(ctx, key(entityType, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			e.recordSuccess(ctx)
			return false
		}
		e.recordFailure(ctx, "entity cache read failed", err)
		return false
	}
	e.recordSuccess(ctx)
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	return true
}

// Set stores an entity; failures are logged, never surfaced.
func (e *Entity) Set(ctx context.Context, entityType, id string, entity any) {
	if e == nil || e.breaker.IsOpen() {
		return
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return
	}
	if err := e.client.Set(ctx, key(entityType, id), raw, e.ttl).Err(); err != nil {
		e.recordFailure(ctx, "entity cache write failed", err)
		return
	}
	e.recordSuccess(ctx)
}

// Invalidate drops an entity's cached response after a write. It bypasses the
// breaker: a missed invalidation would outlive the outage as stale data.
func (e *Entity) Invalidate(ctx context.Context, entityType, id string) {
	if e == nil {
		return
	}
	if err := e.client.Del(ctx, key(entityType, id)).Err(); err != nil {
		e.recordFailure(ctx, "entity cache invalidation failed", err)
		return
	}
	e.recordSuccess(ctx)
}

func (e *Entity) recordFailure(ctx context.Context, msg string, err error) {
	_, change := e.breaker.RecordFailure()
	if e.logger == nil {
		return
	}
	e.logger.WarnContext(ctx, msg, "error", err)
	if change.Opened {
		e.logger.WarnContext(ctx, "entity cache circuit opened; serving without cache")
	}
}

func (e *Entity) recordSuccess(ctx context.Context) {
	if _, change := e.breaker.RecordSuccess(); change.Closed && e.logger != nil {
		e.logger.InfoContext(ctx, "entity cache circuit closed; cache re-enabled")
	}
}
