//go:build integration

package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformredis "bonifica/internal/platform/redis"
	"bonifica/internal/transport/http/cache"
	"bonifica/pkg/testutil/containers"
)

type cachedGroup struct {
	ID   string `json:"id"`
	Code string `json:"sequential_code"`
}

func newEntityCache(t *testing.T) (*cache.Entity, context.Context) {
	t.Helper()
	ctx := context.Background()

	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(ctx))

	client := &platformredis.Client{Client: rc.Client}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cache.New(client, time.Minute, logger), ctx
}

func TestEntityCacheRoundTrip(t *testing.T) {
	c, ctx := newEntityCache(t)

	var dest cachedGroup
	assert.False(t, c.Get(ctx, "group", "g-1", &dest), "empty cache must miss")

	c.Set(ctx, "group", "g-1", cachedGroup{ID: "g-1", Code: "7"})

	require.True(t, c.Get(ctx, "group", "g-1", &dest))
	assert.Equal(t, "g-1", dest.ID)
	assert.Equal(t, "7", dest.Code)
}

func TestEntityCacheInvalidate(t *testing.T) {
	c, ctx := newEntityCache(t)

	c.Set(ctx, "group", "g-2", cachedGroup{ID: "g-2", Code: "1"})

	var dest cachedGroup
	require.True(t, c.Get(ctx, "group", "g-2", &dest))

	c.Invalidate(ctx, "group", "g-2")

	dest = cachedGroup{}
	assert.False(t, c.Get(ctx, "group", "g-2", &dest), "invalidated entry must miss")
}

func TestEntityCacheKeysAreScopedPerType(t *testing.T) {
	c, ctx := newEntityCache(t)

	c.Set(ctx, "group", "same-id", cachedGroup{ID: "same-id", Code: "3"})

	var dest cachedGroup
	assert.False(t, c.Get(ctx, "training-action", "same-id", &dest),
		"entity types must not share keys")
}

func TestEntityCacheNilPassThrough(t *testing.T) {
	ctx := context.Background()
	var c *cache.Entity

	var dest cachedGroup
	assert.False(t, c.Get(ctx, "group", "g-3", &dest))
	c.Set(ctx, "group", "g-3", cachedGroup{ID: "g-3"})
	c.Invalidate(ctx, "group", "g-3")
}
