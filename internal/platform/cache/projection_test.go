package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestProjection(t *testing.T) *Projection {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProjection(client, time.Minute)
}

func TestFetchJSONPopulatesAndServesFromCache(t *testing.T) {
	proj := newTestProjection(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"value": 42}, nil
	}

	key, err := proj.BuildKey(ctx, 7, "stock", "reorder")
	require.NoError(t, err)

	var out map[string]int
	require.NoError(t, proj.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 42, out["value"])
	require.Equal(t, 1, calls)

	out = nil
	require.NoError(t, proj.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 42, out["value"])
	require.Equal(t, 1, calls, "second fetch must hit the cache")
}

func TestBumpInvalidatesKeys(t *testing.T) {
	proj := newTestProjection(t)
	ctx := context.Background()

	first, err := proj.BuildKey(ctx, 7, "stock", "reorder")
	require.NoError(t, err)

	require.NoError(t, proj.Bump(ctx, 7))

	second, err := proj.BuildKey(ctx, 7, "stock", "reorder")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVersionsAreScopedPerOrg(t *testing.T) {
	proj := newTestProjection(t)
	ctx := context.Background()

	require.NoError(t, proj.Bump(ctx, 7))

	otherKey, err := proj.BuildKey(ctx, 8, "stock", "reorder")
	require.NoError(t, err)

	require.NoError(t, proj.Bump(ctx, 7))

	unchanged, err := proj.BuildKey(ctx, 8, "stock", "reorder")
	require.NoError(t, err)
	require.Equal(t, otherKey, unchanged)
}

func TestNilProjectionFallsBackToLoader(t *testing.T) {
	var proj *Projection
	var out map[string]int
	err := proj.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return map[string]int{"value": 1}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, out["value"])
}
