package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/infrastructure/cache"
)

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	rc, err := cache.NewRedisCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return rc, mr
}

func TestInstanceCache_PutThenGet_RoundTrips(t *testing.T) {
	rc, _ := newTestCache(t)
	ic := cache.NewInstanceCache(rc, time.Minute)
	ctx := context.Background()

	snap := cache.InstanceSnapshot{
		ID:        "inst-1",
		ModelRef:  "order.bpmn",
		Status:    "waiting",
		Variables: map[string]interface{}{"approved": false},
		UpdatedAt: time.Unix(1000, 0).UTC(),
	}
	require.NoError(t, ic.Put(ctx, snap))

	got, ok, err := ic.Get(ctx, "inst-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.ID, got.ID)
	require.Equal(t, snap.Status, got.Status)
	require.Equal(t, snap.Variables["approved"], got.Variables["approved"])
}

func TestInstanceCache_Get_MissReturnsFalse(t *testing.T) {
	rc, _ := newTestCache(t)
	ic := cache.NewInstanceCache(rc, time.Minute)

	_, ok, err := ic.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInstanceCache_Invalidate_RemovesEntry(t *testing.T) {
	rc, _ := newTestCache(t)
	ic := cache.NewInstanceCache(rc, time.Minute)
	ctx := context.Background()

	require.NoError(t, ic.Put(ctx, cache.InstanceSnapshot{ID: "inst-2"}))
	require.NoError(t, ic.Invalidate(ctx, "inst-2"))

	_, ok, err := ic.Get(ctx, "inst-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInstanceCache_Get_ExpiredEntryIsAMiss(t *testing.T) {
	rc, mr := newTestCache(t)
	ic := cache.NewInstanceCache(rc, time.Second)
	ctx := context.Background()

	require.NoError(t, ic.Put(ctx, cache.InstanceSnapshot{ID: "inst-3"}))
	mr.FastForward(2 * time.Second)

	_, ok, err := ic.Get(ctx, "inst-3")
	require.NoError(t, err)
	require.False(t, ok)
}
