package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/activity-sensor/internal/logic"
)

func newTestCache(t *testing.T, limit int) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, limit), mr
}

func stateAt(sec int) logic.State {
	return logic.State{
		Activity:     logic.StateSedentary,
		TimerSeconds: uint64(sec),
		SmoothedAcc:  0.01,
		ObservedAt:   time.Date(2026, 3, 1, 10, 0, sec, 0, time.UTC),
	}
}

func TestAppendAndRecentRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Append(ctx, stateAt(i)))
	}

	got, err := cache.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Oldest first, regardless of LPUSH storing newest first.
	for i, st := range got {
		assert.Equal(t, uint64(i), st.TimerSeconds)
		assert.Equal(t, logic.StateSedentary, st.Activity)
	}
}

func TestAppendTrimsToCapacity(t *testing.T) {
	cache, mr := newTestCache(t, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, cache.Append(ctx, stateAt(i)))
	}

	raw, err := mr.List(Key)
	require.NoError(t, err)
	assert.Len(t, raw, 5, "list should be trimmed to capacity")

	got, err := cache.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, uint64(3), got[0].TimerSeconds, "oldest surviving entry")
	assert.Equal(t, uint64(7), got[len(got)-1].TimerSeconds, "newest entry")
}

func TestRecentSkipsCorruptEntries(t *testing.T) {
	cache, mr := newTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, cache.Append(ctx, stateAt(0)))
	mr.Lpush(Key, "not json")
	require.NoError(t, cache.Append(ctx, stateAt(1)))

	got, err := cache.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(0), got[0].TimerSeconds)
	assert.Equal(t, uint64(1), got[1].TimerSeconds)
}

func TestRecentEmptyWindow(t *testing.T) {
	cache, _ := newTestCache(t, 10)

	got, err := cache.Recent(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecentReportsConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := New(client, 10)

	mr.Close()

	_, err := cache.Recent(context.Background())
	require.Error(t, err)

	err = cache.Append(context.Background(), stateAt(0))
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), Key)
}
