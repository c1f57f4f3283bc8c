package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/hub"
	"github.com/sweeney/activity-sensor/internal/liveness"
	"github.com/sweeney/activity-sensor/internal/logic"
	"github.com/sweeney/activity-sensor/internal/status"
)

type fakeReader struct {
	rows  []logic.State
	err   error
	calls int
}

func (f *fakeReader) RecentStates(_ context.Context, _ int) ([]logic.State, error) {
	f.calls++
	return f.rows, f.err
}

func observedAt(sec int) time.Time {
	return time.Date(2026, 3, 1, 10, 0, sec, 0, time.UTC)
}

func sedentary(sec int, timer uint64) logic.State {
	return logic.State{
		Activity:     logic.StateSedentary,
		TimerSeconds: timer,
		SmoothedAcc:  0.01,
		ObservedAt:   observedAt(sec),
	}
}

func newTestMonitor(reader Reader, opts Options) (*Monitor, *hub.Hub, *liveness.Tracker, *status.Tracker) {
	h := hub.New(nil, zap.NewNop())
	tracker := liveness.NewTracker(time.Unix(1000, 0))
	st := status.NewTracker(time.Now(), status.Config{})
	m := NewMonitor(reader, h, tracker, st, zap.NewNop(), opts)
	return m, h, tracker, st
}

func TestCheckEntersFallbackAfterTimeout(t *testing.T) {
	reader := &fakeReader{}
	m, _, tracker, st := newTestMonitor(reader, Options{IdleTimeout: 10 * time.Second})
	m.now = func() time.Time { return time.Unix(1010, 0) }

	m.check(context.Background())

	assert.True(t, tracker.InFallback())
	assert.Equal(t, status.ModeBackfill, st.Snapshot().Mode)
	assert.Equal(t, 1, st.Snapshot().Counts.Backfills)
	assert.Equal(t, 1, reader.calls)
}

func TestCheckStaysLiveBeforeTimeout(t *testing.T) {
	reader := &fakeReader{}
	m, _, tracker, st := newTestMonitor(reader, Options{IdleTimeout: 10 * time.Second})
	m.now = func() time.Time { return time.Unix(1009, 0) }

	m.check(context.Background())

	assert.False(t, tracker.InFallback())
	assert.Equal(t, status.ModeLive, st.Snapshot().Mode)
	assert.Zero(t, reader.calls, "no storage fetch while the stream is healthy")
}

func TestCheckDoesNotReenterWhileInFallback(t *testing.T) {
	reader := &fakeReader{}
	m, _, _, _ := newTestMonitor(reader, Options{IdleTimeout: 10 * time.Second})
	m.now = func() time.Time { return time.Unix(1010, 0) }

	m.check(context.Background())
	m.check(context.Background())

	assert.Equal(t, 1, reader.calls, "one backfill episode per outage")
}

func TestBackfillReplaysOldestFirstWithDerivedAlert(t *testing.T) {
	// Storage returns newest first; replay must be chronological.
	reader := &fakeReader{rows: []logic.State{
		sedentary(2, 1205),
		sedentary(1, 1199),
		sedentary(0, 1198),
	}}
	m, h, tracker, _ := newTestMonitor(reader, Options{
		ReplayInterval: time.Millisecond,
		AlertLimit:     1200,
	})
	tracker.EnterFallback()

	sub := h.Subscribe(10)
	defer sub.Cancel()

	require.NoError(t, m.backfill(context.Background()))

	first := <-sub.States()
	assert.Equal(t, observedAt(0), first.ObservedAt)
	assert.False(t, first.Alert)

	second := <-sub.States()
	assert.Equal(t, observedAt(1), second.ObservedAt)
	assert.False(t, second.Alert)

	third := <-sub.States()
	assert.Equal(t, observedAt(2), third.ObservedAt)
	assert.True(t, third.Alert, "alert re-derived from the stored timer")
}

func TestBackfillAbortsWhenHardwareResumes(t *testing.T) {
	reader := &fakeReader{rows: []logic.State{
		sedentary(2, 2),
		sedentary(1, 1),
		sedentary(0, 0),
	}}
	m, h, tracker, _ := newTestMonitor(reader, Options{
		ReplayInterval: 30 * time.Millisecond,
		AlertLimit:     1200,
	})
	tracker.EnterFallback()

	sub := h.Subscribe(10)
	defer sub.Cancel()

	done := make(chan error, 1)
	go func() { done <- m.backfill(context.Background()) }()

	first := <-sub.States()
	assert.Equal(t, observedAt(0), first.ObservedAt)

	// The live stream comes back while the replay is pacing.
	tracker.RecordData(time.Unix(2000, 0))

	require.NoError(t, <-done)
	assert.Empty(t, sub.States(), "no records emitted after the stream resumed")
}

func TestBackfillEmptyStorageIsNoop(t *testing.T) {
	reader := &fakeReader{}
	m, h, tracker, _ := newTestMonitor(reader, Options{ReplayInterval: time.Millisecond})
	tracker.EnterFallback()

	sub := h.Subscribe(10)
	defer sub.Cancel()

	require.NoError(t, m.backfill(context.Background()))
	assert.Empty(t, sub.States())
}

func TestBackfillReturnsReaderError(t *testing.T) {
	boom := errors.New("connection refused")
	reader := &fakeReader{err: boom}
	m, _, tracker, _ := newTestMonitor(reader, Options{})
	tracker.EnterFallback()

	require.ErrorIs(t, m.backfill(context.Background()), boom)
}

func TestBackfillHonorsCancellation(t *testing.T) {
	reader := &fakeReader{rows: []logic.State{
		sedentary(1, 1),
		sedentary(0, 0),
	}}
	m, h, tracker, _ := newTestMonitor(reader, Options{ReplayInterval: 10 * time.Millisecond})
	tracker.EnterFallback()

	sub := h.Subscribe(10)
	defer sub.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, m.backfill(ctx), context.Canceled)
	assert.Len(t, sub.States(), 1, "cancellation is observed at the pacing delay")
}
