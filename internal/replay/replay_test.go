package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/hub"
	"github.com/sweeney/activity-sensor/internal/logic"
)

func testThresholds() logic.Thresholds {
	return logic.Thresholds{Fidget: 0.020, Active: 0.040, AlertSeconds: 1200}
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensor.log")
	var data []byte
	for _, line := range lines {
		data = append(data, line...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunReplaysLogInOrder(t *testing.T) {
	path := writeLog(t,
		`[2026-01-23 16:12:03.123] {"ts":"16:12:03","pir":0,"acc":0.01}`, // timestamp prefix
		`{"ts":"16:12:04","pir":0,"acc":0.01}`,                           // bare payload
		"serial noise without payload",
		`{"ts":"16:12:05","pir":1,"acc":0.01}`,
	)

	h := hub.New(nil, zap.NewNop())
	sub := h.Subscribe(10)
	defer sub.Cancel()

	count, err := Run(context.Background(), path, 0, testThresholds(), h)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	first := <-sub.States()
	assert.Equal(t, logic.StateSedentary, first.Activity)
	assert.Equal(t, uint64(0), first.TimerSeconds)

	second := <-sub.States()
	assert.Equal(t, logic.StateSedentary, second.Activity)
	assert.Equal(t, uint64(1), second.TimerSeconds, "new second label increments the timer")

	third := <-sub.States()
	assert.Equal(t, logic.StateActive, third.Activity)
	assert.Equal(t, uint64(0), third.TimerSeconds, "ACTIVE resets the timer")
}

func TestRunSkipsMalformedPayloads(t *testing.T) {
	path := writeLog(t,
		`{"ts":"16:12:03","pir":0,"acc":`,
		`{"ts":"16:12:04","pir":0,"acc":0.01}`,
	)

	h := hub.New(nil, zap.NewNop())
	sub := h.Subscribe(10)
	defer sub.Cancel()

	count, err := Run(context.Background(), path, 0, testThresholds(), h)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunMissingFileIsError(t *testing.T) {
	h := hub.New(nil, zap.NewNop())

	count, err := Run(context.Background(), filepath.Join(t.TempDir(), "missing.log"), 0, testThresholds(), h)
	require.Error(t, err)
	assert.Zero(t, count)
}

func TestRunHonorsCancellation(t *testing.T) {
	path := writeLog(t,
		`{"ts":"16:12:03","pir":0,"acc":0.01}`,
		`{"ts":"16:12:04","pir":0,"acc":0.01}`,
		`{"ts":"16:12:05","pir":0,"acc":0.01}`,
	)

	h := hub.New(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := Run(ctx, path, 10*time.Millisecond, testThresholds(), h)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, count, "cancellation is observed at the pacing delay")
}
