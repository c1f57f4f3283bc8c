package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 0.020, cfg.ThreshFidget)
	assert.Equal(t, 0.040, cfg.ThreshActive)
	assert.Equal(t, uint64(1200), cfg.AlertLimitSeconds)
	assert.Equal(t, 10, cfg.FallbackTimeoutSeconds)
	assert.Equal(t, 500, cfg.FallbackBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.FallbackReplayInterval)
	assert.False(t, cfg.DisableFallback)
	assert.Equal(t, "arduino_data.log", cfg.ReplayLogPath)
	assert.Equal(t, 50*time.Millisecond, cfg.ReplaySpeed)
	assert.Equal(t, 500, cfg.HistoryLimit)
	assert.False(t, cfg.SkipHistory)
	assert.Nil(t, cfg.DefaultUserID)
	assert.Empty(t, cfg.MQTTBroker, "MQTT disabled by default")
	assert.Equal(t, "0.0.0.0:8000", cfg.ServerAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERIAL_PORT", "/dev/ttyACM1")
	t.Setenv("THRESH_FIDGET", "0.010")
	t.Setenv("THRESH_ACTIVE", "0.030")
	t.Setenv("ALERT_LIMIT_SECONDS", "600")
	t.Setenv("FALLBACK_REPLAY_INTERVAL_MS", "250")
	t.Setenv("DISABLE_FALLBACK", "true")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM1", cfg.SerialPort)
	assert.Equal(t, 0.010, cfg.ThreshFidget)
	assert.Equal(t, 0.030, cfg.ThreshActive)
	assert.Equal(t, uint64(600), cfg.AlertLimitSeconds)
	assert.Equal(t, 250*time.Millisecond, cfg.FallbackReplayInterval)
	assert.True(t, cfg.DisableFallback)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
}

func TestLoadRejectsMalformedNumber(t *testing.T) {
	t.Setenv("THRESH_ACTIVE", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "THRESH_ACTIVE")
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("THRESH_FIDGET", "0.050")
	t.Setenv("THRESH_ACTIVE", "0.040")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "THRESH_FIDGET")
}

func TestLoadRejectsBadUserID(t *testing.T) {
	t.Setenv("DEFAULT_USER_ID", "not-a-uuid")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_USER_ID")
}

func TestLoadParsesUserID(t *testing.T) {
	t.Setenv("DEFAULT_USER_ID", "a2a31a6c-bf8f-4b6b-9a62-6442c8d225a9")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.DefaultUserID)
	assert.Equal(t, "a2a31a6c-bf8f-4b6b-9a62-6442c8d225a9", cfg.DefaultUserID.String())
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("FALLBACK_BATCH_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FALLBACK_BATCH_SIZE")
}

func TestThresholds(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	th := cfg.Thresholds()
	assert.Equal(t, 0.020, th.Fidget)
	assert.Equal(t, 0.040, th.Active)
	assert.Equal(t, uint64(1200), th.AlertSeconds)
}

func TestDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "sensor")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "activity")
	t.Setenv("DB_SSLMODE", "require")

	cfg, err := Load()
	require.NoError(t, err)

	want := "host=db.internal port=5433 user=sensor password=secret dbname=activity sslmode=require"
	assert.Equal(t, want, cfg.DSN())
}
