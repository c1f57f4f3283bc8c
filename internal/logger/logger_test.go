package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	log, err := New("info", "json", "activity-sensor")
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Sync()
}

func TestNewConsole(t *testing.T) {
	log, err := New("debug", "console", "activity-sensor")
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewDefaultsToJSON(t *testing.T) {
	log, err := New("warn", "", "activity-sensor")
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("loud", "json", "activity-sensor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestNewRejectsBadFormat(t *testing.T) {
	_, err := New("info", "xml", "activity-sensor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}
