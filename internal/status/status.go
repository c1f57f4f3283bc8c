// Package status provides a thread-safe status tracker for the activity-sensor
// daemon. It is read by HTTP handlers and embedded in MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/activity-sensor/internal/logic"
)

// Mode is the pipeline's current data regime.
type Mode string

const (
	ModeLive     Mode = "LIVE"
	ModeBackfill Mode = "BACKFILL"
)

// Counts tracks pipeline activity since startup.
type Counts struct {
	// Published is the number of states handed to the distributor.
	Published int
	// ParseErrors is the number of malformed serial lines discarded.
	ParseErrors int
	// Backfills is the number of fallback episodes entered.
	Backfills int
}

// Config contains daemon configuration for display.
type Config struct {
	SerialPort             string
	BaudRate               int
	ThreshFidget           float64
	ThreshActive           float64
	AlertLimitSeconds      uint64
	FallbackTimeoutSeconds int
	HistoryLimit           int
	Broker                 string
	HTTPAddr               string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	// Last is the most recently classified state, nil before the first reading.
	Last          *logic.State
	Mode          Mode
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// The pipeline starts in the LIVE regime.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      ModeLive,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordState notes a newly published state. Called on every classification
// and every backfilled record.
func (t *Tracker) RecordState(st logic.State) {
	t.mu.Lock()
	t.snap.Last = &st
	t.snap.Counts.Published++
	t.mu.Unlock()
}

// CountParseError notes a malformed serial line.
func (t *Tracker) CountParseError() {
	t.mu.Lock()
	t.snap.Counts.ParseErrors++
	t.mu.Unlock()
}

// SetMode records the pipeline regime. Entering BACKFILL counts an episode.
func (t *Tracker) SetMode(m Mode) {
	t.mu.Lock()
	if m == ModeBackfill && t.snap.Mode != ModeBackfill {
		t.snap.Counts.Backfills++
	}
	t.snap.Mode = m
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if t.snap.Last != nil {
		last := *t.snap.Last
		s.Last = &last
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
