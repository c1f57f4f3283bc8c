// Package liveness tracks when raw sensor data last arrived and whether the
// pipeline is currently serving backfilled history instead of live data.
package liveness

import (
	"sync/atomic"
	"time"
)

// Tracker is the process-wide liveness state, shared by the serial listener
// (writes lastData), the fallback monitor (reads idle time, writes inFallback)
// and the backfill loop (reads inFallback). Each field is independently atomic;
// readers may observe a mix of old and new values, which is tolerable because
// staleness is bounded by the monitor's tick interval.
type Tracker struct {
	lastData   atomic.Int64 // unix seconds of the last raw reading
	inFallback atomic.Bool
}

// NewTracker creates a Tracker with lastData initialized to now, so a fresh
// process does not immediately trip the idle timeout.
func NewTracker(now time.Time) *Tracker {
	t := &Tracker{}
	t.lastData.Store(now.Unix())
	return t
}

// RecordData notes that a raw reading arrived at now. It reports whether this
// reading ended a fallback episode, so the caller can log the reconnection.
func (t *Tracker) RecordData(now time.Time) (exitedFallback bool) {
	t.lastData.Store(now.Unix())
	return t.inFallback.CompareAndSwap(true, false)
}

// IdleFor returns how long it has been since the last raw reading.
func (t *Tracker) IdleFor(now time.Time) time.Duration {
	idle := now.Unix() - t.lastData.Load()
	if idle < 0 {
		idle = 0
	}
	return time.Duration(idle) * time.Second
}

// InFallback reports whether the pipeline is in the backfill regime.
func (t *Tracker) InFallback() bool {
	return t.inFallback.Load()
}

// EnterFallback flips the pipeline into the backfill regime. It reports
// whether this call performed the transition (false if already in fallback).
func (t *Tracker) EnterFallback() bool {
	return t.inFallback.CompareAndSwap(false, true)
}
