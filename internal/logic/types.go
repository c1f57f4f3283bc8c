// Package logic contains pure classification logic for activity state tracking.
// This package has NO external dependencies (no serial, Redis, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Activity represents the classified activity state of the subject.
type Activity string

const (
	StateActive    Activity = "ACTIVE"
	StateFidget    Activity = "FIDGET"
	StateSedentary Activity = "SEDENTARY"
)

// SmoothingWindow is the number of acceleration samples averaged to suppress
// sensor noise. Matched to the firmware's sample rate; not configurable.
const SmoothingWindow = 10

// Reading is one raw sample as emitted by the sensor firmware, parsed from a
// JSON line on the serial stream or a recorded log.
type Reading struct {
	// TS is the firmware's time-of-day label at second resolution ("14:03:07").
	TS string `json:"ts"`
	// PIR is the passive-infrared motion flag: 1 = motion detected.
	PIR int `json:"pir"`
	// Acc is the acceleration magnitude.
	Acc float64 `json:"acc"`
}

// State is one classified record: the unit broadcast to observers and
// persisted to storage. The JSON keys are the wire format consumed by
// stream clients.
type State struct {
	Activity     Activity  `json:"state"`
	TimerSeconds uint64    `json:"timer"`
	SmoothedAcc  float64   `json:"val"`
	Alert        bool      `json:"alert"`
	ObservedAt   time.Time `json:"timestamp"`
}

// Thresholds holds the classification tuning values. These come from
// configuration, not constants.
type Thresholds struct {
	// Fidget is the smoothed-acceleration level above which the subject is
	// at least fidgeting.
	Fidget float64
	// Active is the smoothed-acceleration level above which the subject is
	// considered active even without PIR motion.
	Active float64
	// AlertSeconds is the sedentary-timer value at which Alert is raised.
	AlertSeconds uint64
}
