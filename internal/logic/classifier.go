package logic

import "time"

// Classifier turns raw readings into classified states. It owns the smoothing
// window and the sedentary timer, so each ingestion source must hold its own
// instance — live and replay classification never share smoothing history.
type Classifier struct {
	thresholds Thresholds
	window     []float64
	timer      uint64
	lastSecond string
}

// NewClassifier creates a Classifier with the given thresholds and an empty
// smoothing window.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{
		thresholds: t,
		window:     make([]float64, 0, SmoothingWindow),
	}
}

// Classify processes one reading and returns the resulting state.
// Deterministic given the reading, the classifier's accumulated state, and now;
// performs no I/O.
func (c *Classifier) Classify(r Reading, now time.Time) State {
	c.push(r.Acc)
	smoothed := c.smoothed()

	activity := c.activityFor(r.PIR, smoothed)

	// The timer is re-evaluated only when the second label changes, so any
	// number of readings within the same second leave it untouched.
	if r.TS != c.lastSecond {
		if c.lastSecond != "" {
			switch activity {
			case StateActive:
				c.timer = 0
			case StateFidget:
				// Frozen: fidgeting neither accumulates nor clears sedentary time.
			case StateSedentary:
				c.timer++
			}
		}
		c.lastSecond = r.TS
	}

	return State{
		Activity:     activity,
		TimerSeconds: c.timer,
		SmoothedAcc:  smoothed,
		Alert:        c.timer >= c.thresholds.AlertSeconds,
		ObservedAt:   ObservedAt(r.TS, now),
	}
}

// Timer returns the current sedentary timer value in seconds.
func (c *Classifier) Timer() uint64 {
	return c.timer
}

// push appends acc to the smoothing window, evicting the oldest sample once
// capacity is reached.
func (c *Classifier) push(acc float64) {
	if len(c.window) == SmoothingWindow {
		copy(c.window, c.window[1:])
		c.window[SmoothingWindow-1] = acc
		return
	}
	c.window = append(c.window, acc)
}

// smoothed returns the arithmetic mean of the window's contents, 0.0 if empty.
func (c *Classifier) smoothed() float64 {
	if len(c.window) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range c.window {
		sum += v
	}
	return sum / float64(len(c.window))
}

// activityFor applies the state rule in priority order: motion or a smoothed
// acceleration above the active threshold wins, then the fidget threshold,
// then sedentary.
func (c *Classifier) activityFor(pir int, smoothed float64) Activity {
	if pir == 1 || smoothed > c.thresholds.Active {
		return StateActive
	}
	if smoothed > c.thresholds.Fidget {
		return StateFidget
	}
	return StateSedentary
}

// ObservedAt resolves a time-of-day label against now's UTC date. Labels that
// do not parse fall back to now, so a glitched firmware clock cannot stall the
// stream.
func ObservedAt(label string, now time.Time) time.Time {
	tod, err := time.Parse("15:04:05", label)
	if err != nil {
		return now.UTC()
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC)
}
