// Package fallback keeps observers fed during hardware outages. A periodic
// monitor watches the liveness tracker; once the serial stream has been idle
// past the timeout it replays persisted history through the distributor, and
// hands back to the live stream the moment real data returns.
package fallback

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/hub"
	"github.com/sweeney/activity-sensor/internal/liveness"
	"github.com/sweeney/activity-sensor/internal/logic"
	"github.com/sweeney/activity-sensor/internal/status"
)

// Reader supplies persisted states for backfill, newest first.
// Implemented by internal/store.
type Reader interface {
	RecentStates(ctx context.Context, limit int) ([]logic.State, error)
}

// Options tunes the monitor. Zero values take the defaults below.
type Options struct {
	// IdleTimeout is how long the serial stream may be silent before the
	// monitor enters fallback.
	IdleTimeout time.Duration
	// Tick is the monitor's check interval.
	Tick time.Duration
	// BatchSize is how many persisted rows one backfill episode replays.
	BatchSize int
	// ReplayInterval is the pause between replayed records, pacing the
	// stream so it does not flood observers.
	ReplayInterval time.Duration
	// AlertLimit re-derives the alert flag from the stored timer, since the
	// log does not persist it.
	AlertLimit uint64
}

const (
	defaultIdleTimeout    = 10 * time.Second
	defaultTick           = time.Second
	defaultBatchSize      = 500
	defaultReplayInterval = 100 * time.Millisecond
)

// Monitor is the fallback controller. It cycles between the LIVE and BACKFILL
// regimes for the process lifetime; there is no terminal state.
type Monitor struct {
	reader  Reader
	hub     *hub.Hub
	tracker *liveness.Tracker
	status  *status.Tracker
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

// NewMonitor wires a Monitor. The status tracker is optional.
func NewMonitor(reader Reader, h *hub.Hub, tracker *liveness.Tracker, st *status.Tracker, logger *zap.Logger, opts Options) *Monitor {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.ReplayInterval <= 0 {
		opts.ReplayInterval = defaultReplayInterval
	}
	return &Monitor{
		reader:  reader,
		hub:     h,
		tracker: tracker,
		status:  st,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("fallback monitor started",
		zap.Duration("timeout", m.opts.IdleTimeout),
		zap.Int("batch", m.opts.BatchSize),
		zap.Duration("replay_interval", m.opts.ReplayInterval),
	)

	ticker := time.NewTicker(m.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check performs one LIVE->BACKFILL evaluation and, on transition, runs a
// backfill episode to completion or early abort.
func (m *Monitor) check(ctx context.Context) {
	idle := m.tracker.IdleFor(m.now())
	if idle < m.opts.IdleTimeout || m.tracker.InFallback() {
		return
	}
	if !m.tracker.EnterFallback() {
		return
	}

	m.logger.Warn("hardware unavailable, entering fallback mode", zap.Duration("idle", idle))
	if m.status != nil {
		m.status.SetMode(status.ModeBackfill)
	}

	if err := m.backfill(ctx); err != nil {
		m.logger.Error("backfill failed", zap.Error(err))
	}
}

// backfill fetches the newest batch and replays it chronologically. Stored
// timer values are replayed verbatim, not re-classified. Each iteration
// re-checks the liveness flag so an in-flight batch stops the moment the
// hardware stream resumes.
func (m *Monitor) backfill(ctx context.Context) error {
	rows, err := m.reader.RecentStates(ctx, m.opts.BatchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		m.logger.Info("no historical data available for backfill")
		return nil
	}

	m.logger.Info("backfilling from storage", zap.Int("rows", len(rows)))

	// Rows arrive newest first; replay oldest to newest.
	for i := len(rows) - 1; i >= 0; i-- {
		if !m.tracker.InFallback() {
			m.logger.Info("hardware reconnected during backfill, stopping replay")
			return nil
		}

		st := rows[i]
		st.Alert = st.TimerSeconds >= m.opts.AlertLimit
		m.hub.Publish(ctx, st)
		if m.status != nil {
			m.status.RecordState(st)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.opts.ReplayInterval):
		}
	}

	m.logger.Info("backfill complete")
	return nil
}
