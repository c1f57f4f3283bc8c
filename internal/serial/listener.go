package serial

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/hub"
	"github.com/sweeney/activity-sensor/internal/liveness"
	"github.com/sweeney/activity-sensor/internal/logic"
	"github.com/sweeney/activity-sensor/internal/status"
)

// Listener reads raw readings from the port, classifies them, and publishes
// the results. It owns its own classifier instance, so its smoothing history
// never mixes with the replay source's.
type Listener struct {
	port       Port
	classifier *logic.Classifier
	tracker    *liveness.Tracker
	hub        *hub.Hub
	status     *status.Tracker
	logger     *zap.Logger
	now        func() time.Time
}

// NewListener wires a Listener. The status tracker is optional.
func NewListener(port Port, c *logic.Classifier, t *liveness.Tracker, h *hub.Hub, st *status.Tracker, logger *zap.Logger) *Listener {
	return &Listener{
		port:       port,
		classifier: c,
		tracker:    t,
		hub:        h,
		status:     st,
		logger:     logger,
		now:        time.Now,
	}
}

// Run reads lines until the port is exhausted or closed. Port reads block
// indefinitely, so Run must be called from its own dedicated goroutine; the
// ctx is only used for downstream publishing, not to interrupt the read.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("serial listener started, processing raw sensor data")

	scanner := bufio.NewScanner(l.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			// Firmware boot banners and partial lines.
			continue
		}

		var reading logic.Reading
		if err := json.Unmarshal([]byte(line), &reading); err != nil {
			if l.status != nil {
				l.status.CountParseError()
			}
			l.logger.Debug("discarding malformed reading", zap.String("line", line))
			continue
		}

		now := l.now()
		if l.tracker.RecordData(now) {
			l.logger.Info("hardware reconnected, exiting fallback mode")
			if l.status != nil {
				l.status.SetMode(status.ModeLive)
			}
		}

		st := l.classifier.Classify(reading, now)
		l.hub.Publish(ctx, st)
		if l.status != nil {
			l.status.RecordState(st)
		}
	}

	if err := scanner.Err(); err != nil {
		l.logger.Error("serial read failed", zap.Error(err))
		return
	}
	l.logger.Info("serial stream ended")
}
