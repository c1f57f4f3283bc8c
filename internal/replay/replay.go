// Package replay reproduces the live classification pipeline from a recorded
// sensor log. Used for demos and testing; fully reproducible because it runs
// its own classifier over the recorded readings at a fixed pace.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/hub"
	"github.com/sweeney/activity-sensor/internal/logic"
)

// Run replays the log at path, publishing one classified state per valid line
// with the given delay between records. Malformed lines are skipped. The
// liveness tracker is deliberately not touched: a replay must never mask a
// real hardware outage.
//
// Returns the number of records published. A missing or unreadable file is an
// error; the caller logs it and does not restart the replay.
func Run(ctx context.Context, path string, interval time.Duration, thresholds logic.Thresholds, h *hub.Hub) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open replay log: %w", err)
	}
	defer f.Close()

	classifier := logic.NewClassifier(thresholds)
	count := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Capture logs may prefix each line with a timestamp, e.g.
		// "[2026-01-23 16:12:03.123] {...}". The payload starts at the brace.
		start := strings.IndexByte(line, '{')
		if start < 0 {
			continue
		}

		var reading logic.Reading
		if err := json.Unmarshal([]byte(line[start:]), &reading); err != nil {
			continue
		}

		st := classifier.Classify(reading, time.Now())
		h.Publish(ctx, st)
		count++

		if interval > 0 {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read replay log: %w", err)
	}

	return count, nil
}

// Start launches Run on its own goroutine and logs the outcome.
func Start(ctx context.Context, path string, interval time.Duration, thresholds logic.Thresholds, h *hub.Hub, logger *zap.Logger) {
	logger.Info("starting replay",
		zap.String("path", path),
		zap.Duration("interval", interval),
	)
	go func() {
		count, err := Run(ctx, path, interval, thresholds, h)
		if err != nil {
			logger.Error("replay failed", zap.Int("records", count), zap.Error(err))
			return
		}
		logger.Info("replay complete", zap.Int("records", count))
	}()
}
