// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/logic"
)

// Topic is the MQTT topic for classified activity states.
const Topic = "care/activity/sensor/states"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "care/activity/sensor/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a classified state to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(state logic.State) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// FormatPayload creates the JSON payload for a classified state. The state's
// own JSON encoding is the wire format consumers expect, so no wrapper.
func FormatPayload(state logic.State) ([]byte, error) {
	return json.Marshal(state)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// RunForwarder drains a distributor subscription into the publisher until the
// channel closes or ctx is cancelled. Publish failures are logged and the
// state dropped; the broker connection recovers on its own.
func RunForwarder(ctx context.Context, states <-chan logic.State, pub Publisher, logger *zap.Logger) {
	logger.Info("mqtt forwarder started", zap.String("topic", Topic))
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if err := pub.Publish(state); err != nil {
				logger.Warn("mqtt publish failed", zap.Error(err))
			}
		}
	}
}
