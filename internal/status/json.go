package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Activity      string     `json:"activity"`
	TimerSeconds  uint64     `json:"timer_seconds"`
	SmoothedAcc   float64    `json:"smoothed_acc"`
	Alert         bool       `json:"alert"`
	Mode          string     `json:"mode"`
	Ready         bool       `json:"ready"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of pipeline counters.
type CountsJSON struct {
	Published   int `json:"published"`
	ParseErrors int `json:"parse_errors"`
	Backfills   int `json:"backfills"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SerialPort             string  `json:"serial_port"`
	BaudRate               int     `json:"baud_rate"`
	ThreshFidget           float64 `json:"thresh_fidget"`
	ThreshActive           float64 `json:"thresh_active"`
	AlertLimitSeconds      uint64  `json:"alert_limit_seconds"`
	FallbackTimeoutSeconds int     `json:"fallback_timeout_seconds"`
	HistoryLimit           int     `json:"history_limit"`
	Broker                 string  `json:"broker,omitempty"`
	HTTPAddr               string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Activity:      "UNKNOWN",
		Mode:          string(snap.Mode),
		Ready:         snap.Last != nil,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Published:   snap.Counts.Published,
			ParseErrors: snap.Counts.ParseErrors,
			Backfills:   snap.Counts.Backfills,
		},
		Config: ConfigJSON{
			SerialPort:             snap.Config.SerialPort,
			BaudRate:               snap.Config.BaudRate,
			ThreshFidget:           snap.Config.ThreshFidget,
			ThreshActive:           snap.Config.ThreshActive,
			AlertLimitSeconds:      snap.Config.AlertLimitSeconds,
			FallbackTimeoutSeconds: snap.Config.FallbackTimeoutSeconds,
			HistoryLimit:           snap.Config.HistoryLimit,
			Broker:                 snap.Config.Broker,
			HTTPAddr:               snap.Config.HTTPAddr,
		},
	}

	if snap.Last != nil {
		inner.Activity = string(snap.Last.Activity)
		inner.TimerSeconds = snap.Last.TimerSeconds
		inner.SmoothedAcc = snap.Last.SmoothedAcc
		inner.Alert = snap.Last.Alert
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
