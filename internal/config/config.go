// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/activity-sensor/internal/logic"
)

// Config is the full daemon configuration. All values come from the
// environment; unset variables take the documented defaults.
type Config struct {
	// Serial source
	SerialPort string
	BaudRate   int

	// Classification
	ThreshFidget      float64
	ThreshActive      float64
	AlertLimitSeconds uint64

	// Fallback controller
	FallbackTimeoutSeconds int
	FallbackBatchSize      int
	FallbackReplayInterval time.Duration
	DisableFallback        bool

	// Replay source
	ReplayLogPath string
	ReplaySpeed   time.Duration

	// History window
	HistoryLimit int
	SkipHistory  bool

	// Storage
	DefaultUserID *uuid.UUID
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string

	// MQTT; empty broker disables the publisher
	MQTTBroker   string
	MQTTClientID string

	// HTTP
	ServerAddress string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		SerialPort:    getEnv("SERIAL_PORT", "/dev/ttyUSB0"),
		ReplayLogPath: getEnv("REPLAY_LOG_PATH", "arduino_data.log"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "sensor"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		MQTTBroker:    getEnv("MQTT_BROKER", ""),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "activity-sensor"),
		ServerAddress: getEnv("SERVER_ADDRESS", "0.0.0.0:8000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.BaudRate, err = getEnvInt("BAUD_RATE", 115200); err != nil {
		return nil, err
	}
	if cfg.ThreshFidget, err = getEnvFloat("THRESH_FIDGET", 0.020); err != nil {
		return nil, err
	}
	if cfg.ThreshActive, err = getEnvFloat("THRESH_ACTIVE", 0.040); err != nil {
		return nil, err
	}
	alertLimit, err := getEnvInt("ALERT_LIMIT_SECONDS", 1200)
	if err != nil {
		return nil, err
	}
	cfg.AlertLimitSeconds = uint64(alertLimit)
	if cfg.FallbackTimeoutSeconds, err = getEnvInt("FALLBACK_TIMEOUT_SECONDS", 10); err != nil {
		return nil, err
	}
	if cfg.FallbackBatchSize, err = getEnvInt("FALLBACK_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	replayIntervalMs, err := getEnvInt("FALLBACK_REPLAY_INTERVAL_MS", 100)
	if err != nil {
		return nil, err
	}
	cfg.FallbackReplayInterval = time.Duration(replayIntervalMs) * time.Millisecond
	if cfg.DisableFallback, err = getEnvBool("DISABLE_FALLBACK", false); err != nil {
		return nil, err
	}
	replaySpeedMs, err := getEnvInt("REPLAY_SPEED_MS", 50)
	if err != nil {
		return nil, err
	}
	cfg.ReplaySpeed = time.Duration(replaySpeedMs) * time.Millisecond
	if cfg.HistoryLimit, err = getEnvInt("SENSOR_HISTORY_LIMIT", 500); err != nil {
		return nil, err
	}
	if cfg.SkipHistory, err = getEnvBool("SKIP_HISTORY", false); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if raw := os.Getenv("DEFAULT_USER_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse DEFAULT_USER_ID: %w", err)
		}
		cfg.DefaultUserID = &id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ThreshFidget < 0 || c.ThreshActive < 0 {
		return fmt.Errorf("thresholds must be non-negative (fidget=%g, active=%g)", c.ThreshFidget, c.ThreshActive)
	}
	if c.ThreshFidget >= c.ThreshActive {
		return fmt.Errorf("THRESH_FIDGET (%g) must be below THRESH_ACTIVE (%g)", c.ThreshFidget, c.ThreshActive)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("BAUD_RATE must be positive, got %d", c.BaudRate)
	}
	if c.FallbackTimeoutSeconds <= 0 {
		return fmt.Errorf("FALLBACK_TIMEOUT_SECONDS must be positive, got %d", c.FallbackTimeoutSeconds)
	}
	if c.FallbackBatchSize <= 0 {
		return fmt.Errorf("FALLBACK_BATCH_SIZE must be positive, got %d", c.FallbackBatchSize)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("SENSOR_HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

// Thresholds returns the classifier thresholds.
func (c *Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{
		Fidget:       c.ThreshFidget,
		Active:       c.ThreshActive,
		AlertSeconds: c.AlertLimitSeconds,
	}
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
