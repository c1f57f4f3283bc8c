// Command activity-sensor reads raw readings from a serial-attached motion
// sensor, classifies activity in real time, and distributes the classified
// states to HTTP stream clients, MQTT, the Redis history window and Postgres.
// When the hardware goes quiet, persisted history is replayed so observers
// keep receiving data.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/config"
	"github.com/sweeney/activity-sensor/internal/fallback"
	"github.com/sweeney/activity-sensor/internal/history"
	"github.com/sweeney/activity-sensor/internal/hub"
	"github.com/sweeney/activity-sensor/internal/liveness"
	"github.com/sweeney/activity-sensor/internal/logger"
	"github.com/sweeney/activity-sensor/internal/logic"
	"github.com/sweeney/activity-sensor/internal/mqtt"
	"github.com/sweeney/activity-sensor/internal/serial"
	"github.com/sweeney/activity-sensor/internal/status"
	"github.com/sweeney/activity-sensor/internal/store"
	"github.com/sweeney/activity-sensor/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "activity-sensor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// History window. Redis being down degrades the stream seed, nothing else.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	h := hub.New(openHistory(ctx, rdb, cfg, log), log)

	tracker := status.NewTracker(time.Now(), status.Config{
		SerialPort:             cfg.SerialPort,
		BaudRate:               cfg.BaudRate,
		ThreshFidget:           cfg.ThreshFidget,
		ThreshActive:           cfg.ThreshActive,
		AlertLimitSeconds:      cfg.AlertLimitSeconds,
		FallbackTimeoutSeconds: cfg.FallbackTimeoutSeconds,
		HistoryLimit:           cfg.HistoryLimit,
		Broker:                 cfg.MQTTBroker,
		HTTPAddr:               cfg.ServerAddress,
	})
	live := liveness.NewTracker(time.Now())

	// Persistence. Postgres being down disables the writer and backfill; the
	// live pipeline keeps running.
	db, err := store.Open(cfg.DSN(), log)
	if err != nil {
		log.Warn("postgres unavailable, persistence and backfill disabled", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
		writerSub := h.Subscribe(0)
		defer writerSub.Cancel()
		go db.RunWriter(ctx, writerSub.States(), cfg.DefaultUserID)
	}

	// Live serial source. An unopenable port only loses the live source; the
	// fallback controller takes over once the idle timeout expires.
	port, err := serial.Open(cfg.SerialPort, cfg.BaudRate)
	if err != nil {
		log.Error("serial open failed, live source disabled",
			zap.String("port", cfg.SerialPort),
			zap.Error(err),
		)
	} else {
		defer port.Close()
		listener := serial.NewListener(port, logic.NewClassifier(cfg.Thresholds()), live, h, tracker, log)
		go listener.Run(ctx)
	}

	switch {
	case cfg.DisableFallback:
		log.Info("fallback disabled by configuration")
	case db == nil:
		log.Warn("fallback disabled, storage unavailable")
	default:
		monitor := fallback.NewMonitor(db, h, live, tracker, log, fallback.Options{
			IdleTimeout:    time.Duration(cfg.FallbackTimeoutSeconds) * time.Second,
			BatchSize:      cfg.FallbackBatchSize,
			ReplayInterval: cfg.FallbackReplayInterval,
			AlertLimit:     cfg.AlertLimitSeconds,
		})
		go monitor.Run(ctx)
	}

	// MQTT publisher, disabled when no broker is configured.
	var publisher mqtt.Publisher
	if cfg.MQTTBroker != "" {
		real, err := mqtt.NewRealPublisher(cfg.MQTTBroker, cfg.MQTTClientID, log, tracker.SetMQTTConnected)
		if err != nil {
			log.Warn("mqtt connect failed, publisher disabled", zap.Error(err))
		} else {
			publisher = real
			defer real.Close()

			mqttSub := h.Subscribe(0)
			defer mqttSub.Cancel()
			go mqtt.RunForwarder(ctx, mqttSub.States(), publisher, log)

			snap := tracker.Snapshot()
			startup := mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "STARTUP",
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
			}
			if err := publisher.PublishSystem(startup); err != nil {
				log.Warn("failed to publish startup event", zap.Error(err))
			} else {
				log.Info("published startup event")
			}
		}
	}

	srv := web.New(web.Options{
		Addr:    cfg.ServerAddress,
		Tracker: tracker,
		Hub:     h,
		Logger:  log,
		Replay: web.ReplayConfig{
			Path:       cfg.ReplayLogPath,
			Interval:   cfg.ReplaySpeed,
			Thresholds: cfg.Thresholds(),
		},
		SkipHistory: cfg.SkipHistory,
		BaseContext: ctx,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", zap.Error(err))
		}
	}()
	defer srv.Shutdown(context.Background())
	log.Info("http server listening", zap.String("addr", cfg.ServerAddress))

	log.Info("pipeline started",
		zap.String("serial", cfg.SerialPort),
		zap.Float64("thresh_fidget", cfg.ThreshFidget),
		zap.Float64("thresh_active", cfg.ThreshActive),
		zap.Uint64("alert_limit_seconds", cfg.AlertLimitSeconds),
	)

	sig := <-sigCh
	log.Info("shutting down", zap.String("signal", sig.String()))
	publishShutdown(publisher, tracker, sig, log)
	cancel()
	return nil
}

// openHistory pings Redis and builds the history window sized from config.
// Returns nil when Redis is unreachable; stream clients then start unseeded.
func openHistory(ctx context.Context, rdb *redis.Client, cfg *config.Config, log *zap.Logger) hub.History {
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, history window disabled", zap.Error(err))
		return nil
	}
	log.Info("history window ready",
		zap.String("redis", cfg.RedisAddr),
		zap.Int("limit", cfg.HistoryLimit),
	)
	return history.New(rdb, cfg.HistoryLimit)
}

// publishShutdown emits a retained SHUTDOWN event carrying a final status
// snapshot. Best effort: a failed publish is logged and shutdown continues.
func publishShutdown(publisher mqtt.Publisher, tracker *status.Tracker, sig os.Signal, log *zap.Logger) {
	if publisher == nil {
		return
	}

	reason := "UNKNOWN"
	switch sig {
	case syscall.SIGINT:
		reason = "SIGINT"
	case syscall.SIGTERM:
		reason = "SIGTERM"
	}

	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Warn("failed to publish shutdown event", zap.Error(err))
		return
	}
	log.Info("published shutdown event")
}
