// Package store persists classified states to Postgres and reads them back
// for the fallback backfill. Storage failures never stop the pipeline: writes
// are logged and skipped, reads surface an error to the backfill caller.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/logic"
)

// Store wraps the Postgres connection pool.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to Postgres with the given DSN and verifies the connection.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an existing connection pool. Used by tests with sqlmock.
func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertState appends one classified state to sedentary_log. created_at is
// assigned by the database.
func (s *Store) InsertState(ctx context.Context, st logic.State) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sedentary_log (state, timer_seconds, acceleration_val)
		 VALUES ($1, $2, $3)`,
		string(st.Activity), int64(st.TimerSeconds), st.SmoothedAcc,
	)
	if err != nil {
		return fmt.Errorf("insert sedentary_log: %w", err)
	}
	return nil
}

// InsertUserState mirrors a state into sensor_data for per-user statistics.
func (s *Store) InsertUserState(ctx context.Context, userID uuid.UUID, st logic.State) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sensor_data (user_id, state, timer_seconds, acceleration_val, alert_triggered, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, string(st.Activity), int64(st.TimerSeconds), st.SmoothedAcc, st.Alert, st.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sensor_data: %w", err)
	}
	return nil
}

// RecentStates returns the newest limit rows from sedentary_log, newest first.
// Alert is left unset; the backfill derives it from the stored timer and the
// configured alert limit.
func (s *Store) RecentStates(ctx context.Context, limit int) ([]logic.State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, timer_seconds, acceleration_val, created_at
		 FROM sedentary_log
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sedentary_log: %w", err)
	}
	defer rows.Close()

	var out []logic.State
	for rows.Next() {
		var (
			state   string
			timer   sql.NullInt64
			val     sql.NullFloat64
			created sql.NullTime
		)
		if err := rows.Scan(&state, &timer, &val, &created); err != nil {
			return nil, fmt.Errorf("scan sedentary_log row: %w", err)
		}
		st := logic.State{
			Activity:    logic.Activity(state),
			SmoothedAcc: val.Float64,
			ObservedAt:  created.Time,
		}
		if timer.Valid && timer.Int64 > 0 {
			st.TimerSeconds = uint64(timer.Int64)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sedentary_log rows: %w", err)
	}
	return out, nil
}

// RunWriter consumes classified states from the channel and persists each one.
// Database failures are logged and skipped — observers are unaffected. When
// defaultUser is non-nil every row is mirrored into sensor_data. Returns when
// the channel closes or ctx is cancelled.
func (s *Store) RunWriter(ctx context.Context, states <-chan logic.State, defaultUser *uuid.UUID) {
	s.logger.Info("storage writer started")
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := s.InsertState(ctx, st); err != nil {
				s.logger.Warn("sedentary_log insert failed", zap.Error(err))
			}
			if defaultUser != nil {
				if err := s.InsertUserState(ctx, *defaultUser, st); err != nil {
					s.logger.Warn("sensor_data insert failed", zap.Error(err))
				}
			}
		}
	}
}
