package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx as the database/sql driver

	"jobboard-backend/internal/shared/telemetry"
)

// Profile selects pool defaults for a kind of process.
type Profile string

const (
	ProfileAPI    Profile = "api"
	ProfileWorker Profile = "worker"
	ProfileCLI    Profile = "cli"
)

// Options tunes the connection pool and the startup handshake.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	// ConnectAttempts bounds how many pings Connect makes before giving up.
	ConnectAttempts int
	RetryBackoff    time.Duration
}

var openDB = sql.Open

// Defaults returns pool settings for the given profile. Unknown profiles get
// the API settings.
func Defaults(p Profile) Options {
	switch p {
	case ProfileWorker:
		// one connection per in-flight evaluation plus headroom
		return Options{
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: time.Minute,
			PingTimeout:     5 * time.Second,
			ConnectAttempts: 10,
			RetryBackoff:    time.Second,
		}
	case ProfileCLI:
		return Options{
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			PingTimeout:     5 * time.Second,
			ConnectAttempts: 1,
		}
	default:
		return Options{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 2 * time.Minute,
			PingTimeout:     5 * time.Second,
			ConnectAttempts: 5,
			RetryBackoff:    time.Second,
		}
	}
}

// FromEnv applies DB_* overrides on top of o. Malformed values are logged
// and ignored.
func (o Options) FromEnv() Options {
	ints := map[string]*int{
		"DB_MAX_OPEN_CONNS":   &o.MaxOpenConns,
		"DB_MAX_IDLE_CONNS":   &o.MaxIdleConns,
		"DB_CONNECT_ATTEMPTS": &o.ConnectAttempts,
	}
	for key, dst := range ints {
		if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				telemetry.Warn("db.bad_env", map[string]any{"key": key, "error": err})
				continue
			}
			*dst = v
		}
	}
	durations := map[string]*time.Duration{
		"DB_CONN_MAX_LIFETIME":  &o.ConnMaxLifetime,
		"DB_CONN_MAX_IDLE_TIME": &o.ConnMaxIdleTime,
		"DB_PING_TIMEOUT":       &o.PingTimeout,
		"DB_RETRY_BACKOFF":      &o.RetryBackoff,
	}
	for key, dst := range durations {
		if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
			v, err := time.ParseDuration(raw)
			if err != nil {
				telemetry.Warn("db.bad_env", map[string]any{"key": key, "error": err})
				continue
			}
			*dst = v
		}
	}
	return o
}

// Connect opens a pgx-backed pool and pings it until it answers or the
// attempts run out. Postgres often comes up after the app under compose.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configure(pool, opts)

	attempts := max(opts.ConnectAttempts, 1)
	for attempt := 1; ; attempt++ {
		err = ping(ctx, pool, opts.PingTimeout)
		if err == nil {
			break
		}
		if attempt >= attempts {
			_ = pool.Close()
			return nil, fmt.Errorf("ping database after %d attempt(s): %w", attempt, err)
		}
		telemetry.Warn("db.ping_retry", map[string]any{"attempt": attempt, "error": err})
		select {
		case <-ctx.Done():
			_ = pool.Close()
			return nil, ctx.Err()
		case <-time.After(opts.RetryBackoff):
		}
	}

	stats := pool.Stats()
	telemetry.Info("db.ready", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
	})
	return pool, nil
}

func ping(ctx context.Context, pool *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return pool.PingContext(pingCtx)
}

func configure(pool *sql.DB, opts Options) {
	fallback := Defaults(ProfileAPI)
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = fallback.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = fallback.MaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = fallback.ConnMaxLifetime
	}
	pool.SetMaxOpenConns(opts.MaxOpenConns)
	pool.SetMaxIdleConns(opts.MaxIdleConns)
	pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}
