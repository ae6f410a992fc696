package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyDriver refuses pings until failures reaches zero.
type flakyDriver struct {
	failures *atomic.Int32
}

func (d flakyDriver) Open(string) (driver.Conn, error) { return flakyConn{d.failures}, nil }

type flakyConn struct {
	failures *atomic.Int32
}

func (flakyConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (flakyConn) Close() error                        { return nil }
func (flakyConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c flakyConn) Ping(context.Context) error {
	if c.failures.Add(-1) >= 0 {
		return errors.New("connection refused")
	}
	return nil
}

var (
	registerOnce sync.Once
	pingFailures atomic.Int32
)

func useFlakyDriver(t *testing.T, failures int32) {
	t.Helper()
	registerOnce.Do(func() { sql.Register("dbtest", flakyDriver{&pingFailures}) })
	pingFailures.Store(failures)
	prev := openDB
	openDB = func(_, dsn string) (*sql.DB, error) { return sql.Open("dbtest", dsn) }
	t.Cleanup(func() { openDB = prev })
}

func TestConnectRetriesUntilPingSucceeds(t *testing.T) {
	useFlakyDriver(t, 2)
	opts := Defaults(ProfileWorker)
	opts.RetryBackoff = time.Millisecond

	pool, err := Connect(context.Background(), "postgres://ignored", opts)
	require.NoError(t, err)
	defer pool.Close()
	assert.Equal(t, 4, pool.Stats().MaxOpenConnections)
}

func TestConnectGivesUp(t *testing.T) {
	useFlakyDriver(t, 10)
	opts := Defaults(ProfileAPI)
	opts.ConnectAttempts = 3
	opts.RetryBackoff = time.Millisecond

	_, err := Connect(context.Background(), "postgres://ignored", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempt(s)")
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ", Defaults(ProfileCLI))
	assert.Error(t, err)
}

func TestFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "oops")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")
	t.Setenv("DB_CONNECT_ATTEMPTS", "2")

	opts := Defaults(ProfileAPI).FromEnv()
	assert.Equal(t, 7, opts.MaxOpenConns)
	assert.Equal(t, 5, opts.MaxIdleConns, "malformed value keeps the default")
	assert.Equal(t, 20*time.Minute, opts.ConnMaxLifetime)
	assert.Equal(t, 45*time.Second, opts.ConnMaxIdleTime)
	assert.Equal(t, time.Second, opts.PingTimeout)
	assert.Equal(t, 2, opts.ConnectAttempts)
}
