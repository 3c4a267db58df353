package mysql

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/BaSui01/sqlagent/internal/metrics"
	"github.com/BaSui01/sqlagent/types"
)

const (
	// maxConnectAttempts bounds connection establishment. Backoff between
	// attempts is exponential starting at one second.
	maxConnectAttempts = 3

	// cursorMaxAttempts bounds scoped cursor acquisition.
	cursorMaxAttempts = 2
)

// =============================================================================
// Connection manager
// =============================================================================

// Manager guarantees every worker obtains a valid, fresh-enough connection
// handle, transparently replacing broken or stale ones. Handles are keyed by
// worker identity; reads of an already-valid handle are lock-free, and a
// single mutex serializes only the create-or-replace transition.
type Manager struct {
	cfg       Config
	db        *sql.DB
	log       *zap.Logger
	collector *metrics.Collector

	mu    sync.Mutex // guards create-or-replace, never steady-state reads
	conns sync.Map   // worker id -> *Conn

	closed atomic.Bool

	// test seams
	now              func() time.Time
	retryInterval    time.Duration
	cursorRetryPause time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithCollector attaches a metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(m *Manager) { m.collector = c }
}

// Open validates cfg, opens the session factory, and returns a Manager.
func Open(cfg Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, types.NewError(types.ErrConnectionFailed, "failed to open mysql driver").WithCause(err)
	}

	// The factory must behave as a pure session source: no idle sessions,
	// no lifetime management of its own. Staleness is this manager's job,
	// and an idle pool would resurrect sessions we consider dead.
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(0)
	db.SetConnMaxLifetime(0)

	return NewManager(db, cfg, logger, opts...), nil
}

// NewManager wraps an existing session factory. Callers that need DSN
// handling should use Open instead.
func NewManager(db *sql.DB, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:              cfg.withDefaults(),
		db:               db,
		log:              logger.With(zap.String("component", "mysql_manager")),
		now:              time.Now,
		retryInterval:    time.Second,
		cursorRetryPause: time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.log.Info("mysql manager initialized",
		zap.String("database", m.cfg.Database),
		zap.Duration("max_conn_age", m.cfg.MaxConnAge),
	)
	return m
}

// DatabaseName returns the configured database name.
func (m *Manager) DatabaseName() string {
	return m.cfg.Database
}

// Description returns the configured human-readable database note.
func (m *Manager) Description() string {
	return m.cfg.Description
}

// =============================================================================
// Handle acquisition
// =============================================================================

// Connection returns the worker's cached handle when it is live and younger
// than the maximum age, creating a replacement otherwise. The fast path is
// lock-free; only creation takes the manager lock.
func (m *Manager) Connection(ctx context.Context, worker string) (*Conn, error) {
	if m.closed.Load() {
		return nil, types.NewError(types.ErrManagerClosed, "mysql manager is closed")
	}
	if worker == "" {
		return nil, types.NewError(types.ErrConnectionFailed, "worker identity is required")
	}

	if c := m.currentConn(worker); m.usable(c) {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check inside the lock: the handle is per-worker, but another
	// path (invalidation, a prior scope) may have replaced it while we
	// waited for the lock.
	cur := m.currentConn(worker)
	if m.usable(cur) {
		return cur, nil
	}

	if cur != nil {
		reason := "fault"
		if cur.alive() {
			reason = "stale"
		}
		m.closeQuietly(cur, reason)
	}

	conn, err := m.establish(ctx)
	if err != nil {
		m.conns.Delete(worker)
		return nil, err
	}

	m.conns.Store(worker, conn)
	return conn, nil
}

// usable reports whether c is live and younger than the maximum age.
func (m *Manager) usable(c *Conn) bool {
	return c.alive() && m.now().Sub(c.createdAt) <= m.cfg.MaxConnAge
}

func (m *Manager) currentConn(worker string) *Conn {
	if v, ok := m.conns.Load(worker); ok {
		return v.(*Conn)
	}
	return nil
}

// establish creates one fresh session, retrying with exponential backoff.
// The final failure is wrapped as CONNECTION_FAILED, never swallowed.
func (m *Manager) establish(ctx context.Context) (*Conn, error) {
	var (
		sc      *sql.Conn
		attempt int
	)

	op := func() error {
		attempt++
		conn, err := m.db.Conn(ctx)
		if err == nil {
			if err = conn.PingContext(ctx); err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			m.log.Warn("mysql connection attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			m.collector.RecordConnectionRetry()
			return err
		}
		sc = conn
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.retryInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxConnectAttempts-1), ctx))
	if err != nil {
		return nil, types.NewErrorf(types.ErrConnectionFailed,
			"mysql connection failed after %d attempts", attempt).WithCause(err)
	}

	m.log.Info("mysql connection established", zap.Int("attempt", attempt))
	m.collector.RecordConnectionCreated(m.cfg.Database)

	return &Conn{sc: sc, createdAt: m.now()}, nil
}

// =============================================================================
// Invalidation
// =============================================================================

// Invalidate closes conn best-effort and clears the worker's cache entry,
// but only when conn is the worker's current handle or nil. Passing nil
// invalidates whatever the worker currently holds. This guards against a
// caller invalidating a handle that has already been replaced.
func (m *Manager) Invalidate(worker string, conn *Conn) {
	m.invalidate(worker, conn, "explicit")
}

func (m *Manager) invalidate(worker string, conn *Conn, reason string) {
	cur := m.currentConn(worker)
	target := conn
	if target == nil {
		target = cur
	}
	m.closeQuietly(target, reason)
	if conn == nil || cur == target {
		m.conns.Delete(worker)
	}
}

// closeQuietly closes c best-effort; close failures are logged, never
// returned.
func (m *Manager) closeQuietly(c *Conn, reason string) {
	closedNow, err := c.close()
	if !closedNow {
		return
	}
	if err != nil {
		m.log.Debug("ignoring close failure during invalidation", zap.Error(err))
	}
	m.collector.RecordConnectionInvalidated(m.cfg.Database, reason)
}

// =============================================================================
// Scoped cursor
// =============================================================================

// WithCursor acquires a transaction-scoped cursor for the worker and runs fn
// inside it. Acquisition retries once after a pause, invalidating the failed
// handle between attempts. When fn returns nil the transaction is committed;
// when fn returns an error the transaction is rolled back best-effort, the
// handle is invalidated if the error suggests a connection-level fault, and
// the original error is returned unchanged.
func (m *Manager) WithCursor(ctx context.Context, worker string, fn func(*Cursor) error) error {
	var (
		conn    *Conn
		cur     *Cursor
		lastErr error
	)

	for attempt := 1; ; attempt++ {
		var err error
		conn, err = m.Connection(ctx, worker)
		if err == nil {
			cur, err = newCursor(ctx, conn)
			if err == nil {
				break
			}
		}

		lastErr = err
		m.log.Warn("failed to acquire cursor",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		m.invalidate(worker, conn, "fault")
		conn, cur = nil, nil

		if attempt >= cursorMaxAttempts {
			return types.NewError(types.ErrCursorAcquire, "unable to acquire mysql cursor").WithCause(lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cursorRetryPause):
		}
	}

	err := fn(cur)
	if err == nil {
		if err = cur.commit(); err == nil {
			return nil
		}
		// A failed commit takes the same exit as a failed body.
	}

	cur.rollbackQuietly(m.log)
	if isConnFault(err) {
		m.log.Warn("connection fault inside cursor scope, invalidating", zap.Error(err))
		m.invalidate(worker, conn, "fault")
	}
	return err
}

// =============================================================================
// Health and shutdown
// =============================================================================

// TestConnection is a non-throwing health probe. It returns true only when
// the worker holds a live cached handle that answers a trivial query.
func (m *Manager) TestConnection(ctx context.Context, worker string) bool {
	c := m.currentConn(worker)
	if !c.alive() {
		return false
	}
	var one int
	if err := c.sc.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return false
	}
	return true
}

// Close closes every registered handle and the session factory. It is safe
// to call more than once.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.conns.Range(func(key, value any) bool {
		m.closeQuietly(value.(*Conn), "explicit")
		m.conns.Delete(key)
		return true
	})

	m.log.Info("mysql manager closed")
	return m.db.Close()
}
