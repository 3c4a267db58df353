package mysql

import (
	"database/sql"
	"sync/atomic"
	"time"
)

// Conn is one exclusive MySQL session plus its creation timestamp.
//
// A Conn is owned by exactly one worker at a time and must never be used
// from two goroutines concurrently. It is checked out of a factory that
// keeps no idle sessions, so closing a Conn physically closes the session
// rather than returning it to a pool.
type Conn struct {
	sc        *sql.Conn
	createdAt time.Time
	closed    atomic.Bool
}

// CreatedAt returns the handle's creation time.
func (c *Conn) CreatedAt() time.Time {
	return c.createdAt
}

// Age returns how long the handle has been live.
func (c *Conn) Age() time.Duration {
	return time.Since(c.createdAt)
}

// alive reports the handle's local open flag. It does not round-trip to the
// server; broken sessions surface as query errors and are invalidated then.
func (c *Conn) alive() bool {
	return c != nil && !c.closed.Load()
}

// close physically closes the session. Only the first call reaches the
// driver; later calls report false and do nothing.
func (c *Conn) close() (bool, error) {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return false, nil
	}
	return true, c.sc.Close()
}
