package mysql

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// QueryTimeoutError reports that the bounded executor's deadline elapsed
// before the worker produced a result. It is always surfaced distinctly
// from other query failures so callers can give targeted guidance.
type QueryTimeoutError struct {
	Timeout time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query timeout after %s", e.Timeout)
}

// IsQueryTimeout reports whether err is a QueryTimeoutError.
func IsQueryTimeout(err error) bool {
	var te *QueryTimeoutError
	return errors.As(err, &te)
}

// connFaultMarkers are error-text fragments that suggest the session itself
// is broken, not just the statement.
var connFaultMarkers = []string{
	"bad connection",
	"invalid connection",
	"connection refused",
	"connection reset",
	"broken pipe",
	"server has gone away",
	"packet sequence",
	"unexpected eof",
	"use of closed network connection",
}

// isConnFault reports whether err suggests a connection-level fault, meaning
// the handle must not be handed to the next caller.
func isConnFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connFaultMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
