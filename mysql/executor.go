package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/sqlagent/types"
)

// ExecuteWithTimeout runs one statement on a dedicated throwaway worker and
// enforces a hard wall-clock deadline on the wait.
//
// The worker obtains its own handle through the manager, executes the
// statement, fetches every row, and unconditionally invalidates its handle
// afterwards; its lifetime is one call, so a cached handle would leak. The
// caller blocks until the worker finishes, ctx is done, or the timeout
// elapses, whichever comes first. On expiry the wait is abandoned and a
// *QueryTimeoutError is returned; the in-flight statement is not forcibly
// aborted and may keep running server-side until the closed session is
// noticed. A timed-out or failed query is never re-issued.
func ExecuteWithTimeout(ctx context.Context, m *Manager, query string, args []any, timeout time.Duration) (*types.Result, error) {
	worker := "query-" + uuid.NewString()

	type outcome struct {
		res *types.Result
		err error
	}
	// Buffered so the worker's late completion after an abandoned wait is
	// dropped instead of blocking forever.
	done := make(chan outcome, 1)

	// Cancelling workerCtx when the wait ends tells the driver to give up
	// on the in-flight statement. The server may still run it to
	// completion; invalidation below closes the session either way.
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	go func() {
		res, err := runIsolated(workerCtx, m, worker, query, args)
		done <- outcome{res: res, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		status := "ok"
		if out.err != nil {
			status = "error"
		}
		m.collector.RecordQuery(status, time.Since(start))
		return out.res, out.err

	case <-ctx.Done():
		m.collector.RecordQuery("error", time.Since(start))
		return nil, ctx.Err()

	case <-timer.C:
		m.collector.RecordQuery("timeout", time.Since(start))
		m.log.Warn("query wait abandoned",
			zap.Duration("timeout", timeout),
			zap.String("worker", worker),
		)
		return nil, &QueryTimeoutError{Timeout: timeout}
	}
}

// runIsolated is the worker body: one handle, one statement, one teardown.
func runIsolated(ctx context.Context, m *Manager, worker string, query string, args []any) (*types.Result, error) {
	conn, err := m.Connection(ctx, worker)
	defer func() {
		// The worker is not reused across calls; leaving a cached handle
		// behind would leak it.
		m.invalidate(worker, conn, "worker_done")
	}()
	if err != nil {
		return nil, err
	}

	rows, err := conn.sc.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewError(types.ErrQueryFailed, "query execution failed").WithCause(err)
	}

	res, err := scanRows(rows)
	if err != nil {
		return nil, types.NewError(types.ErrQueryFailed, "failed to fetch result rows").WithCause(err)
	}
	return res, nil
}
