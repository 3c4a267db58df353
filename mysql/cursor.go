package mysql

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/sqlagent/types"
)

// Cursor is a short-lived, transaction-bound query surface over one
// connection handle. It is valid only inside the WithCursor scope that
// produced it and must not escape that scope.
type Cursor struct {
	conn *Conn
	tx   *sql.Tx
}

func newCursor(ctx context.Context, conn *Conn) (*Cursor, error) {
	tx, err := conn.sc.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Cursor{conn: conn, tx: tx}, nil
}

// Query runs one statement in the cursor's transaction and fetches every
// row into an ordered result set.
func (c *Cursor) Query(ctx context.Context, query string, args ...any) (*types.Result, error) {
	rows, err := c.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

func (c *Cursor) commit() error {
	return c.tx.Commit()
}

// rollbackQuietly rolls the transaction back best-effort. An already-ended
// transaction is not a failure.
func (c *Cursor) rollbackQuietly(log *zap.Logger) {
	if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Debug("ignoring rollback failure", zap.Error(err))
	}
}

// scanRows drains rows into a Result, converting driver byte slices to
// strings. rows is always closed.
func scanRows(rows *sql.Rows) (*types.Result, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &types.Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		for i := range values {
			values[i] = new(any)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}

		row := make(types.Row, len(cols))
		for i, col := range cols {
			v := *(values[i].(*any))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		res.Rows = append(res.Rows, row)
	}

	return res, rows.Err()
}
