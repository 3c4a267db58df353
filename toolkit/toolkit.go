// Package toolkit exposes the MySQL access layer as three agent-facing
// tools: list tables, describe table, and run query.
//
// Every public operation returns plain text. Failures are soft: the text
// describes what went wrong, with an actionable hint appended where one
// exists, and no error ever propagates past this boundary.
package toolkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/sqlagent/internal/metrics"
	"github.com/BaSui01/sqlagent/mysql"
	"github.com/BaSui01/sqlagent/security"
	"github.com/BaSui01/sqlagent/types"
)

// maxDisplayRows caps how many rows Query renders, independent of the
// serialized-size bounding.
const maxDisplayRows = 50

// maxColumnWidth caps the padding width of one rendered column.
const maxColumnWidth = 50

// Toolkit is the consumer-facing façade over the connection manager,
// bounded executor, and result bounder.
type Toolkit struct {
	mgr       *mysql.Manager
	log       *zap.Logger
	collector *metrics.Collector

	defaultTimeout time.Duration
	maxResultChars int
}

// Option configures a Toolkit.
type Option func(*Toolkit)

// WithDefaultTimeout sets the query timeout used when the caller does not
// request one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(t *Toolkit) { t.defaultTimeout = d }
}

// WithMaxResultChars sets the serialized-size budget for query results.
func WithMaxResultChars(n int) Option {
	return func(t *Toolkit) { t.maxResultChars = n }
}

// WithCollector attaches a metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(t *Toolkit) { t.collector = c }
}

// New creates a Toolkit on top of mgr.
func New(mgr *mysql.Manager, logger *zap.Logger, opts ...Option) *Toolkit {
	t := &Toolkit{
		mgr:            mgr,
		log:            logger.With(zap.String("component", "mysql_toolkit")),
		defaultTimeout: 60 * time.Second,
		maxResultChars: mysql.DefaultMaxResultChars,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// worker resolves the calling worker's identity. Callers that carry an
// identity in ctx keep their cached connection across calls; anonymous
// callers get an ephemeral worker whose handle is invalidated when the
// call ends.
func (t *Toolkit) worker(ctx context.Context) (string, func()) {
	if w := mysql.WorkerFromContext(ctx); w != "" {
		return w, func() {}
	}
	w := "tool-" + uuid.NewString()
	return w, func() { t.mgr.Invalidate(w, nil) }
}

// =============================================================================
// List tables
// =============================================================================

// ListTables returns the names of every table in the database.
func (t *Toolkit) ListTables(ctx context.Context) string {
	worker, release := t.worker(ctx)
	defer release()

	var names []string
	err := t.mgr.WithCursor(ctx, worker, func(cur *mysql.Cursor) error {
		res, err := cur.Query(ctx, "SHOW TABLES")
		if err != nil {
			return err
		}
		for _, row := range res.Rows {
			for _, col := range res.Columns {
				if name := cellText(row[col]); name != "" {
					names = append(names, name)
				}
			}
		}
		return nil
	})
	if err != nil {
		msg := fmt.Sprintf("failed to list tables: %v", err)
		t.log.Error("list tables failed", zap.Error(err))
		return msg
	}

	if len(names) == 0 {
		return "no tables found in the database"
	}

	var b strings.Builder
	if note := t.mgr.Description(); note != "" {
		fmt.Fprintf(&b, "Database note: %s\n\n", note)
	}
	b.WriteString("Tables in the database:\n")
	b.WriteString(strings.Join(names, "\n"))

	t.log.Info("listed tables", zap.Int("count", len(names)))
	return b.String()
}

// =============================================================================
// Describe table
// =============================================================================

const columnCommentQuery = `
SELECT COLUMN_NAME, COLUMN_COMMENT
FROM information_schema.COLUMNS
WHERE TABLE_NAME = ? AND TABLE_SCHEMA = ?
`

// DescribeTable returns the structure of one table: columns with types,
// nullability, keys, defaults, comments, and an index summary.
func (t *Toolkit) DescribeTable(ctx context.Context, table string) string {
	if !security.ValidateTableName(table) {
		return "table name contains illegal characters, please check the table name"
	}

	worker, release := t.worker(ctx)
	defer release()

	var out string
	err := t.mgr.WithCursor(ctx, worker, func(cur *mysql.Cursor) error {
		cols, err := cur.Query(ctx, fmt.Sprintf("DESCRIBE `%s`", table))
		if err != nil {
			return err
		}
		if cols.Empty() {
			out = fmt.Sprintf("table %s does not exist or has no columns", table)
			return nil
		}

		// Column comments are best-effort; a failure degrades the report,
		// it does not fail it.
		comments := make(map[string]string)
		if cres, cerr := cur.Query(ctx, columnCommentQuery, table, t.mgr.DatabaseName()); cerr != nil {
			t.log.Warn("failed to fetch column comments",
				zap.String("table", table),
				zap.Error(cerr),
			)
		} else {
			for _, row := range cres.Rows {
				if name := cellText(row["COLUMN_NAME"]); name != "" {
					comments[name] = cellText(row["COLUMN_COMMENT"])
				}
			}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Structure of table `%s`:\n\n", table)
		b.WriteString("Field\t\tType\t\tNull\tKey\tDefault\t\tExtra\tComment\n")
		b.WriteString(strings.Repeat("-", 80) + "\n")

		for _, col := range cols.Rows {
			field := cellText(col["Field"])
			fmt.Fprintf(&b, "%-16s\t%-16s\t%-8s\t%-4s\t%-16s\t%-16s\t%s\n",
				field,
				cellText(col["Type"]),
				cellText(col["Null"]),
				cellText(col["Key"]),
				cellText(col["Default"]),
				cellText(col["Extra"]),
				comments[field],
			)
		}

		// Index summary, also best-effort.
		if ires, ierr := cur.Query(ctx, fmt.Sprintf("SHOW INDEX FROM `%s`", table)); ierr != nil {
			t.log.Warn("failed to fetch index info",
				zap.String("table", table),
				zap.Error(ierr),
			)
		} else if !ires.Empty() {
			b.WriteString("\nIndexes:\n")
			var order []string
			grouped := make(map[string][]string)
			for _, idx := range ires.Rows {
				keyName := cellText(idx["Key_name"])
				if _, seen := grouped[keyName]; !seen {
					order = append(order, keyName)
				}
				grouped[keyName] = append(grouped[keyName], cellText(idx["Column_name"]))
			}
			for _, keyName := range order {
				fmt.Fprintf(&b, "- %s: %s\n", keyName, strings.Join(grouped[keyName], ", "))
			}
		}

		out = b.String()
		return nil
	})
	if err != nil {
		msg := fmt.Sprintf("failed to describe table %s: %v", table, err)
		t.log.Error("describe table failed", zap.String("table", table), zap.Error(err))
		return msg
	}

	t.log.Info("described table", zap.String("table", table))
	return out
}

// =============================================================================
// Run query
// =============================================================================

// Query validates and executes one read-only statement under a hard
// timeout, bounds the result size, and renders a Markdown-style table.
// A zero timeout uses the toolkit default.
func (t *Toolkit) Query(ctx context.Context, query string, timeout time.Duration) string {
	if !security.ValidateSQL(query) {
		return "the SQL statement contains unsafe operations or a possible injection attempt, please check the statement"
	}
	if timeout == 0 {
		timeout = t.defaultTimeout
	}
	if !security.ValidateTimeout(int(timeout.Seconds())) {
		return fmt.Sprintf("timeout must be between %d and %d seconds",
			security.MinQueryTimeout, security.MaxQueryTimeout)
	}

	worker, release := t.worker(ctx)
	defer release()

	res, err := mysql.ExecuteWithTimeout(ctx, t.mgr, query, nil, timeout)
	if err != nil {
		if !mysql.IsQueryTimeout(err) {
			// The fault may have poisoned the calling worker's cached
			// session; force a fresh one for the next call.
			t.mgr.Invalidate(worker, nil)
		}
		return t.queryFailure(err, query)
	}

	if res.Empty() {
		return "query executed successfully but returned no rows"
	}

	limited, dropped := mysql.LimitResultSize(res, t.maxResultChars)
	t.collector.RecordRowsTruncated(dropped)
	if dropped > 0 {
		t.log.Warn("query result truncated",
			zap.Int("original_rows", res.Len()),
			zap.Int("returned_rows", limited.Len()),
		)
	}

	t.log.Info("query executed", zap.Int("rows", limited.Len()))
	return renderResult(limited, dropped, res.Len())
}

// queryFailure renders a soft failure message with a situational hint.
func (t *Toolkit) queryFailure(err error, query string) string {
	msg := fmt.Sprintf("sql query failed: %v\n\n%s", err, query)
	lower := strings.ToLower(err.Error())

	switch {
	case mysql.IsQueryTimeout(err):
		msg += "\n\nHint: the query timed out. Try:\n" +
			"1. filtering the scanned data with a narrower WHERE clause\n" +
			"2. adding a LIMIT clause\n" +
			"3. raising the timeout parameter (600 seconds at most)"
	case strings.Contains(lower, "table") && strings.Contains(lower, "doesn't exist"):
		msg += "\n\nHint: the table does not exist. Use the mysql_list_tables tool to see the available tables."
	case strings.Contains(lower, "unknown column"),
		strings.Contains(lower, "column") && strings.Contains(lower, "doesn't exist"):
		msg += "\n\nHint: the column does not exist. Use the mysql_describe_table tool to see the table structure."
	case strings.Contains(lower, "expected") && strings.Contains(lower, "arguments"):
		msg += "\n\nHint: a percent sign in the statement may have been treated as a parameter placeholder." +
			" Write literal percent signs as %% or use a parameterized query."
	}

	t.log.Error("sql query failed", zap.Error(err))
	return msg
}

// =============================================================================
// Rendering
// =============================================================================

// renderResult renders rows as a Markdown-style table, capped at
// maxDisplayRows, with truncation notes appended.
func renderResult(res *types.Result, dropped, originalLen int) string {
	cols := res.Columns

	widths := make([]int, len(cols))
	for i, col := range cols {
		widths[i] = len(col)
		for _, row := range res.Rows {
			if n := len(cellText(row[col])); n > widths[i] {
				widths[i] = n
			}
		}
		if widths[i] > maxColumnWidth {
			widths[i] = maxColumnWidth
		}
	}

	var header, separator strings.Builder
	header.WriteString("|")
	separator.WriteString("|")
	for i, col := range cols {
		fmt.Fprintf(&header, " %-*s |", widths[i], col)
		separator.WriteString(strings.Repeat("-", widths[i]+2) + "|")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query result (%d rows):\n\n", res.Len())
	b.WriteString(header.String() + "\n")
	b.WriteString(separator.String() + "\n")

	shown := res.Len()
	if shown > maxDisplayRows {
		shown = maxDisplayRows
	}
	for _, row := range res.Rows[:shown] {
		b.WriteString("|")
		for i, col := range cols {
			fmt.Fprintf(&b, " %-*s |", widths[i], cellText(row[col]))
		}
		b.WriteString("\n")
	}

	if res.Len() > maxDisplayRows {
		fmt.Fprintf(&b, "\n... %d more rows not shown ...\n", res.Len()-maxDisplayRows)
	}

	if dropped > 0 {
		fmt.Fprintf(&b, "\nWarning: the result was too large; only the first %d of %d rows are included.\n",
			res.Len(), originalLen)
		b.WriteString("Use a narrower WHERE clause or a LIMIT clause to reduce the returned data volume.")
	}

	return b.String()
}

// cellText renders one cell for display; nil becomes the empty string.
func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
