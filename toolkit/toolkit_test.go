package toolkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/sqlagent/mysql"
)

func newTestToolkit(t *testing.T, opts ...Option) (*Toolkit, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	m := mysql.NewManager(db, mysql.Config{
		Host:        "db.internal",
		Port:        3306,
		User:        "reader",
		Password:    "secret",
		Database:    "warehouse",
		Description: "analytics replica, read-only",
	}, zap.NewNop())
	t.Cleanup(func() { _ = m.Close() })

	return New(m, zap.NewNop(), opts...), mock
}

// =============================================================================
// List tables
// =============================================================================

func TestToolkit_ListTables(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_warehouse"}).
			AddRow("users").
			AddRow("orders"))
	mock.ExpectCommit()

	out := tk.ListTables(context.Background())
	assert.Contains(t, out, "Database note: analytics replica, read-only")
	assert.Contains(t, out, "Tables in the database:")
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "orders")
}

func TestToolkit_ListTables_Empty(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_warehouse"}))
	mock.ExpectCommit()

	out := tk.ListTables(context.Background())
	assert.Equal(t, "no tables found in the database", out)
}

func TestToolkit_ListTables_Failure(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery("SHOW TABLES").
		WillReturnError(errors.New("Error 1044 (42000): Access denied"))
	mock.ExpectRollback()

	out := tk.ListTables(context.Background())
	assert.Contains(t, out, "failed to list tables:")
	assert.Contains(t, out, "Access denied")
}

func TestToolkit_ListTables_ReusesWorkerHandle(t *testing.T) {
	tk, mock := newTestToolkit(t)
	ctx := mysql.WithWorker(context.Background(), "agent-1")

	// One ping only: the second call must reuse the cached handle.
	mock.ExpectPing()
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("SHOW TABLES").
			WillReturnRows(sqlmock.NewRows([]string{"Tables_in_warehouse"}).AddRow("users"))
		mock.ExpectCommit()
	}

	assert.Contains(t, tk.ListTables(ctx), "users")
	assert.Contains(t, tk.ListTables(ctx), "users")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Describe table
// =============================================================================

func TestToolkit_DescribeTable(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery("DESCRIBE `users`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("id", "bigint", "NO", "PRI", nil, "auto_increment").
			AddRow("email", "varchar(255)", "NO", "UNI", nil, ""))
	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WithArgs("users", "warehouse").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_COMMENT"}).
			AddRow("id", "surrogate key").
			AddRow("email", "login address"))
	mock.ExpectQuery("SHOW INDEX FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"Key_name", "Column_name"}).
			AddRow("PRIMARY", "id").
			AddRow("uniq_email", "email"))
	mock.ExpectCommit()

	out := tk.DescribeTable(context.Background(), "users")
	assert.Contains(t, out, "Structure of table `users`:")
	assert.Contains(t, out, "bigint")
	assert.Contains(t, out, "surrogate key")
	assert.Contains(t, out, "login address")
	assert.Contains(t, out, "Indexes:")
	assert.Contains(t, out, "- PRIMARY: id")
	assert.Contains(t, out, "- uniq_email: email")
}

func TestToolkit_DescribeTable_CommentsBestEffort(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery("DESCRIBE `users`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("id", "bigint", "NO", "PRI", nil, ""))
	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WithArgs("users", "warehouse").
		WillReturnError(errors.New("Error 1142 (42000): SELECT command denied"))
	mock.ExpectQuery("SHOW INDEX FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"Key_name", "Column_name"}))
	mock.ExpectCommit()

	out := tk.DescribeTable(context.Background(), "users")
	assert.Contains(t, out, "Structure of table `users`:")
	assert.Contains(t, out, "bigint")
	assert.NotContains(t, out, "failed to describe table")
}

func TestToolkit_DescribeTable_NoColumns(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery("DESCRIBE `ghost`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}))
	mock.ExpectCommit()

	out := tk.DescribeTable(context.Background(), "ghost")
	assert.Equal(t, "table ghost does not exist or has no columns", out)
}

func TestToolkit_DescribeTable_RejectsIllegalName(t *testing.T) {
	tk, mock := newTestToolkit(t)

	out := tk.DescribeTable(context.Background(), "users; DROP TABLE users")
	assert.Equal(t, "table name contains illegal characters, please check the table name", out)

	// Validation must reject before any session is opened.
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Run query
// =============================================================================

func TestToolkit_Query(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT id, status FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow(1, "shipped").
			AddRow(2, "pending"))

	out := tk.Query(context.Background(), "SELECT id, status FROM orders", time.Minute)
	assert.Contains(t, out, "Query result (2 rows):")
	assert.Contains(t, out, "| id")
	assert.Contains(t, out, "| shipped")
	assert.Contains(t, out, "| pending")
}

func TestToolkit_Query_RejectsUnsafeSQL(t *testing.T) {
	tk, mock := newTestToolkit(t)

	out := tk.Query(context.Background(), "DROP TABLE users", time.Minute)
	assert.Contains(t, out, "unsafe operations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToolkit_Query_RejectsBadTimeout(t *testing.T) {
	tk, mock := newTestToolkit(t)

	out := tk.Query(context.Background(), "SELECT 1", 700*time.Second)
	assert.Contains(t, out, "timeout must be between 1 and 600 seconds")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToolkit_Query_EmptyResult(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT id FROM orders WHERE id = 0").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	out := tk.Query(context.Background(), "SELECT id FROM orders WHERE id = 0", time.Minute)
	assert.Equal(t, "query executed successfully but returned no rows", out)
}

func TestToolkit_Query_MissingTableHint(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT \\* FROM missing").
		WillReturnError(errors.New("Error 1146 (42S02): Table 'warehouse.missing' doesn't exist"))

	out := tk.Query(context.Background(), "SELECT * FROM missing", time.Minute)
	assert.Contains(t, out, "sql query failed:")
	assert.Contains(t, out, "SELECT * FROM missing")
	assert.Contains(t, out, "mysql_list_tables")
}

func TestToolkit_Query_UnknownColumnHint(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT nme FROM users").
		WillReturnError(errors.New("Error 1054 (42S22): Unknown column 'nme' in 'field list'"))

	out := tk.Query(context.Background(), "SELECT nme FROM users", time.Minute)
	assert.Contains(t, out, "mysql_describe_table")
}

func TestToolkit_Query_TimeoutHint(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT \\* FROM big_table").
		WillDelayFor(3 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	start := time.Now()
	out := tk.Query(context.Background(), "SELECT * FROM big_table", time.Second)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, out, "sql query failed:")
	assert.Contains(t, out, "Hint: the query timed out")
	assert.Contains(t, out, "600 seconds at most")
}

func TestToolkit_Query_TruncatesOversizedResult(t *testing.T) {
	tk, mock := newTestToolkit(t, WithMaxResultChars(120))

	rows := sqlmock.NewRows([]string{"id", "payload"})
	for i := 0; i < 20; i++ {
		rows.AddRow(i, strings.Repeat("x", 30))
	}
	mock.ExpectPing()
	mock.ExpectQuery("SELECT id, payload FROM blobs").WillReturnRows(rows)

	out := tk.Query(context.Background(), "SELECT id, payload FROM blobs", time.Minute)
	assert.Contains(t, out, "Warning: the result was too large")
	assert.Contains(t, out, "of 20 rows are included")
}

func TestToolkit_Query_DisplayRowCap(t *testing.T) {
	tk, mock := newTestToolkit(t, WithMaxResultChars(1<<20))

	rows := sqlmock.NewRows([]string{"id"})
	for i := 0; i < maxDisplayRows+10; i++ {
		rows.AddRow(i)
	}
	mock.ExpectPing()
	mock.ExpectQuery("SELECT id FROM events").WillReturnRows(rows)

	out := tk.Query(context.Background(), "SELECT id FROM events", time.Minute)
	assert.Contains(t, out, fmt.Sprintf("Query result (%d rows):", maxDisplayRows+10))
	assert.Contains(t, out, "... 10 more rows not shown ...")
}

func TestToolkit_Query_DefaultTimeoutApplied(t *testing.T) {
	tk, mock := newTestToolkit(t, WithDefaultTimeout(time.Second))

	mock.ExpectPing()
	mock.ExpectQuery("SELECT pg_sleep").
		WillDelayFor(3 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	start := time.Now()
	out := tk.Query(context.Background(), "SELECT pg_sleep(10)", 0)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, out, "Hint: the query timed out")
}

// =============================================================================
// Rendering
// =============================================================================

func TestRenderResult_PadsAndCapsColumns(t *testing.T) {
	tk, mock := newTestToolkit(t)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT name, note FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"name", "note"}).
			AddRow("a", strings.Repeat("z", 80)).
			AddRow("longer-name", nil))

	out := tk.Query(context.Background(), "SELECT name, note FROM t", time.Minute)
	assert.Contains(t, out, "| longer-name |")

	// The long cell is rendered whole even though padding is capped.
	assert.Contains(t, out, strings.Repeat("z", 80))
}
