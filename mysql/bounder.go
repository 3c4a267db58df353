package mysql

import (
	"fmt"

	"github.com/BaSui01/sqlagent/types"
)

// DefaultMaxResultChars is the default serialized-size budget for one
// result set.
const DefaultMaxResultChars = 10000

// LimitResultSize caps the serialized size of res to maxChars without
// re-querying. A result that fits is returned unchanged. Otherwise rows are
// kept in original order until the running serialized total would exceed the
// budget; the current and all remaining rows are dropped, yielding a strict
// prefix (possibly empty when even the first row is oversized). The second
// return value is the number of dropped rows.
func LimitResultSize(res *types.Result, maxChars int) (*types.Result, int) {
	if res.Len() == 0 {
		return res, 0
	}

	total := 0
	for _, row := range res.Rows {
		total += rowChars(res.Columns, row)
	}
	if total <= maxChars {
		return res, 0
	}

	kept := make([]types.Row, 0, len(res.Rows))
	used := 0
	for _, row := range res.Rows {
		n := rowChars(res.Columns, row)
		if used+n > maxChars {
			break
		}
		kept = append(kept, row)
		used += n
	}

	limited := &types.Result{Columns: res.Columns, Rows: kept}
	return limited, len(res.Rows) - len(kept)
}

// rowChars measures one row's serialized length in the result's column
// order, so the accounting does not depend on map iteration order.
func rowChars(columns []string, row types.Row) int {
	n := 0
	for _, col := range columns {
		n += len(col) + len(fmt.Sprint(row[col])) + 2
	}
	return n
}
