package types

// Row is one fetched row, keyed by column name.
type Row map[string]any

// Result is one ordered result set. Columns preserves the select-list
// order so rendering and size accounting stay deterministic; Row maps
// alone would not.
type Result struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return r.Len() == 0
}

// Value returns the named column of row i, or nil when absent.
func (r *Result) Value(i int, column string) any {
	if r == nil || i < 0 || i >= len(r.Rows) {
		return nil
	}
	return r.Rows[i][column]
}
