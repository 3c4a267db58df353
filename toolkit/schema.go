package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/sqlagent/types"
)

// Tool names as registered with the LLM.
const (
	ToolListTables    = "mysql_list_tables"
	ToolDescribeTable = "mysql_describe_table"
	ToolQuery         = "mysql_query"
)

// Schemas returns the function-calling definitions for the three tools, in
// a fixed order suitable for agent registration.
func (t *Toolkit) Schemas() []types.ToolSchema {
	return []types.ToolSchema{
		{
			Name: ToolListTables,
			Description: "List every table in the database. Use this first to learn " +
				"the database structure before writing queries.",
			Parameters: json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
		},
		{
			Name: ToolDescribeTable,
			Description: "Show the structure of one table: columns, types, nullability, " +
				"keys, defaults, comments, and indexes.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"table_name": {"type": "string", "description": "Name of the table to describe"}
				},
				"required": ["table_name"]
			}`),
		},
		{
			Name: ToolQuery,
			Description: "Execute a read-only SQL query (SELECT only) and return the rows. " +
				"Data-modifying statements are rejected.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sql": {"type": "string", "description": "The SQL query to execute (SELECT statements only)"},
					"timeout": {"type": "integer", "description": "Query timeout in seconds, 1-600, default 60", "minimum": 1, "maximum": 600}
				},
				"required": ["sql"]
			}`),
		},
	}
}

// Call dispatches one tool invocation by name. The returned text follows the
// same soft-failure contract as the direct methods; the error is non-nil
// only for an unknown tool name or malformed arguments.
func (t *Toolkit) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolListTables:
		return t.ListTables(ctx), nil

	case ToolDescribeTable:
		table, _ := args["table_name"].(string)
		if table == "" {
			return "", fmt.Errorf("tool %s: missing required argument table_name", name)
		}
		return t.DescribeTable(ctx, table), nil

	case ToolQuery:
		sql, _ := args["sql"].(string)
		if sql == "" {
			return "", fmt.Errorf("tool %s: missing required argument sql", name)
		}
		var timeout time.Duration
		switch v := args["timeout"].(type) {
		case float64: // JSON numbers decode as float64
			timeout = time.Duration(v) * time.Second
		case int:
			timeout = time.Duration(v) * time.Second
		}
		return t.Query(ctx, sql, timeout), nil

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}
