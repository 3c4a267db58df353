/*
Package types provides the shared type definitions for sqlagent.

types is the bottom-most public package and depends on nothing internal,
so mysql, security, and toolkit can all agree on the same contracts
without import cycles.

Core types:

  - Error / ErrorCode: structured error system with cause chaining
  - Row / Result:      one fetched result set with stable column order
  - ToolSchema:        tool definition (name + description + JSON Schema)
*/
package types
