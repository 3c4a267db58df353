// Package security provides the SQL-safety predicates consulted before every
// externally-triggered statement. The checks are deliberately conservative
// allow-lists, not a SQL parser: a false result short-circuits execution
// with a soft rejection before any connection is touched.
package security

import (
	"regexp"
	"strings"
)

// MinQueryTimeout and MaxQueryTimeout bound the caller-requested query
// timeout in seconds.
const (
	MinQueryTimeout = 1
	MaxQueryTimeout = 600
)

// tableNamePattern matches plain MySQL identifiers. Quoting, qualification,
// and anything fancier is rejected outright.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_$]{1,64}$`)

// allowedPrefixes are the read-only statement forms agents may issue.
var allowedPrefixes = []string{
	"select",
	"show",
	"describe",
	"desc",
	"explain",
	"with",
}

// forbiddenPattern scans for write, DDL, and file-access keywords anywhere
// in the statement, including inside subqueries smuggled past the prefix
// check.
var forbiddenPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|create|alter|truncate|rename|replace|grant|revoke|call|handler|shutdown|lock|unlock|load_file|outfile|infile|into\s+dumpfile)\b`)

var (
	lineCommentPattern  = regexp.MustCompile(`(?m)(--|#).*$`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// ValidateSQL reports whether stmt is a single read-only statement safe to
// hand to the executor.
func ValidateSQL(stmt string) bool {
	s := stripComments(stmt)
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	if s == "" {
		return false
	}

	// One statement only; a second semicolon means stacked statements.
	if strings.Contains(s, ";") {
		return false
	}

	lower := strings.ToLower(s)
	allowed := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(lower, prefix+" ") || lower == prefix {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	return !forbiddenPattern.MatchString(s)
}

// ValidateTableName reports whether name is a plain identifier safe to
// interpolate into an introspection statement.
func ValidateTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// ValidateTimeout reports whether seconds is within [1, 600].
func ValidateTimeout(seconds int) bool {
	return seconds >= MinQueryTimeout && seconds <= MaxQueryTimeout
}

// stripComments removes line and block comments so hidden keywords cannot
// ride in on them.
func stripComments(s string) string {
	s = blockCommentPattern.ReplaceAllString(s, " ")
	s = lineCommentPattern.ReplaceAllString(s, " ")
	return s
}
