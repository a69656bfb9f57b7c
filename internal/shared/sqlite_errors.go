// Package shared provides common utilities used across the codebase.
package shared

import "strings"

// IsSQLiteConflictError reports whether the error is a SQLite concurrency
// failure (SQLITE_BUSY or "database is locked"). These surface under
// concurrent writers and warrant a retry; everything else does not.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
