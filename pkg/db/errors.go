package db

import "strings"

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation. When a constraint name is given, the helper looks for
// that constraint in the error text; otherwise it matches the generic Postgres
// and sqlite violation messages.
func IsUniqueViolation(err error, constraintName ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, name := range constraintName {
		if name != "" {
			return strings.Contains(msg, name)
		}
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
