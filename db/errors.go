package db

import (
	"strings"

	"github.com/teranos/socialia/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed
// database, typically during daemon shutdown when the connection closes
// before the dispatcher has drained its batch.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is
// closed. The string fallback handles raw driver errors that cannot be
// wrapped at the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "database is closed") ||
		strings.Contains(errMsg, "sql: database is closed")
}
