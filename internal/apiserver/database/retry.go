package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/halolabs/memberd/internal/common/errorx"
)

// txAttempts bounds retries of a conflicted transaction.
const txAttempts = 3

// IsConflict reports whether err looks like transaction-level contention
// (deadlock, serialization failure, or SQLite writer lock). The checks
// are string based because each driver surfaces these differently.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"deadlock",
		"could not serialize",
		"serialization failure",
		"database is locked",
		"database table is locked",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// TransactionWithRetry runs fn in a transaction, retrying the whole
// operation from scratch on contention. After txAttempts failures the
// conflict surfaces to the caller as a transient error.
func TransactionWithRetry(ctx context.Context, db Database, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err = db.Transaction(ctx, fn)
		if err == nil || !IsConflict(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errorx.ErrConflict, err)
}
