package sqlite

import (
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/example/tradeflow/internal/ports/secondary"
)

// classify wraps driver errors in the storage sentinels from the secondary
// port. Errors it does not recognise are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique, se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", secondary.ErrUniqueViolation, err)
		case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", secondary.ErrStoreUnavailable, err)
		}
		return err
	}

	// modernc.org/sqlite reports the same conditions through its message text
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", secondary.ErrUniqueViolation, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return fmt.Errorf("%w: %v", secondary.ErrStoreUnavailable, err)
	}
	return err
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, secondary.ErrRecordNotFound)
}
