package sqlite

import (
	"errors"
	"fmt"

	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rpggio/phasefold/internal/repository"
)

// constraintCode returns the extended result code of a driver error, or 0.
func constraintCode(err error) int {
	var serr *driver.Error
	if errors.As(err, &serr) {
		return serr.Code()
	}
	return 0
}

func isForeignKeyViolation(err error) bool {
	return constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// isUniqueViolation covers explicit UNIQUE columns and primary keys, which
// is how the ledger keys runs and per-run bins.
func isUniqueViolation(err error) bool {
	switch constraintCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// ledgerError maps constraint failures onto the repository sentinels and
// wraps everything else with the failed operation.
func ledgerError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, repository.ErrForeignKeyViolation)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
