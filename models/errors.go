package models

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/mmdatafocus/reconcile_backend/utils"
	"gorm.io/gorm"
)

// Error kinds surfaced by the reconciliation core. Every returned error wraps
// exactly one of these (or is an unexpected storage error).
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrOverAllocation  = errors.New("over allocation")
	ErrStorageConflict = errors.New("storage conflict")
)

type ErrorKind string

const (
	ErrorKindInvalidInput    ErrorKind = "InvalidInput"
	ErrorKindNotFound        ErrorKind = "NotFound"
	ErrorKindOverAllocation  ErrorKind = "OverAllocation"
	ErrorKindStorageConflict ErrorKind = "StorageConflict"
	ErrorKindInternal        ErrorKind = "Internal"
)

// KindOf classifies err for callers that present errors (HTTP, CLI).
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ErrorKindInvalidInput
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrOverAllocation):
		return ErrorKindOverAllocation
	case errors.Is(err, ErrStorageConflict):
		return ErrorKindStorageConflict
	default:
		return ErrorKindInternal
	}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// MySQL lock errors that are safe to retry as a whole call.
const (
	mysqlErrLockWaitTimeout uint16 = 1205
	mysqlErrDeadlock        uint16 = 1213
)

// mapStorageError turns lock contention into ErrStorageConflict and a missing
// row into ErrNotFound; anything else is returned unchanged.
func mapStorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOverAllocation) || errors.Is(err, ErrStorageConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, utils.ErrorRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if errors.Is(err, utils.ErrLockNotObtained) {
		return fmt.Errorf("%w: %v", ErrStorageConflict, err)
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout {
			return fmt.Errorf("%w: %v", ErrStorageConflict, err)
		}
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ErrStorageConflict, err)
		}
	}
	return err
}
