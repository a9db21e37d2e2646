// Package repository defines the persistence contracts consumed by the
// point-of-sale services and their MySQL and Redis implementations.  The
// sentinel values below allow higher layers such as services and handlers
// to distinguish between different failure scenarios.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint, such as a second open session for a terminal or a second
// active ticket for the same trip seat.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a conditional update found the row in an
// unexpected state, e.g. a ticket status that moved underneath the caller.
var ErrConflict = errors.New("conflict")

// ErrLocked is returned by SeatLockStore.Acquire when a different holder
// owns an active lock on the seat.
var ErrLocked = errors.New("seat locked by another holder")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
