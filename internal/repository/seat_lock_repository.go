package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/bus-pos/internal/model"
)

// mysqlDeadlock is ER_LOCK_DEADLOCK; two first-time lockers of the same
// seat can collide on the gap lock taken by SELECT ... FOR UPDATE.
const mysqlDeadlock = 1213

// SeatLockRepo provides data access to the seat_locks table.  The primary
// key is (trip_id, seat_id) so a seat carries at most one lease row.  All
// methods compare expiry against the instant passed by the caller; rows
// whose expires_at is at or before it count as absent even if they have
// not been swept yet.
type SeatLockRepo struct {
	db *sql.DB
}

// NewSeatLockRepo returns a new SeatLockRepo bound to the provided database.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

// Acquire creates or refreshes a lease inside its own short transaction.
// The existing row, if any, is read with FOR UPDATE: an active lease of a
// different holder wins and ErrLocked is returned with that lease; an
// expired lease or one held by the same holder is overwritten.
func (r *SeatLockRepo) Acquire(ctx context.Context, lock model.SeatLock) (model.SeatLock, error) {
	got, err := r.acquireTx(ctx, lock)
	if err == nil || errors.Is(err, ErrLocked) {
		return got, err
	}
	if !isDuplicate(err) && !isDeadlock(err) {
		return model.SeatLock{}, err
	}
	// Another holder inserted the row first; report whoever owns it now.
	cur, ferr := r.FindActive(ctx, lock.TripID, lock.SeatID, lock.LockedAt)
	if ferr != nil {
		return model.SeatLock{}, ferr
	}
	if cur != nil && cur.HolderID != lock.HolderID {
		return *cur, ErrLocked
	}
	return r.acquireTx(ctx, lock)
}

func (r *SeatLockRepo) acquireTx(ctx context.Context, lock model.SeatLock) (model.SeatLock, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.SeatLock{}, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cur model.SeatLock
	err = tx.QueryRowContext(ctx,
		`SELECT trip_id, seat_id, holder_id, locked_at, expires_at
         FROM seat_locks WHERE trip_id = ? AND seat_id = ? FOR UPDATE`,
		lock.TripID, lock.SeatID,
	).Scan(&cur.TripID, &cur.SeatID, &cur.HolderID, &cur.LockedAt, &cur.ExpiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seat_locks (trip_id, seat_id, holder_id, locked_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
			lock.TripID, lock.SeatID, lock.HolderID, lock.LockedAt, lock.ExpiresAt,
		); err != nil {
			return model.SeatLock{}, err
		}
	case err != nil:
		return model.SeatLock{}, err
	default:
		if cur.ActiveAt(lock.LockedAt) && cur.HolderID != lock.HolderID {
			cur.LockedAt = cur.LockedAt.UTC()
			cur.ExpiresAt = cur.ExpiresAt.UTC()
			return cur, ErrLocked
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE seat_locks SET holder_id = ?, locked_at = ?, expires_at = ? WHERE trip_id = ? AND seat_id = ?`,
			lock.HolderID, lock.LockedAt, lock.ExpiresAt, lock.TripID, lock.SeatID,
		); err != nil {
			return model.SeatLock{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.SeatLock{}, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return lock, nil
}

// Release removes the lease iff holderID owns it.  It reports whether a
// row was removed; a missing or foreign lease is not an error.
func (r *SeatLockRepo) Release(ctx context.Context, tripID, seatID, holderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM seat_locks WHERE trip_id = ? AND seat_id = ? AND holder_id = ?`,
		tripID, seatID, holderID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReleaseAny removes the lease of a seat whoever holds it.
func (r *SeatLockRepo) ReleaseAny(ctx context.Context, tripID, seatID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_locks WHERE trip_id = ? AND seat_id = ?`, tripID, seatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindActive returns the non-expired lease of a seat, or nil.
func (r *SeatLockRepo) FindActive(ctx context.Context, tripID, seatID string, now time.Time) (*model.SeatLock, error) {
	var l model.SeatLock
	err := r.db.QueryRowContext(ctx,
		`SELECT trip_id, seat_id, holder_id, locked_at, expires_at
         FROM seat_locks WHERE trip_id = ? AND seat_id = ? AND expires_at > ?`,
		tripID, seatID, now.UTC(),
	).Scan(&l.TripID, &l.SeatID, &l.HolderID, &l.LockedAt, &l.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	l.LockedAt = l.LockedAt.UTC()
	l.ExpiresAt = l.ExpiresAt.UTC()
	return &l, nil
}

// DeleteExpired removes all leases whose expiry is at or before now and
// returns how many rows were removed.  It is housekeeping only: reads
// already ignore expired rows.
func (r *SeatLockRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_locks WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDeadlock
}
