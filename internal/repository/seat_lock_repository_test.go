package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-pos/internal/model"
)

var seatLockColumns = []string{"trip_id", "seat_id", "holder_id", "locked_at", "expires_at"}

const (
	selectLockForUpdate = "FROM seat_locks WHERE trip_id = ? AND seat_id = ? FOR UPDATE"
	selectActiveLock    = "FROM seat_locks WHERE trip_id = ? AND seat_id = ? AND expires_at > ?"
)

func TestSeatLockRepo_Acquire(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lock := model.SeatLock{TripID: "trip-1", SeatID: "A1", HolderID: "agent-1", LockedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	t.Run("inserts a fresh lease", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectLockForUpdate)).
			WithArgs("trip-1", "A1").
			WillReturnRows(sqlmock.NewRows(seatLockColumns))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seat_locks")).
			WithArgs("trip-1", "A1", "agent-1", lock.LockedAt, lock.ExpiresAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := NewSeatLockRepo(db).Acquire(context.Background(), lock)
		require.NoError(t, err)
		assert.Equal(t, lock, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active lease of another holder wins", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectLockForUpdate)).
			WillReturnRows(sqlmock.NewRows(seatLockColumns).
				AddRow("trip-1", "A1", "agent-2", now.Add(-time.Minute), now.Add(4*time.Minute)))
		mock.ExpectRollback()

		got, err := NewSeatLockRepo(db).Acquire(context.Background(), lock)
		assert.ErrorIs(t, err, ErrLocked)
		assert.Equal(t, "agent-2", got.HolderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectLockForUpdate)).
			WillReturnRows(sqlmock.NewRows(seatLockColumns).
				AddRow("trip-1", "A1", "agent-2", now.Add(-10*time.Minute), now))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE seat_locks SET holder_id = ?")).
			WithArgs("agent-1", lock.LockedAt, lock.ExpiresAt, "trip-1", "A1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := NewSeatLockRepo(db).Acquire(context.Background(), lock)
		require.NoError(t, err)
		assert.Equal(t, "agent-1", got.HolderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost insert race reports the winner", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectLockForUpdate)).
			WillReturnRows(sqlmock.NewRows(seatLockColumns))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seat_locks")).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
		mock.ExpectRollback()
		mock.ExpectQuery(regexp.QuoteMeta(selectActiveLock)).
			WillReturnRows(sqlmock.NewRows(seatLockColumns).
				AddRow("trip-1", "A1", "agent-3", now, now.Add(5*time.Minute)))

		got, err := NewSeatLockRepo(db).Acquire(context.Background(), lock)
		assert.ErrorIs(t, err, ErrLocked)
		assert.Equal(t, "agent-3", got.HolderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSeatLockRepo_Release(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seat_locks WHERE trip_id = ? AND seat_id = ? AND holder_id = ?")).
		WithArgs("trip-1", "A1", "agent-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewSeatLockRepo(db).Release(context.Background(), "trip-1", "A1", "agent-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeatLockRepo_DeleteExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seat_locks WHERE expires_at <= ?")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewSeatLockRepo(db).DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
