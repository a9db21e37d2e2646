package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-pos/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var ticketRowColumns = []string{
	"id", "trip_id", "seat_id", "passenger_name", "passenger_document", "passenger_phone",
	"passenger_email", "destination_stop_id", "boarding_stop_id", "price", "itbms", "total", "status",
	"qr_code", "sold_by_user_id", "terminal_id", "created_at", "updated_at",
}

func ticketRow(id, status string, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(ticketRowColumns).AddRow(
		id, "trip-1", "seat-1", "Ana Pérez", "8-123-456", nil,
		nil, "stop-9", nil, "14.02", "0.98", "15.00", status,
		"BUS-abc", "agent-1", "term-1", at, at,
	)
}

func TestTicketRepo_Create(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	terminal := "term-1"
	ticket := &model.Ticket{
		ID: "tk-1", TripID: "trip-1", SeatID: "seat-1",
		PassengerName: "Ana Pérez", PassengerDocument: "8-123-456", DestinationStopID: "stop-9",
		Price: decimal.RequireFromString("14.02"), ITBMS: decimal.RequireFromString("0.98"),
		Total: decimal.RequireFromString("15.00"), Status: model.TicketPaid, QRCode: "BUS-abc",
		SoldByUserID: "agent-1", TerminalID: &terminal, CreatedAt: now, UpdatedAt: now,
	}

	t.Run("inserts ticket", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
			WithArgs("tk-1", "trip-1", "seat-1", "Ana Pérez", "8-123-456", nil,
				nil, "stop-9", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "paid",
				"BUS-abc", "agent-1", "term-1", now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewTicketRepo(db).Create(context.Background(), ticket))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to ErrDuplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'trip-1:seat-1'"})

		err := NewTicketRepo(db).Create(context.Background(), ticket)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTicketRepo_GetByID(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("scans optional columns", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).
			WithArgs("tk-1").
			WillReturnRows(ticketRow("tk-1", "paid", now))

		got, err := NewTicketRepo(db).GetByID(context.Background(), "tk-1")
		require.NoError(t, err)
		assert.Equal(t, model.TicketPaid, got.Status)
		assert.Nil(t, got.PassengerPhone)
		require.NotNil(t, got.TerminalID)
		assert.Equal(t, "term-1", *got.TerminalID)
		assert.True(t, got.Total.Equal(decimal.RequireFromString("15")))
	})

	t.Run("missing ticket", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(ticketRowColumns))

		_, err := NewTicketRepo(db).GetByID(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTicketRepo_FindActiveBySeat(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("status IN ('paid', 'boarded')")).
		WithArgs("trip-1", "seat-2").
		WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	got, err := NewTicketRepo(db).FindActiveBySeat(context.Background(), "trip-1", "seat-2")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_UpdateStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	const update = "UPDATE tickets SET status = ?, updated_at = ? WHERE id = ? AND status = ?"

	t.Run("applies when status matches", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs("boarded", now, "tk-1", "paid").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewTicketRepo(db).UpdateStatus(context.Background(), "tk-1", model.TicketPaid, model.TicketBoarded, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale status is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).
			WithArgs("tk-1").
			WillReturnRows(ticketRow("tk-1", "cancelled", now))

		err := NewTicketRepo(db).UpdateStatus(context.Background(), "tk-1", model.TicketPaid, model.TicketBoarded, now)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown ticket", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).
			WillReturnRows(sqlmock.NewRows(ticketRowColumns))

		err := NewTicketRepo(db).UpdateStatus(context.Background(), "tk-x", model.TicketPaid, model.TicketBoarded, now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
