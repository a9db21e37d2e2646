package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var (
	_ Store         = (*MySQLStore)(nil)
	_ SeatLockStore = (*SeatLockRepo)(nil)
	_ SeatLockStore = (*RedisSeatLockStore)(nil)
)

// MySQLStore implements Store on top of a MySQL connection pool.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a new MySQLStore bound to the provided database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying pool for health checks and migrations.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// Stores returns repositories that run each statement in autocommit mode.
func (s *MySQLStore) Stores() Stores { return storesFor(s.db) }

// WithinTx begins a transaction, hands fn repositories bound to it and
// commits when fn succeeds.  Any error from fn or from commit rolls the
// whole unit back.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, storesFor(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func storesFor(q DBTX) Stores {
	return Stores{
		Terminals:    NewTerminalRepo(q),
		Sessions:     NewCashSessionRepo(q),
		CashCounts:   NewCashCountRepo(q),
		Tickets:      NewTicketRepo(q),
		Payments:     NewPaymentRepo(q),
		Transactions: NewTransactionRepo(q),
	}
}
