package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/model"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so that every repository
// can run either standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TerminalStore persists POS terminals.
type TerminalStore interface {
	GetByID(ctx context.Context, id string) (*model.POSTerminal, error)
	// GetByIDForUpdate reads the terminal and, inside a transaction, locks
	// the row until commit.
	GetByIDForUpdate(ctx context.Context, id string) (*model.POSTerminal, error)
	Update(ctx context.Context, t *model.POSTerminal) error
	AddCash(ctx context.Context, id string, amount decimal.Decimal) error
}

// CashSessionStore persists cash sessions.  Create must fail with
// ErrDuplicate when the terminal already has an open session.
type CashSessionStore interface {
	Create(ctx context.Context, s *model.POSCashSession) error
	GetByID(ctx context.Context, id string) (*model.POSCashSession, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.POSCashSession, error)
	GetOpenByTerminal(ctx context.Context, terminalID string) (*model.POSCashSession, error)
	ApplySale(ctx context.Context, id string, delta model.SalesDelta) error
	Close(ctx context.Context, s *model.POSCashSession) error
	ListByTerminal(ctx context.Context, terminalID string, from, to time.Time) ([]model.POSCashSession, error)
}

// CashCountStore persists denomination breakdowns.
type CashCountStore interface {
	CreateMany(ctx context.Context, rows []model.CashCountBreakdown) error
	ListBySession(ctx context.Context, sessionID string) ([]model.CashCountBreakdown, error)
}

// TicketStore persists tickets.  Create must fail with ErrDuplicate when an
// active (paid or boarded) ticket already exists for the same trip seat.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	// FindActiveBySeat returns nil, nil when the seat is not sold.
	FindActiveBySeat(ctx context.Context, tripID, seatID string) (*model.Ticket, error)
	UpdateStatus(ctx context.Context, id string, from, to model.TicketStatus, at time.Time) error
}

// PaymentStore persists payments.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id string) (*model.Payment, error)
}

// TransactionStore persists POS transactions.
type TransactionStore interface {
	Create(ctx context.Context, t *model.POSTransaction) error
	ListBySession(ctx context.Context, sessionID string) ([]model.POSTransaction, error)
}

// SeatLockStore persists seat leases.  Every read treats locks whose
// expiry is at or before the supplied instant as absent.
type SeatLockStore interface {
	// Acquire creates the lock, or refreshes it when the seat is unlocked,
	// the existing lock has expired, or the same holder owns it.  When a
	// different holder owns an active lock it returns that lock and
	// ErrLocked.
	Acquire(ctx context.Context, lock model.SeatLock) (model.SeatLock, error)
	// Release removes the lock iff holderID owns it.
	Release(ctx context.Context, tripID, seatID, holderID string) (bool, error)
	// ReleaseAny removes the lock whoever holds it.
	ReleaseAny(ctx context.Context, tripID, seatID string) (bool, error)
	// FindActive returns nil, nil when no active lock exists.
	FindActive(ctx context.Context, tripID, seatID string, now time.Time) (*model.SeatLock, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stores bundles the stores that take part in POS transactions.  A bundle
// returned inside WithinTx is bound to that transaction.
type Stores struct {
	Terminals    TerminalStore
	Sessions     CashSessionStore
	CashCounts   CashCountStore
	Tickets      TicketStore
	Payments     PaymentStore
	Transactions TransactionStore
}

// Store is the transactional boundary used by the services.  WithinTx runs
// fn inside a single storage transaction: if fn returns an error nothing
// it wrote stays visible.
type Store interface {
	Stores() Stores
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
