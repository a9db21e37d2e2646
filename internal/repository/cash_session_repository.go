package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/model"
)

// CashSessionRepo provides data access to the pos_cash_sessions table.
// The table carries a generated open_terminal_id column that equals
// terminal_id while closed_at is NULL and is NULL otherwise; a UNIQUE
// index on it guarantees at most one open session per terminal.
type CashSessionRepo struct {
	db DBTX
}

// NewCashSessionRepo returns a new CashSessionRepo bound to the given database or transaction.
func NewCashSessionRepo(db DBTX) *CashSessionRepo { return &CashSessionRepo{db: db} }

const sessionColumns = `id, terminal_id, opened_by, opened_at, closed_at, closed_by, closure_type,
       initial_cash, expected_cash, actual_cash, difference,
       total_sales, total_cash_sales, total_card_sales, total_digital_sales, total_tickets,
       notes, discrepancy_notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.POSCashSession, error) {
	var (
		s           model.POSCashSession
		closedAt    sql.NullTime
		closedBy    sql.NullString
		closureType sql.NullString
		expected    decimal.NullDecimal
		actual      decimal.NullDecimal
		difference  decimal.NullDecimal
		notes       sql.NullString
		discrepancy sql.NullString
	)
	if err := row.Scan(
		&s.ID, &s.TerminalID, &s.OpenedBy, &s.OpenedAt, &closedAt, &closedBy, &closureType,
		&s.InitialCash, &expected, &actual, &difference,
		&s.TotalSales, &s.TotalCashSales, &s.TotalCardSales, &s.TotalDigitalSales, &s.TotalTickets,
		&notes, &discrepancy,
	); err != nil {
		return nil, err
	}
	s.OpenedAt = s.OpenedAt.UTC()
	s.ClosedAt = ptrTime(closedAt)
	s.ClosedBy = ptrString(closedBy)
	if closureType.Valid {
		ct := model.ClosureType(closureType.String)
		s.ClosureType = &ct
	}
	s.ExpectedCash = ptrDecimal(expected)
	s.ActualCash = ptrDecimal(actual)
	s.Difference = ptrDecimal(difference)
	s.Notes = ptrString(notes)
	s.DiscrepancyNotes = ptrString(discrepancy)
	return &s, nil
}

// Create inserts a new open session.  It returns ErrDuplicate when the
// terminal already has an open session.
func (r *CashSessionRepo) Create(ctx context.Context, s *model.POSCashSession) error {
	const q = `INSERT INTO pos_cash_sessions
               (id, terminal_id, opened_by, opened_at, initial_cash,
                total_sales, total_cash_sales, total_card_sales, total_digital_sales, total_tickets,
                discrepancy_notes)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.TerminalID, s.OpenedBy, s.OpenedAt, s.InitialCash,
		s.TotalSales, s.TotalCashSales, s.TotalCardSales, s.TotalDigitalSales, s.TotalTickets,
		nullable(s.DiscrepancyNotes),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID returns the session with the given ID or ErrNotFound.
func (r *CashSessionRepo) GetByID(ctx context.Context, id string) (*model.POSCashSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM pos_cash_sessions WHERE id = ?`, id)
}

// GetByIDForUpdate is GetByID with a row lock held until the surrounding
// transaction ends.  Sales take this lock so that a concurrent close
// cannot freeze totals while a sale is being recorded.
func (r *CashSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.POSCashSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM pos_cash_sessions WHERE id = ? FOR UPDATE`, id)
}

// GetOpenByTerminal returns the open session of a terminal or ErrNotFound.
func (r *CashSessionRepo) GetOpenByTerminal(ctx context.Context, terminalID string) (*model.POSCashSession, error) {
	return r.getOne(ctx,
		`SELECT `+sessionColumns+` FROM pos_cash_sessions WHERE open_terminal_id = ? FOR UPDATE`, terminalID)
}

func (r *CashSessionRepo) getOne(ctx context.Context, q, arg string) (*model.POSCashSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// ApplySale increments the running totals of an open session.  The
// update is a single arithmetic statement so totals never depend on a
// previously read value.  A closed or missing session yields ErrNotFound.
func (r *CashSessionRepo) ApplySale(ctx context.Context, id string, d model.SalesDelta) error {
	var cash, card, digital decimal.Decimal
	switch d.Method {
	case model.PaymentCash:
		cash = d.Amount
	case model.PaymentCard:
		card = d.Amount
	default:
		digital = d.Amount
	}
	const q = `UPDATE pos_cash_sessions
               SET total_sales = total_sales + ?,
                   total_cash_sales = total_cash_sales + ?,
                   total_card_sales = total_card_sales + ?,
                   total_digital_sales = total_digital_sales + ?,
                   total_tickets = total_tickets + ?
               WHERE id = ? AND closed_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, d.Amount, cash, card, digital, d.Tickets, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Close freezes a session by writing its closing fields.  Only an open
// session can be closed; otherwise ErrNotFound is returned.
func (r *CashSessionRepo) Close(ctx context.Context, s *model.POSCashSession) error {
	const q = `UPDATE pos_cash_sessions
               SET closed_at = ?, closed_by = ?, closure_type = ?,
                   expected_cash = ?, actual_cash = ?, difference = ?,
                   notes = ?, discrepancy_notes = ?
               WHERE id = ? AND closed_at IS NULL`
	res, err := r.db.ExecContext(ctx, q,
		nullable(s.ClosedAt), nullable(s.ClosedBy), nullable(s.ClosureType),
		nullable(s.ExpectedCash), nullable(s.ActualCash), nullable(s.Difference),
		nullable(s.Notes), nullable(s.DiscrepancyNotes), s.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ListByTerminal returns the sessions of a terminal opened in [from, to),
// oldest first.
func (r *CashSessionRepo) ListByTerminal(ctx context.Context, terminalID string, from, to time.Time) ([]model.POSCashSession, error) {
	const q = `SELECT ` + sessionColumns + `
               FROM pos_cash_sessions
               WHERE terminal_id = ? AND opened_at >= ? AND opened_at < ?
               ORDER BY opened_at`
	rows, err := r.db.QueryContext(ctx, q, terminalID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.POSCashSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
