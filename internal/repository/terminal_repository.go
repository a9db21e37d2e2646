package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/model"
)

// TerminalRepo provides data access to the pos_terminals table.  Terminal
// rows are created by the admin back office; this repository only reads
// them and maintains their cash-drawer state.
type TerminalRepo struct {
	db DBTX
}

// NewTerminalRepo returns a new TerminalRepo bound to the given database or transaction.
func NewTerminalRepo(db DBTX) *TerminalRepo { return &TerminalRepo{db: db} }

const terminalColumns = `id, identifier, location, assigned_user_id, initial_cash_amount,
       current_cash_amount, is_open, last_opened_at, last_closed_at, opened_by_user_id, is_active`

// GetByID returns the terminal with the given ID or ErrNotFound.
func (r *TerminalRepo) GetByID(ctx context.Context, id string) (*model.POSTerminal, error) {
	return r.get(ctx, `SELECT `+terminalColumns+` FROM pos_terminals WHERE id = ?`, id)
}

// GetByIDForUpdate is GetByID with a row lock held until the surrounding
// transaction ends.  Outside a transaction the lock is released at once.
func (r *TerminalRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.POSTerminal, error) {
	return r.get(ctx, `SELECT `+terminalColumns+` FROM pos_terminals WHERE id = ? FOR UPDATE`, id)
}

func (r *TerminalRepo) get(ctx context.Context, q, id string) (*model.POSTerminal, error) {
	var (
		t          model.POSTerminal
		assigned   sql.NullString
		openedBy   sql.NullString
		lastOpened sql.NullTime
		lastClosed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.Identifier, &t.Location, &assigned, &t.InitialCashAmount,
		&t.CurrentCashAmount, &t.IsOpen, &lastOpened, &lastClosed, &openedBy, &t.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.AssignedUserID = ptrString(assigned)
	t.OpenedByUserID = ptrString(openedBy)
	t.LastOpenedAt = ptrTime(lastOpened)
	t.LastClosedAt = ptrTime(lastClosed)
	return &t, nil
}

// Update writes the mutable drawer state of a terminal.
func (r *TerminalRepo) Update(ctx context.Context, t *model.POSTerminal) error {
	const q = `UPDATE pos_terminals
               SET initial_cash_amount = ?, current_cash_amount = ?, is_open = ?,
                   last_opened_at = ?, last_closed_at = ?, opened_by_user_id = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		t.InitialCashAmount, t.CurrentCashAmount, t.IsOpen,
		nullable(t.LastOpenedAt), nullable(t.LastClosedAt), nullable(t.OpenedByUserID), t.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// AddCash adds amount to the terminal's running drawer total.
func (r *TerminalRepo) AddCash(ctx context.Context, id string, amount decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pos_terminals SET current_cash_amount = current_cash_amount + ? WHERE id = ?`,
		amount, id,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// expectAffected maps a zero-row update to ErrNotFound.  MySQL reports
// matched rows only with CLIENT_FOUND_ROWS, which database.Open enables.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
