package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/model"
)

// TransactionRepo provides data access to the pos_transactions table.
type TransactionRepo struct {
	db DBTX
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database or transaction.
func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

// Create inserts a POS transaction.
func (r *TransactionRepo) Create(ctx context.Context, t *model.POSTransaction) error {
	const q = `INSERT INTO pos_transactions
               (id, session_id, terminal_id, ticket_id, payment_id, transaction_type, amount,
                payment_method, received_amount, change_amount, processed_by_user_id, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.SessionID, t.TerminalID, t.TicketID, t.PaymentID, t.TransactionType, t.Amount,
		string(t.PaymentMethod), nullable(t.ReceivedAmount), nullable(t.ChangeAmount), t.ProcessedByUserID, t.CreatedAt,
	)
	return err
}

// ListBySession returns the transactions of a session in creation order.
func (r *TransactionRepo) ListBySession(ctx context.Context, sessionID string) ([]model.POSTransaction, error) {
	const q = `SELECT id, session_id, terminal_id, ticket_id, payment_id, transaction_type, amount,
                      payment_method, received_amount, change_amount, processed_by_user_id, created_at
               FROM pos_transactions
               WHERE session_id = ?
               ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.POSTransaction
	for rows.Next() {
		var (
			t        model.POSTransaction
			method   string
			received decimal.NullDecimal
			change   decimal.NullDecimal
		)
		if err := rows.Scan(
			&t.ID, &t.SessionID, &t.TerminalID, &t.TicketID, &t.PaymentID, &t.TransactionType, &t.Amount,
			&method, &received, &change, &t.ProcessedByUserID, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.PaymentMethod = model.PaymentMethod(method)
		t.ReceivedAmount = ptrDecimal(received)
		t.ChangeAmount = ptrDecimal(change)
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
