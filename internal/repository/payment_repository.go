package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/model"
)

// PaymentRepo provides data access to the payments table.
type PaymentRepo struct {
	db DBTX
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database or transaction.
func NewPaymentRepo(db DBTX) *PaymentRepo { return &PaymentRepo{db: db} }

// Create inserts a payment.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments
               (id, ticket_id, method, amount, itbms, total_amount, status,
                provider_transaction_id, received_amount, change_amount, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.TicketID, string(p.Method), p.Amount, p.ITBMS, p.TotalAmount, string(p.Status),
		nullable(p.ProviderTransactionID), nullable(p.ReceivedAmount), nullable(p.ChangeAmount), p.CreatedAt,
	)
	return err
}

// GetByID returns the payment with the given ID or ErrNotFound.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT id, ticket_id, method, amount, itbms, total_amount, status,
                      provider_transaction_id, received_amount, change_amount, created_at
               FROM payments WHERE id = ?`
	var (
		p        model.Payment
		method   string
		status   string
		provider sql.NullString
		received decimal.NullDecimal
		change   decimal.NullDecimal
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.TicketID, &method, &p.Amount, &p.ITBMS, &p.TotalAmount, &status,
		&provider, &received, &change, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	p.ProviderTransactionID = ptrString(provider)
	p.ReceivedAmount = ptrDecimal(received)
	p.ChangeAmount = ptrDecimal(change)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
