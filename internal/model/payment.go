package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a ticket was paid.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentYappy        PaymentMethod = "yappy"
	PaymentPagueloFacil PaymentMethod = "paguelofacil"
	PaymentTransfer     PaymentMethod = "transfer"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentYappy, PaymentPagueloFacil, PaymentTransfer:
		return true
	}
	return false
}

// TouchesDrawer reports whether payments with this method move physical
// cash in and out of the terminal drawer.
func (m PaymentMethod) TouchesDrawer() bool { return m == PaymentCash }

// PaymentStatus is the processing state of a payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// Payment records the money collected for a ticket.
//
// Fields:
//  ID                    – primary key identifier.
//  TicketID              – ticket paid by this payment.
//  Method                – payment method.
//  Amount                – amount before tax.
//  ITBMS                 – tax portion.
//  TotalAmount           – amount + itbms; what the passenger paid.
//  Status                – processing status.
//  ProviderTransactionID – gateway reference for card/digital payments.
//  ReceivedAmount        – cash handed over (cash only).
//  ChangeAmount          – change returned (cash only).
type Payment struct {
	ID                    string           `json:"id"`
	TicketID              string           `json:"ticket_id"`
	Method                PaymentMethod    `json:"method"`
	Amount                decimal.Decimal  `json:"amount"`
	ITBMS                 decimal.Decimal  `json:"itbms"`
	TotalAmount           decimal.Decimal  `json:"total_amount"`
	Status                PaymentStatus    `json:"status"`
	ProviderTransactionID *string          `json:"provider_transaction_id,omitempty"`
	ReceivedAmount        *decimal.Decimal `json:"received_amount,omitempty"`
	ChangeAmount          *decimal.Decimal `json:"change_amount,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
}
