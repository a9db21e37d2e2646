package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionSale is the only transaction type produced by the sale flow.
const TransactionSale = "sale"

// POSTransaction links one sale to the cash session, terminal, ticket and
// payment it touched.  The sum of Amount over a session equals the
// session's TotalSales.
type POSTransaction struct {
	ID                string           `json:"id"`
	SessionID         string           `json:"session_id"`
	TerminalID        string           `json:"terminal_id"`
	TicketID          string           `json:"ticket_id"`
	PaymentID         string           `json:"payment_id"`
	TransactionType   string           `json:"transaction_type"`
	Amount            decimal.Decimal  `json:"amount"`
	PaymentMethod     PaymentMethod    `json:"payment_method"`
	ReceivedAmount    *decimal.Decimal `json:"received_amount,omitempty"`
	ChangeAmount      *decimal.Decimal `json:"change_amount,omitempty"`
	ProcessedByUserID string           `json:"processed_by_user_id"`
	CreatedAt         time.Time        `json:"created_at"`
}
