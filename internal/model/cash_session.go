package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClosureType distinguishes interim (X) from end-of-period (Z) closes.
type ClosureType string

const (
	ClosureX ClosureType = "X"
	ClosureZ ClosureType = "Z"
)

// Valid reports whether c is X or Z.
func (c ClosureType) Valid() bool { return c == ClosureX || c == ClosureZ }

// POSCashSession is the accounting period between a terminal's open and
// close.  Running totals are updated by every sale; once ClosedAt is set
// the session is frozen.
//
// Fields:
//  ID                – primary key identifier.
//  TerminalID        – terminal the session belongs to.
//  OpenedBy          – agent who opened the session.
//  OpenedAt          – open timestamp.
//  ClosedAt          – close timestamp (nil while open).
//  ClosedBy          – agent who closed the session.
//  ClosureType       – X or Z once closed.
//  InitialCash       – float counted at open.
//  ExpectedCash      – initial cash + cash sales, frozen at close.
//  ActualCash        – cash counted at close.
//  Difference        – actual − expected, recorded whatever its magnitude.
//  TotalSales        – Σ transaction amounts.
//  TotalCashSales    – cash bucket of TotalSales.
//  TotalCardSales    – card bucket of TotalSales.
//  TotalDigitalSales – yappy/paguelofacil/transfer bucket of TotalSales.
//  TotalTickets      – number of tickets sold.
//  Notes             – free text left at close.
//  DiscrepancyNotes  – counting mismatches recorded at open and close.
type POSCashSession struct {
	ID                string           `json:"id"`
	TerminalID        string           `json:"terminal_id"`
	OpenedBy          string           `json:"opened_by"`
	OpenedAt          time.Time        `json:"opened_at"`
	ClosedAt          *time.Time       `json:"closed_at,omitempty"`
	ClosedBy          *string          `json:"closed_by,omitempty"`
	ClosureType       *ClosureType     `json:"closure_type,omitempty"`
	InitialCash       decimal.Decimal  `json:"initial_cash"`
	ExpectedCash      *decimal.Decimal `json:"expected_cash,omitempty"`
	ActualCash        *decimal.Decimal `json:"actual_cash,omitempty"`
	Difference        *decimal.Decimal `json:"difference,omitempty"`
	TotalSales        decimal.Decimal  `json:"total_sales"`
	TotalCashSales    decimal.Decimal  `json:"total_cash_sales"`
	TotalCardSales    decimal.Decimal  `json:"total_card_sales"`
	TotalDigitalSales decimal.Decimal  `json:"total_digital_sales"`
	TotalTickets      int              `json:"total_tickets"`
	Notes             *string          `json:"notes,omitempty"`
	DiscrepancyNotes  *string          `json:"discrepancy_notes,omitempty"`
}

// IsOpen reports whether the session still accepts sales.
func (s POSCashSession) IsOpen() bool { return s.ClosedAt == nil }

// CurrentExpectedCash is the cash the drawer should hold right now: the
// opening float plus cash sales.  Card and digital sales never touch the
// physical drawer.
func (s POSCashSession) CurrentExpectedCash() decimal.Decimal {
	return s.InitialCash.Add(s.TotalCashSales)
}

// SalesDelta is the change applied to a session's running totals by one sale.
type SalesDelta struct {
	Amount  decimal.Decimal
	Method  PaymentMethod
	Tickets int
}

// Apply adds a sale to the running totals in place.
func (s *POSCashSession) Apply(d SalesDelta) {
	s.TotalSales = s.TotalSales.Add(d.Amount)
	s.TotalTickets += d.Tickets
	switch d.Method {
	case PaymentCash:
		s.TotalCashSales = s.TotalCashSales.Add(d.Amount)
	case PaymentCard:
		s.TotalCardSales = s.TotalCardSales.Add(d.Amount)
	default:
		s.TotalDigitalSales = s.TotalDigitalSales.Add(d.Amount)
	}
}
