package model

import "github.com/shopspring/decimal"

// BreakdownType says whether a denomination count was taken at open or close.
type BreakdownType string

const (
	BreakdownInitial BreakdownType = "initial"
	BreakdownClosing BreakdownType = "closing"
)

// CashCountBreakdown is one line of a drawer count: how many bills or coins
// of a given denomination were counted for a session.
type CashCountBreakdown struct {
	ID           uint64          `json:"id,omitempty"`
	SessionID    string          `json:"session_id"`
	Denomination decimal.Decimal `json:"denomination"`
	Count        int             `json:"count"`
	Type         BreakdownType   `json:"type"`
}
