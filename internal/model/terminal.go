package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// POSTerminal is a point-of-sale station at a bus terminal counter.
//
// Fields:
//  ID                – primary key identifier.
//  Identifier        – human label printed on receipts (e.g. "ALB-01").
//  Location          – where the station is installed.
//  AssignedUserID    – agent normally assigned to the station.
//  InitialCashAmount – float declared at the last open.
//  CurrentCashAmount – running cash in the drawer.
//  IsOpen            – whether a cash session is running.
//  LastOpenedAt      – timestamp of the last open.
//  LastClosedAt      – timestamp of the last close.
//  OpenedByUserID    – agent who performed the last open.
//  IsActive          – whether the station may be used at all.
type POSTerminal struct {
	ID                string          `json:"id"`
	Identifier        string          `json:"identifier"`
	Location          string          `json:"location"`
	AssignedUserID    *string         `json:"assigned_user_id,omitempty"`
	InitialCashAmount decimal.Decimal `json:"initial_cash_amount"`
	CurrentCashAmount decimal.Decimal `json:"current_cash_amount"`
	IsOpen            bool            `json:"is_open"`
	LastOpenedAt      *time.Time      `json:"last_opened_at,omitempty"`
	LastClosedAt      *time.Time      `json:"last_closed_at,omitempty"`
	OpenedByUserID    *string         `json:"opened_by_user_id,omitempty"`
	IsActive          bool            `json:"is_active"`
}
