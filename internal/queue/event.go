// Package queue defines the POS change events exchanged over the message
// broker, the RabbitMQ publisher that emits them and the audit consumer
// that records them.
package queue

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a POS state change.  It doubles as the AMQP routing key.
type EventType string

const (
	EventSeatLocked          EventType = "pos.seat.locked"
	EventSeatReleased        EventType = "pos.seat.released"
	EventSessionOpened       EventType = "pos.session.opened"
	EventSessionClosed       EventType = "pos.session.closed"
	EventSaleRecorded        EventType = "pos.sale.recorded"
	EventTicketStatusChanged EventType = "pos.ticket.status_changed"
)

// POSEvent is published after a POS state change commits.  It contains
// enough information for seat maps, dashboards and the audit log to update
// without querying the primary database.  Fields not relevant to a given
// type are omitted.
type POSEvent struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	TripID    string     `json:"trip_id,omitempty"`
	SeatID    string     `json:"seat_id,omitempty"`
	HolderID  string     `json:"holder_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	TerminalID string `json:"terminal_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`

	TicketID      string           `json:"ticket_id,omitempty"`
	TicketStatus  string           `json:"ticket_status,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`

	TotalSales   *decimal.Decimal `json:"total_sales,omitempty"`
	TotalTickets *int             `json:"total_tickets,omitempty"`
	ClosureType  string           `json:"closure_type,omitempty"`
	Difference   *decimal.Decimal `json:"difference,omitempty"`
}
