package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketPaid      TicketStatus = "paid"
	TicketBoarded   TicketStatus = "boarded"
	TicketCompleted TicketStatus = "completed"
	TicketCancelled TicketStatus = "cancelled"
	TicketRefunded  TicketStatus = "refunded"
)

// ticketTransitions lists the statuses each status may move to.  Statuses
// only move forward; cancelled and refunded are terminal.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketPending: {TicketPaid, TicketCancelled},
	TicketPaid:    {TicketBoarded, TicketCancelled, TicketRefunded},
	TicketBoarded: {TicketCompleted},
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketPaid, TicketBoarded, TicketCompleted, TicketCancelled, TicketRefunded:
		return true
	}
	return false
}

// OccupiesSeat reports whether a ticket in this status holds its seat.
func (s TicketStatus) OccupiesSeat() bool {
	return s == TicketPaid || s == TicketBoarded
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range ticketTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Ticket records a passenger's seat on a trip.  Tickets sold at a POS
// terminal are created directly in the paid status.
//
// Fields:
//  ID                – primary key identifier.
//  TripID            – trip being travelled.
//  SeatID            – seat sold.
//  PassengerName     – passenger full name.
//  PassengerDocument – cédula or passport number.
//  PassengerPhone    – optional contact phone.
//  PassengerEmail    – optional contact e-mail.
//  DestinationStopID – stop where the passenger leaves the bus.
//  BoardingStopID    – stop where the passenger boards (nil = trip origin).
//  Price             – fare before tax.
//  ITBMS             – value-added tax on the fare.
//  Total             – price + itbms.
//  Status            – lifecycle status.
//  QRCode            – opaque code printed on the ticket for boarding validation.
//  SoldByUserID      – agent who sold the ticket.
//  TerminalID        – POS terminal where it was sold (nil for online sales).
type Ticket struct {
	ID                string          `json:"id"`
	TripID            string          `json:"trip_id"`
	SeatID            string          `json:"seat_id"`
	PassengerName     string          `json:"passenger_name"`
	PassengerDocument string          `json:"passenger_document"`
	PassengerPhone    *string         `json:"passenger_phone,omitempty"`
	PassengerEmail    *string         `json:"passenger_email,omitempty"`
	DestinationStopID string          `json:"destination_stop_id"`
	BoardingStopID    *string         `json:"boarding_stop_id,omitempty"`
	Price             decimal.Decimal `json:"price"`
	ITBMS             decimal.Decimal `json:"itbms"`
	Total             decimal.Decimal `json:"total"`
	Status            TicketStatus    `json:"status"`
	QRCode            string          `json:"qr_code"`
	SoldByUserID      string          `json:"sold_by_user_id"`
	TerminalID        *string         `json:"terminal_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
