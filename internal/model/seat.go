package model

import "time"

// SeatAvailability is the derived state of a seat on a given trip.  It is
// never stored; it is computed from the seat's disabled flag, the active
// seat lock (if any) and whether a paid or boarded ticket exists.
type SeatAvailability string

const (
	SeatAvailable SeatAvailability = "available"
	SeatLocked    SeatAvailability = "locked"
	SeatSold      SeatAvailability = "sold"
	SeatDisabled  SeatAvailability = "disabled"
)

// Seat describes a physical seat on the bus serving a trip.  Seats are
// uniquely identified by their trip and seat number.  Row and Column give
// the position in the seat map rendered by client terminals.
//
// Fields:
//  ID         – primary key identifier.
//  TripID     – trip to which this seat belongs.
//  SeatNumber – printed seat label (e.g. "12" or "3B").
//  Row        – zero-based row in the seat map.
//  Column     – zero-based column in the seat map.
//  Disabled   – whether the seat is out of service.
type Seat struct {
	ID         string `json:"id"`
	TripID     string `json:"trip_id"`
	SeatNumber string `json:"seat_number"`
	Row        int    `json:"row"`
	Column     int    `json:"column"`
	Disabled   bool   `json:"disabled"`
}

// DeriveAvailability computes a seat's availability at instant now.  A sold
// seat wins over a lock; an expired lock counts as absent.
func DeriveAvailability(disabled bool, lock *SeatLock, sold bool, now time.Time) SeatAvailability {
	switch {
	case disabled:
		return SeatDisabled
	case sold:
		return SeatSold
	case lock != nil && lock.ActiveAt(now):
		return SeatLocked
	default:
		return SeatAvailable
	}
}
