package model

import "time"

// SeatLock represents a temporary hold on a seat while an agent or a
// customer is selecting it.  Locks prevent concurrent sales from grabbing
// the same seat during interactive selection.  A lock is not a sale and is
// never the final state of a seat: it is destroyed by expiry, by explicit
// release or when the seat is sold.
//
// Fields:
//  TripID    – trip for which the seat is held.
//  SeatID    – seat being held.
//  HolderID  – agent or session holding the seat.
//  LockedAt  – when the lock was created or last refreshed.
//  ExpiresAt – when the lock stops counting.
type SeatLock struct {
	TripID    string    `json:"trip_id"`
	SeatID    string    `json:"seat_id"`
	HolderID  string    `json:"holder_id"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActiveAt reports whether the lock still holds at instant now.  A lock
// whose expiry is at or before now is treated as absent.
func (l SeatLock) ActiveAt(now time.Time) bool {
	return l.ExpiresAt.After(now)
}
