package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/repository"
)

// DefaultLockDuration is how long a seat lease lasts when the caller does
// not ask for a specific duration.
const DefaultLockDuration = 5 * time.Minute

// SeatStatus is the live state of one trip seat.
type SeatStatus struct {
	TripID       string                 `json:"trip_id"`
	SeatID       string                 `json:"seat_id"`
	Availability model.SeatAvailability `json:"availability"`
	Lock         *model.SeatLock        `json:"lock,omitempty"`
	TicketID     string                 `json:"ticket_id,omitempty"`
}

// SeatLockManager grants short-lived exclusive leases on trip seats so
// that two agents cannot sell the same seat while a passenger is choosing.
// Leases expire passively: a lease whose expiry has passed is ignored by
// every read, and Sweep only reclaims storage.
type SeatLockManager struct {
	locks   repository.SeatLockStore
	tickets repository.TicketStore
	ttl     time.Duration
	opts    Options
}

// NewSeatLockManager returns a manager using ttl as the default lease
// length (DefaultLockDuration when ttl <= 0).  tickets is used to refuse
// leases on seats that are already sold.
func NewSeatLockManager(locks repository.SeatLockStore, tickets repository.TicketStore, ttl time.Duration, opts Options) *SeatLockManager {
	if ttl <= 0 {
		ttl = DefaultLockDuration
	}
	return &SeatLockManager{locks: locks, tickets: tickets, ttl: ttl, opts: opts.withDefaults()}
}

// Lock leases a seat to holderID for duration (the manager's default when
// duration <= 0).  Locking a seat the same holder already owns refreshes
// the expiry.  A sold seat or an active lease of another holder yields
// SEAT_UNAVAILABLE.
func (m *SeatLockManager) Lock(ctx context.Context, tripID, seatID, holderID string, duration time.Duration) (lock *model.SeatLock, err error) {
	ctx, span := startSpan(ctx, "SeatLockManager.Lock",
		attribute.String("trip.id", tripID), attribute.String("seat.id", seatID))
	defer func() { endSpan(span, err) }()

	if tripID == "" || seatID == "" || holderID == "" {
		return nil, newError(CodeValidation, "trip_id, seat_id and holder_id are required")
	}
	if duration <= 0 {
		duration = m.ttl
	}

	sold, err := m.tickets.FindActiveBySeat(ctx, tripID, seatID)
	if err != nil {
		return nil, persistence("check seat sale", err)
	}
	if sold != nil {
		m.opts.Metrics.SeatLockAttempt("sold")
		return nil, newError(CodeSeatUnavailable, "seat %s is already sold for this trip", seatID)
	}

	now := m.opts.Now()
	got, err := m.locks.Acquire(ctx, model.SeatLock{
		TripID:    tripID,
		SeatID:    seatID,
		HolderID:  holderID,
		LockedAt:  now,
		ExpiresAt: now.Add(duration),
	})
	if errors.Is(err, repository.ErrLocked) {
		m.opts.Metrics.SeatLockAttempt("conflict")
		m.opts.log(ctx).Info("seat lock conflict",
			zap.String("trip_id", tripID), zap.String("seat_id", seatID),
			zap.String("holder_id", holderID), zap.String("owner_id", got.HolderID))
		return nil, newError(CodeSeatUnavailable, "seat %s is locked by another agent until %s",
			seatID, got.ExpiresAt.Format(time.RFC3339))
	}
	if err != nil {
		return nil, persistence("acquire seat lock", err)
	}

	// A sale may have committed between the check above and Acquire; its
	// post-commit release can run before our lease lands.
	sold, err = m.tickets.FindActiveBySeat(ctx, tripID, seatID)
	if err != nil || sold != nil {
		if _, rerr := m.locks.Release(ctx, tripID, seatID, holderID); rerr != nil {
			m.opts.log(ctx).Warn("release lease on sold seat",
				zap.String("trip_id", tripID), zap.String("seat_id", seatID), zap.Error(rerr))
		}
		if err != nil {
			return nil, persistence("check seat sale", err)
		}
		m.opts.Metrics.SeatLockAttempt("sold")
		return nil, newError(CodeSeatUnavailable, "seat %s is already sold for this trip", seatID)
	}

	m.opts.Metrics.SeatLockAttempt("granted")
	exp := got.ExpiresAt
	m.opts.publish(ctx, queue.POSEvent{
		Type: queue.EventSeatLocked, TripID: tripID, SeatID: seatID,
		HolderID: holderID, ExpiresAt: &exp,
	})
	return &got, nil
}

// Unlock releases the lease iff holderID owns it.  Releasing a missing,
// expired or foreign lease is a no-op.
func (m *SeatLockManager) Unlock(ctx context.Context, tripID, seatID, holderID string) (err error) {
	ctx, span := startSpan(ctx, "SeatLockManager.Unlock",
		attribute.String("trip.id", tripID), attribute.String("seat.id", seatID))
	defer func() { endSpan(span, err) }()

	if tripID == "" || seatID == "" || holderID == "" {
		return newError(CodeValidation, "trip_id, seat_id and holder_id are required")
	}
	released, err := m.locks.Release(ctx, tripID, seatID, holderID)
	if err != nil {
		return persistence("release seat lock", err)
	}
	if released {
		m.opts.publish(ctx, queue.POSEvent{Type: queue.EventSeatReleased, TripID: tripID, SeatID: seatID, HolderID: holderID})
	}
	return nil
}

// ReleaseSeat drops any lease on the seat whoever holds it.  The sale
// flow calls it once the ticket is committed.
func (m *SeatLockManager) ReleaseSeat(ctx context.Context, tripID, seatID string) error {
	released, err := m.locks.ReleaseAny(ctx, tripID, seatID)
	if err != nil {
		return persistence("release seat lock", err)
	}
	if released {
		m.opts.publish(ctx, queue.POSEvent{Type: queue.EventSeatReleased, TripID: tripID, SeatID: seatID})
	}
	return nil
}

// ActiveLock returns the current lease of a seat, or nil.
func (m *SeatLockManager) ActiveLock(ctx context.Context, tripID, seatID string) (*model.SeatLock, error) {
	l, err := m.locks.FindActive(ctx, tripID, seatID, m.opts.Now())
	if err != nil {
		return nil, persistence("read seat lock", err)
	}
	return l, nil
}

// Status derives the availability of a seat for live seat maps.
func (m *SeatLockManager) Status(ctx context.Context, tripID, seatID string) (*SeatStatus, error) {
	if tripID == "" || seatID == "" {
		return nil, newError(CodeValidation, "trip_id and seat_id are required")
	}
	sold, err := m.tickets.FindActiveBySeat(ctx, tripID, seatID)
	if err != nil {
		return nil, persistence("check seat sale", err)
	}
	now := m.opts.Now()
	lock, err := m.locks.FindActive(ctx, tripID, seatID, now)
	if err != nil {
		return nil, persistence("read seat lock", err)
	}
	st := &SeatStatus{
		TripID:       tripID,
		SeatID:       seatID,
		Availability: model.DeriveAvailability(false, lock, sold != nil, now),
	}
	if sold != nil {
		st.TicketID = sold.ID
	} else {
		st.Lock = lock
	}
	return st, nil
}

// Sweep deletes expired leases and returns how many were removed.
func (m *SeatLockManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.locks.DeleteExpired(ctx, m.opts.Now())
	if err != nil {
		return 0, persistence("sweep seat locks", err)
	}
	m.opts.Metrics.LocksSwept(n)
	if n > 0 {
		m.opts.log(ctx).Debug("expired seat locks swept", zap.Int64("count", n))
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (m *SeatLockManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
				m.opts.Logger.Warn("seat lock sweep failed", zap.Error(err))
			}
		}
	}
}
