package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/repository"
)

// sellAfterCheck runs sell once, right after the first seat lookup
// returns, so a sale commits between Lock's sold check and its acquire.
type sellAfterCheck struct {
	repository.TicketStore
	once sync.Once
	sell func()
}

func (s *sellAfterCheck) FindActiveBySeat(ctx context.Context, tripID, seatID string) (*model.Ticket, error) {
	t, err := s.TicketStore.FindActiveBySeat(ctx, tripID, seatID)
	s.once.Do(s.sell)
	return t, err
}

func TestSeatLockManager_Lock(t *testing.T) {
	ctx := context.Background()

	t.Run("default duration is five minutes", func(t *testing.T) {
		f := newFixture(t)
		lock, err := f.seats.Lock(ctx, tripID, "A1", agent, 0)
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now().Add(5*time.Minute), lock.ExpiresAt)
		assert.Equal(t, []queue.EventType{queue.EventSeatLocked}, f.events.types())
	})

	t.Run("conflicts until expiry", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.seats.Lock(ctx, tripID, "A1", agent, time.Minute)
		require.NoError(t, err)

		_, err = f.seats.Lock(ctx, tripID, "A1", otherAgent, 0)
		assert.ErrorIs(t, err, ErrSeatUnavailable)

		f.clock.Advance(59 * time.Second)
		_, err = f.seats.Lock(ctx, tripID, "A1", otherAgent, 0)
		assert.ErrorIs(t, err, ErrSeatUnavailable)

		f.clock.Advance(time.Second)
		lock, err := f.seats.Lock(ctx, tripID, "A1", otherAgent, 0)
		require.NoError(t, err)
		assert.Equal(t, otherAgent, lock.HolderID)
	})

	t.Run("same holder refreshes expiry", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.seats.Lock(ctx, tripID, "A1", agent, time.Minute)
		require.NoError(t, err)
		f.clock.Advance(30 * time.Second)
		second, err := f.seats.Lock(ctx, tripID, "A1", agent, time.Minute)
		require.NoError(t, err)
		assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
	})

	t.Run("sold seat cannot be locked", func(t *testing.T) {
		f := newFixture(t)
		sess := f.open(t, "50.00")
		_, err := f.sales.ProcessSale(ctx, cashSale(sess.ID, "A1", "12.00", "20.00"))
		require.NoError(t, err)

		_, err = f.seats.Lock(ctx, tripID, "A1", otherAgent, 0)
		assert.ErrorIs(t, err, ErrSeatUnavailable)
	})

	t.Run("sale between check and acquire leaves no lease", func(t *testing.T) {
		f := newFixture(t)
		sess := f.open(t, "0")
		tickets := &sellAfterCheck{TicketStore: f.store.Stores().Tickets}
		tickets.sell = func() {
			_, err := f.sales.ProcessSale(ctx, cashSale(sess.ID, "S1", "10.00", "10.00"))
			require.NoError(t, err)
		}
		seats := NewSeatLockManager(f.locks, tickets, 0, Options{Notifier: f.events, Now: f.clock.Now})

		_, err := seats.Lock(ctx, tripID, "S1", otherAgent, 0)
		assert.ErrorIs(t, err, ErrSeatUnavailable)
		assert.Equal(t, 0, f.locks.Len())

		st, err := f.seats.Status(ctx, tripID, "S1")
		require.NoError(t, err)
		assert.Equal(t, model.SeatSold, st.Availability)
		assert.Nil(t, st.Lock)
		assert.NotContains(t, f.events.types(), queue.EventSeatLocked)
	})

	t.Run("validates identifiers", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.seats.Lock(ctx, tripID, "", agent, 0)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestSeatLockManager_Unlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.seats.Unlock(ctx, tripID, "A9", agent), "absent lock is a no-op")

	_, err := f.seats.Lock(ctx, tripID, "A1", agent, 0)
	require.NoError(t, err)
	require.NoError(t, f.seats.Unlock(ctx, tripID, "A1", otherAgent))
	st, err := f.seats.Status(ctx, tripID, "A1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatLocked, st.Availability, "foreign unlock leaves the lease")

	require.NoError(t, f.seats.Unlock(ctx, tripID, "A1", agent))
	st, err = f.seats.Status(ctx, tripID, "A1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, st.Availability)
	assert.Equal(t, []queue.EventType{queue.EventSeatLocked, queue.EventSeatReleased}, f.events.types())
}

func TestSeatLockManager_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "0")

	_, err := f.seats.Lock(ctx, tripID, "B1", agent, time.Minute)
	require.NoError(t, err)
	_, err = f.sales.ProcessSale(ctx, cashSale(sess.ID, "B2", "10.00", "10.00"))
	require.NoError(t, err)

	locked, err := f.seats.Status(ctx, tripID, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatLocked, locked.Availability)
	require.NotNil(t, locked.Lock)
	assert.Equal(t, agent, locked.Lock.HolderID)

	sold, err := f.seats.Status(ctx, tripID, "B2")
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, sold.Availability)
	assert.NotEmpty(t, sold.TicketID)

	f.clock.Advance(time.Minute)
	expired, err := f.seats.Status(ctx, tripID, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, expired.Availability)
	assert.Nil(t, expired.Lock)
}

func TestSeatLockManager_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, seat := range []string{"C1", "C2"} {
		_, err := f.seats.Lock(ctx, tripID, seat, agent, time.Minute)
		require.NoError(t, err)
	}
	_, err := f.seats.Lock(ctx, tripID, "C3", agent, 10*time.Minute)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	n, err := f.seats.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 1, f.locks.Len())
}
