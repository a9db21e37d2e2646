package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/repository"
)

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutTerminal(model.POSTerminal{ID: "term-1", IsActive: true})

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		require.NoError(t, st.Terminals.AddCash(ctx, "term-1", decimal.NewFromInt(50)))
		require.NoError(t, st.Tickets.Create(ctx, &model.Ticket{ID: "tk-1", TripID: "t", SeatID: "A1", Status: model.TicketPaid}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	term, err := s.Stores().Terminals.GetByID(ctx, "term-1")
	require.NoError(t, err)
	assert.True(t, term.CurrentCashAmount.IsZero())
	_, err = s.Stores().Tickets.GetByID(ctx, "tk-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("disk full")
	s.FailOn("payments.create", boom)

	err := s.Stores().Payments.Create(ctx, &model.Payment{ID: "p-1"})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, s.Stores().Payments.Create(ctx, &model.Payment{ID: "p-1"}))
}

func TestStore_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	st := s.Stores()
	now := time.Now().UTC()

	require.NoError(t, st.Sessions.Create(ctx, &model.POSCashSession{ID: "s1", TerminalID: "term-1", OpenedAt: now}))
	assert.ErrorIs(t, st.Sessions.Create(ctx, &model.POSCashSession{ID: "s2", TerminalID: "term-1", OpenedAt: now}), repository.ErrDuplicate)

	require.NoError(t, st.Tickets.Create(ctx, &model.Ticket{ID: "a", TripID: "t", SeatID: "A1", Status: model.TicketPaid}))
	assert.ErrorIs(t, st.Tickets.Create(ctx, &model.Ticket{ID: "b", TripID: "t", SeatID: "A1", Status: model.TicketBoarded}), repository.ErrDuplicate)

	require.NoError(t, st.Tickets.UpdateStatus(ctx, "a", model.TicketPaid, model.TicketCancelled, now))
	assert.NoError(t, st.Tickets.Create(ctx, &model.Ticket{ID: "b", TripID: "t", SeatID: "A1", Status: model.TicketPaid}))
	assert.ErrorIs(t, st.Tickets.UpdateStatus(ctx, "a", model.TicketPaid, model.TicketBoarded, now), repository.ErrConflict)
}

func TestSeatLocks_Concurrent(t *testing.T) {
	ctx := context.Background()
	locks := NewSeatLocks()
	now := time.Now().UTC()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, holder := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func(holder string) {
			defer wg.Done()
			_, err := locks.Acquire(ctx, model.SeatLock{TripID: "t", SeatID: "A1", HolderID: holder, LockedAt: now, ExpiresAt: now.Add(time.Minute)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(holder)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	n, err := locks.DeleteExpired(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, locks.Len())
}
