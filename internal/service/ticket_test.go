package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-pos/internal/model"
)

func TestTicketService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "0")
	res, err := f.sales.ProcessSale(ctx, cashSale(sess.ID, "T1", "9.00", "9.00"))
	require.NoError(t, err)
	id := res.Ticket.ID

	tk, err := f.tickets.UpdateStatus(ctx, id, model.TicketBoarded)
	require.NoError(t, err)
	assert.Equal(t, model.TicketBoarded, tk.Status)

	_, err = f.tickets.UpdateStatus(ctx, id, model.TicketPaid)
	assert.ErrorIs(t, err, ErrOperationInvalid, "statuses only move forward")
	_, err = f.tickets.UpdateStatus(ctx, id, model.TicketRefunded)
	assert.ErrorIs(t, err, ErrOperationInvalid)

	tk, err = f.tickets.UpdateStatus(ctx, id, model.TicketCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.TicketCompleted, tk.Status)

	st, err := f.seats.Status(ctx, tripID, "T1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, st.Availability, "completed tickets free the seat")

	_, err = f.tickets.UpdateStatus(ctx, id, "lost")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.tickets.UpdateStatus(ctx, "missing", model.TicketBoarded)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketService_CancelFreesSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "0")
	res, err := f.sales.ProcessSale(ctx, cashSale(sess.ID, "T2", "9.00", "9.00"))
	require.NoError(t, err)

	_, err = f.tickets.UpdateStatus(ctx, res.Ticket.ID, model.TicketCancelled)
	require.NoError(t, err)

	_, err = f.sales.ProcessSale(ctx, cashSale(sess.ID, "T2", "9.00", "9.00"))
	assert.NoError(t, err)
}
