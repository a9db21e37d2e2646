package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
)

func TestProcessSale_CashPostconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "50.00")
	_, err := f.seats.Lock(ctx, tripID, "A1", agent, 0)
	require.NoError(t, err)

	phone := "+507 6000-0000"
	in := cashSale(sess.ID, "A1", "15.00", "20.00")
	in.ITBMS = dec("0.98")
	in.PassengerPhone = &phone

	res, err := f.sales.ProcessSale(ctx, in)
	require.NoError(t, err)

	tk := res.Ticket
	assert.Equal(t, model.TicketPaid, tk.Status)
	assert.Equal(t, "14.02", tk.Price.StringFixed(2))
	assert.Equal(t, "15.00", tk.Total.StringFixed(2))
	assert.True(t, strings.HasPrefix(tk.QRCode, "BUS-"))
	assert.Equal(t, terminalID, *tk.TerminalID)

	assert.Equal(t, model.PaymentCompleted, res.Payment.Status)
	assert.Equal(t, "5.00", res.Payment.ChangeAmount.StringFixed(2))
	assert.Equal(t, "15.00", res.Payment.TotalAmount.StringFixed(2))

	txn := res.Transaction
	assert.Equal(t, sess.ID, txn.SessionID)
	assert.Equal(t, tk.ID, txn.TicketID)
	assert.Equal(t, res.Payment.ID, txn.PaymentID)
	assert.Equal(t, model.TransactionSale, txn.TransactionType)
	assert.Equal(t, "5.00", txn.ChangeAmount.StringFixed(2))

	stored, err := f.tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.PassengerName, stored.PassengerName)
	assert.Equal(t, tk.PassengerDocument, stored.PassengerDocument)
	assert.Equal(t, phone, *stored.PassengerPhone)
	assert.Equal(t, "stop-david", stored.DestinationStopID)

	s := f.session(t, sess.ID)
	assert.Equal(t, "15.00", s.TotalSales.StringFixed(2))
	assert.Equal(t, "15.00", s.TotalCashSales.StringFixed(2))
	assert.Equal(t, 1, s.TotalTickets)
	assert.Equal(t, "65.00", f.terminal(t).CurrentCashAmount.StringFixed(2))

	st, err := f.seats.Status(ctx, tripID, "A1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, st.Availability)
	assert.Nil(t, st.Lock)

	assert.Equal(t, []queue.EventType{
		queue.EventSessionOpened, queue.EventSeatLocked, queue.EventSeatReleased, queue.EventSaleRecorded,
	}, f.events.types())
}

func TestProcessSale_DigitalMethodsSkipDrawer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "10.00")

	for i, m := range []model.PaymentMethod{model.PaymentCard, model.PaymentYappy, model.PaymentTransfer} {
		in := cashSale(sess.ID, fmt.Sprintf("D%d", i), "8.00", "0")
		in.PaymentMethod = m
		in.ReceivedAmount = nil
		res, err := f.sales.ProcessSale(ctx, in)
		require.NoError(t, err)
		assert.Nil(t, res.Payment.ChangeAmount)
	}

	s := f.session(t, sess.ID)
	assert.Equal(t, "24.00", s.TotalSales.StringFixed(2))
	assert.Equal(t, "8.00", s.TotalCardSales.StringFixed(2))
	assert.Equal(t, "16.00", s.TotalDigitalSales.StringFixed(2))
	assert.True(t, s.TotalCashSales.IsZero())
	assert.Equal(t, "10.00", f.terminal(t).CurrentCashAmount.StringFixed(2))
}

func TestProcessSale_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "0")

	_, err := f.sales.ProcessSale(ctx, cashSale(sess.ID, "S1", "10.00", "10.00"))
	require.NoError(t, err)
	_, err = f.seats.Lock(ctx, tripID, "S2", otherAgent, 0)
	require.NoError(t, err)

	noReceived := cashSale(sess.ID, "S3", "10.00", "0")
	noReceived.ReceivedAmount = nil
	wrongTerminal := cashSale(sess.ID, "S3", "10.00", "10.00")
	wrongTerminal.TerminalID = inactiveTerminalID
	badMethod := cashSale(sess.ID, "S3", "10.00", "10.00")
	badMethod.PaymentMethod = "bitcoin"
	taxTooHigh := cashSale(sess.ID, "S3", "10.00", "10.00")
	taxTooHigh.ITBMS = dec("10.01")
	noName := cashSale(sess.ID, "S3", "10.00", "10.00")
	noName.PassengerName = "  "
	subCentTax := cashSale(sess.ID, "S3", "10.00", "10.00")
	subCentTax.ITBMS = dec("0.705")

	tests := []struct {
		name string
		in   SaleInput
		want error
	}{
		{"cash short by one cent", cashSale(sess.ID, "S3", "10.00", "9.99"), ErrInsufficientPayment},
		{"cash without received amount", noReceived, ErrInsufficientPayment},
		{"seat already sold", cashSale(sess.ID, "S1", "10.00", "10.00"), ErrSeatUnavailable},
		{"seat locked by another agent", cashSale(sess.ID, "S2", "10.00", "10.00"), ErrSeatUnavailable},
		{"unknown session", cashSale("nope", "S3", "10.00", "10.00"), ErrNotFound},
		{"session of another terminal", wrongTerminal, ErrSessionClosed},
		{"zero amount", cashSale(sess.ID, "S3", "0", "0"), ErrValidation},
		{"unknown method", badMethod, ErrValidation},
		{"itbms above amount", taxTooHigh, ErrValidation},
		{"blank passenger name", noName, ErrValidation},
		{"sub-cent amount", cashSale(sess.ID, "S3", "10.005", "20.00"), ErrValidation},
		{"sub-cent itbms", subCentTax, ErrValidation},
		{"sub-cent received amount", cashSale(sess.ID, "S3", "10.00", "20.001"), ErrValidation},
		{"amount above column range", cashSale(sess.ID, "S3", "10000000000.00", "10000000000.00"), ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sales.ProcessSale(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	s := f.session(t, sess.ID)
	assert.Equal(t, 1, s.TotalTickets, "rejected sales leave totals unchanged")
}

func TestProcessSale_ClosedSessionWinsOverForeignLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "0")
	_, err := f.seats.Lock(ctx, tripID, "S2", otherAgent, 0)
	require.NoError(t, err)
	_, err = f.register.CloseCashRegister(ctx, CloseInput{
		TerminalID: terminalID, UserID: agent, ClosureType: model.ClosureZ, ActualCash: dec("0"),
	})
	require.NoError(t, err)
	require.False(t, f.session(t, sess.ID).IsOpen())

	_, err = f.sales.ProcessSale(ctx, cashSale(sess.ID, "S2", "10.00", "10.00"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.False(t, errors.Is(err, ErrSeatUnavailable))
}

func TestProcessSale_LockHolderMayDiffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "0")
	_, err := f.seats.Lock(ctx, tripID, "K1", "kiosk-7", 0)
	require.NoError(t, err)

	in := cashSale(sess.ID, "K1", "10.00", "10.00")
	in.LockHolderID = "kiosk-7"
	_, err = f.sales.ProcessSale(ctx, in)
	require.NoError(t, err)
	assert.Zero(t, f.locks.Len())
}

func TestProcessSale_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "20.00")
	f.store.FailOn("transactions.create", errors.New("disk full"))

	_, err := f.sales.ProcessSale(ctx, cashSale(sess.ID, "R1", "10.00", "10.00"))
	require.ErrorIs(t, err, ErrPersistence)

	sold, err := f.store.Stores().Tickets.FindActiveBySeat(ctx, tripID, "R1")
	require.NoError(t, err)
	assert.Nil(t, sold)
	s := f.session(t, sess.ID)
	assert.True(t, s.TotalSales.IsZero())
	assert.Equal(t, "20.00", f.terminal(t).CurrentCashAmount.StringFixed(2))

	_, err = f.sales.ProcessSale(ctx, cashSale(sess.ID, "R1", "10.00", "10.00"))
	assert.NoError(t, err)
}

func TestProcessSale_ConcurrentSameSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "0")

	const agents = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		refused int
	)
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := cashSale(sess.ID, "HOT", "10.00", "10.00")
			in.ProcessedByUserID = fmt.Sprintf("agent-%d", i)
			_, err := f.sales.ProcessSale(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSeatUnavailable):
				refused++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, agents-1, refused)
	s := f.session(t, sess.ID)
	assert.Equal(t, 1, s.TotalTickets)
	assert.Equal(t, "10.00", s.TotalSales.StringFixed(2))

	txns, err := f.store.Stores().Transactions.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}
