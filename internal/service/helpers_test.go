package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-pos/internal/cashcount"
	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/repository/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.POSEvent
}

func (n *recordingNotifier) Publish(_ context.Context, ev queue.POSEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) types() []queue.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]queue.EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store    *memory.Store
	locks    *memory.SeatLocks
	clock    *fakeClock
	events   *recordingNotifier
	seats    *SeatLockManager
	register *CashRegisterService
	sales    *SaleService
	reports  *ReportService
	tickets  *TicketService
}

const (
	terminalID         = "term-1"
	inactiveTerminalID = "term-2"
	agent              = "agent-1"
	otherAgent         = "agent-2"
	tripID             = "trip-100"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewStore(),
		locks:  memory.NewSeatLocks(),
		clock:  &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
		events: &recordingNotifier{},
	}
	f.store.PutTerminal(model.POSTerminal{ID: terminalID, Identifier: "ALB-01", Location: "Albrook", IsActive: true})
	f.store.PutTerminal(model.POSTerminal{ID: inactiveTerminalID, Identifier: "ALB-02", Location: "Albrook"})

	opts := Options{Notifier: f.events, Now: f.clock.Now}
	f.seats = NewSeatLockManager(f.locks, f.store.Stores().Tickets, 0, opts)
	f.reports = NewReportService(f.store, cashcount.DefaultTolerance)
	f.register = NewCashRegisterService(f.store, f.reports, cashcount.DefaultTolerance, opts)
	f.sales = NewSaleService(f.store, f.seats, opts)
	f.tickets = NewTicketService(f.store, opts)
	return f
}

func (f *fixture) open(t *testing.T, initial string) *model.POSCashSession {
	t.Helper()
	st, err := f.register.OpenCashRegister(context.Background(), OpenInput{
		TerminalID: terminalID, UserID: agent, InitialCash: dec(initial),
	})
	require.NoError(t, err)
	return st.Session
}

func (f *fixture) terminal(t *testing.T) *model.POSTerminal {
	t.Helper()
	term, err := f.store.Stores().Terminals.GetByID(context.Background(), terminalID)
	require.NoError(t, err)
	return term
}

func (f *fixture) session(t *testing.T, id string) *model.POSCashSession {
	t.Helper()
	s, err := f.store.Stores().Sessions.GetByID(context.Background(), id)
	require.NoError(t, err)
	return s
}

func cashSale(sessionID, seatID, amount, received string) SaleInput {
	return SaleInput{
		SessionID:         sessionID,
		TerminalID:        terminalID,
		TripID:            tripID,
		SeatID:            seatID,
		PassengerName:     "Ana Pérez",
		PassengerDocument: "8-123-456",
		DestinationStopID: "stop-david",
		Amount:            dec(amount),
		PaymentMethod:     model.PaymentCash,
		ReceivedAmount:    decPtr(received),
		ProcessedByUserID: agent,
	}
}
