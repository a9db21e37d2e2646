package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAuditLine(t *testing.T) {
	amount := decimal.RequireFromString("15")
	total := decimal.RequireFromString("45.5")
	tickets := 3
	ev := POSEvent{
		Type:          EventSaleRecorded,
		OccurredAt:    time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),
		TerminalID:    "term-1",
		SessionID:     "sess-1",
		TicketID:      "tk-1",
		PaymentMethod: "cash",
		Amount:        &amount,
		TotalSales:    &total,
		TotalTickets:  &tickets,
	}

	assert.Equal(t,
		"[2026-03-02T08:30:00Z] pos.sale.recorded | terminal_id=term-1 | session_id=sess-1 | ticket_id=tk-1 | method=cash | amount=15.00 | total_sales=45.50 | total_tickets=3\n",
		FormatAuditLine(ev))
}

func TestAuditConsumer_Handle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pos-audit.log")
	c := &AuditConsumer{Path: path}

	body, err := json.Marshal(POSEvent{Type: EventSeatLocked, TripID: "trip-1", SeatID: "A1", HolderID: "agent-1"})
	require.NoError(t, err)
	require.NoError(t, c.handle(body))
	require.NoError(t, c.handle(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "pos.seat.locked | trip_id=trip-1 | seat_id=A1 | holder_id=agent-1")

	assert.Error(t, c.handle([]byte("{not json")))
	assert.Error(t, c.handle([]byte(`{"seat_id":"A1"}`)))
}
