package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditQueue is the durable queue bound to every POS event.
const AuditQueue = "pos.audit"

// AuditConsumer appends every POS event it receives to a log file, one
// line per event.
type AuditConsumer struct {
	URL      string
	Exchange string
	Path     string
	Log      *zap.Logger
}

// Run connects to RabbitMQ, binds AuditQueue to the exchange and consumes
// until ctx is cancelled.  Broker failures are retried with exponential
// backoff capped at 30 seconds.  Messages that cannot be handled are
// rejected without requeue to avoid tight loops.
func (c *AuditConsumer) Run(ctx context.Context) error {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}

	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("audit consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("audit consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("audit consumer: set QoS failed", zap.Error(err))
	}
	if err := declareExchange(ch, c.Exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(AuditQueue, "pos.#", c.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(AuditQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.Log.Warn("audit consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handle(body []byte) error {
	var ev POSEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as one human-friendly log line.
func FormatAuditLine(ev POSEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type)
	field := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, " | %s=%s", k, v)
		}
	}
	field("terminal_id", ev.TerminalID)
	field("session_id", ev.SessionID)
	field("user_id", ev.UserID)
	field("trip_id", ev.TripID)
	field("seat_id", ev.SeatID)
	field("holder_id", ev.HolderID)
	field("ticket_id", ev.TicketID)
	field("ticket_status", ev.TicketStatus)
	field("method", ev.PaymentMethod)
	field("closure", ev.ClosureType)
	if ev.Amount != nil {
		field("amount", ev.Amount.StringFixed(2))
	}
	if ev.TotalSales != nil {
		field("total_sales", ev.TotalSales.StringFixed(2))
	}
	if ev.TotalTickets != nil {
		field("total_tickets", fmt.Sprint(*ev.TotalTickets))
	}
	if ev.Difference != nil {
		field("difference", ev.Difference.StringFixed(2))
	}
	if ev.ExpiresAt != nil {
		field("expires_at", ev.ExpiresAt.UTC().Format(time.RFC3339))
	}
	b.WriteByte('\n')
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
