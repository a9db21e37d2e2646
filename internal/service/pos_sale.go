package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/repository"
)

// SaleInput is one counter sale.  Amount is what the passenger pays,
// tax included; ITBMS is the tax portion of it.  ReceivedAmount is
// required for cash sales.  LockHolderID names the holder whose seat
// lease this sale consumes and defaults to ProcessedByUserID.
type SaleInput struct {
	SessionID             string
	TerminalID            string
	TripID                string
	SeatID                string
	PassengerName         string
	PassengerDocument     string
	PassengerPhone        *string
	PassengerEmail        *string
	DestinationStopID     string
	BoardingStopID        *string
	Amount                decimal.Decimal
	ITBMS                 decimal.Decimal
	PaymentMethod         model.PaymentMethod
	ReceivedAmount        *decimal.Decimal
	ProviderTransactionID *string
	ProcessedByUserID     string
	LockHolderID          string
}

// SaleResult holds the records written by a sale.
type SaleResult struct {
	Ticket      *model.Ticket         `json:"ticket"`
	Payment     *model.Payment        `json:"payment"`
	Transaction *model.POSTransaction `json:"transaction"`
}

// SaleService sells tickets at POS terminals.
type SaleService struct {
	store repository.Store
	seats *SeatLockManager
	opts  Options
}

// NewSaleService returns a SaleService.
func NewSaleService(store repository.Store, seats *SeatLockManager, opts Options) *SaleService {
	return &SaleService{store: store, seats: seats, opts: opts.withDefaults()}
}

func (in SaleInput) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"session_id":          in.SessionID,
		"terminal_id":         in.TerminalID,
		"trip_id":             in.TripID,
		"seat_id":             in.SeatID,
		"passenger_name":      in.PassengerName,
		"passenger_document":  in.PassengerDocument,
		"destination_stop_id": in.DestinationStopID,
		"processed_by":        in.ProcessedByUserID,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return newError(CodeValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if !in.Amount.IsPositive() {
		return newError(CodeValidation, "amount must be positive")
	}
	if err := checkMoney("amount", in.Amount); err != nil {
		return err
	}
	if err := checkMoney("itbms", in.ITBMS); err != nil {
		return err
	}
	if in.ReceivedAmount != nil {
		if err := checkMoney("received_amount", *in.ReceivedAmount); err != nil {
			return err
		}
	}
	if in.ITBMS.IsNegative() || in.ITBMS.GreaterThan(in.Amount) {
		return newError(CodeValidation, "itbms must be between 0 and the amount")
	}
	if !in.PaymentMethod.Valid() {
		return newError(CodeValidation, "unsupported payment method %q", in.PaymentMethod)
	}
	if in.PaymentMethod.TouchesDrawer() {
		if in.ReceivedAmount == nil {
			return newError(CodeInsufficientPayment, "received amount is required for cash sales")
		}
		if in.ReceivedAmount.LessThan(in.Amount) {
			return newError(CodeInsufficientPayment, "received %s is less than the amount due %s",
				in.ReceivedAmount.StringFixed(2), in.Amount.StringFixed(2))
		}
	}
	return nil
}

// ProcessSale records a sale atomically: the ticket (paid), a completed
// payment, the POS transaction and the session totals are written in one
// storage transaction, and cash sales also raise the terminal drawer
// amount.  Any seat lease on the seat is released once the sale commits.
// A seat sold concurrently by another terminal yields SEAT_UNAVAILABLE.
func (s *SaleService) ProcessSale(ctx context.Context, in SaleInput) (res *SaleResult, err error) {
	ctx, span := startSpan(ctx, "SaleService.ProcessSale",
		attribute.String("terminal.id", in.TerminalID), attribute.String("trip.id", in.TripID),
		attribute.String("seat.id", in.SeatID), attribute.String("payment.method", string(in.PaymentMethod)))
	defer func() {
		if err != nil {
			s.opts.Metrics.SaleFailed(string(CodeOf(err)))
		}
		endSpan(span, err)
	}()

	if err := in.validate(); err != nil {
		return nil, err
	}

	holder := in.LockHolderID
	if holder == "" {
		holder = in.ProcessedByUserID
	}

	now := s.opts.Now()
	terminalID := in.TerminalID
	ticket := &model.Ticket{
		ID:                uuid.NewString(),
		TripID:            in.TripID,
		SeatID:            in.SeatID,
		PassengerName:     strings.TrimSpace(in.PassengerName),
		PassengerDocument: strings.TrimSpace(in.PassengerDocument),
		PassengerPhone:    in.PassengerPhone,
		PassengerEmail:    in.PassengerEmail,
		DestinationStopID: in.DestinationStopID,
		BoardingStopID:    in.BoardingStopID,
		Price:             in.Amount.Sub(in.ITBMS),
		ITBMS:             in.ITBMS,
		Total:             in.Amount,
		Status:            model.TicketPaid,
		QRCode:            newQRCode(),
		SoldByUserID:      in.ProcessedByUserID,
		TerminalID:        &terminalID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	var received, change *decimal.Decimal
	if in.PaymentMethod.TouchesDrawer() {
		r := *in.ReceivedAmount
		c := r.Sub(in.Amount)
		received, change = &r, &c
	}
	payment := &model.Payment{
		ID:                    uuid.NewString(),
		TicketID:              ticket.ID,
		Method:                in.PaymentMethod,
		Amount:                ticket.Price,
		ITBMS:                 in.ITBMS,
		TotalAmount:           in.Amount,
		Status:                model.PaymentCompleted,
		ProviderTransactionID: in.ProviderTransactionID,
		ReceivedAmount:        received,
		ChangeAmount:          change,
		CreatedAt:             now,
	}
	txn := &model.POSTransaction{
		ID:                uuid.NewString(),
		SessionID:         in.SessionID,
		TerminalID:        in.TerminalID,
		TicketID:          ticket.ID,
		PaymentID:         payment.ID,
		TransactionType:   model.TransactionSale,
		Amount:            in.Amount,
		PaymentMethod:     in.PaymentMethod,
		ReceivedAmount:    received,
		ChangeAmount:      change,
		ProcessedByUserID: in.ProcessedByUserID,
		CreatedAt:         now,
	}
	delta := model.SalesDelta{Amount: in.Amount, Method: in.PaymentMethod, Tickets: 1}

	var session *model.POSCashSession
	err = s.store.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		sess, err := st.Sessions.GetByIDForUpdate(ctx, in.SessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(CodeNotFound, "session %s not found", in.SessionID)
		}
		if err != nil {
			return err
		}
		if !sess.IsOpen() {
			return newError(CodeSessionClosed, "session %s is closed", sess.ID)
		}
		if sess.TerminalID != in.TerminalID {
			return newError(CodeSessionClosed, "session %s does not belong to terminal %s", sess.ID, in.TerminalID)
		}

		lock, err := s.seats.ActiveLock(ctx, in.TripID, in.SeatID)
		if err != nil {
			return err
		}
		if lock != nil && lock.HolderID != holder {
			return newError(CodeSeatUnavailable, "seat %s is locked by another agent", in.SeatID)
		}

		sold, err := st.Tickets.FindActiveBySeat(ctx, in.TripID, in.SeatID)
		if err != nil {
			return err
		}
		if sold != nil {
			return newError(CodeSeatUnavailable, "seat %s is already sold for this trip", in.SeatID)
		}

		if err := st.Tickets.Create(ctx, ticket); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(CodeSeatUnavailable, "seat %s is already sold for this trip", in.SeatID)
			}
			return err
		}
		if err := st.Payments.Create(ctx, payment); err != nil {
			return err
		}
		if err := st.Transactions.Create(ctx, txn); err != nil {
			return err
		}
		if err := st.Sessions.ApplySale(ctx, sess.ID, delta); err != nil {
			return err
		}
		if in.PaymentMethod.TouchesDrawer() {
			if err := st.Terminals.AddCash(ctx, in.TerminalID, in.Amount); err != nil {
				return err
			}
		}
		sess.Apply(delta)
		session = sess
		return nil
	})
	if err != nil {
		return nil, persistence("process sale", err)
	}

	log := s.opts.log(ctx).With(
		zap.String("ticket_id", ticket.ID), zap.String("session_id", in.SessionID),
		zap.String("trip_id", in.TripID), zap.String("seat_id", in.SeatID))
	if err := s.seats.ReleaseSeat(ctx, in.TripID, in.SeatID); err != nil {
		log.Warn("release seat lock after sale", zap.Error(err))
	}

	s.opts.Metrics.SaleRecorded(string(in.PaymentMethod), in.Amount)
	log.Info("sale recorded",
		zap.String("method", string(in.PaymentMethod)), zap.String("amount", in.Amount.StringFixed(2)))
	amount, total, tickets := in.Amount, session.TotalSales, session.TotalTickets
	s.opts.publish(ctx, queue.POSEvent{
		Type: queue.EventSaleRecorded, TerminalID: in.TerminalID, SessionID: in.SessionID,
		UserID: in.ProcessedByUserID, TripID: in.TripID, SeatID: in.SeatID, TicketID: ticket.ID,
		PaymentMethod: string(in.PaymentMethod), Amount: &amount,
		TotalSales: &total, TotalTickets: &tickets,
	})
	return &SaleResult{Ticket: ticket, Payment: payment, Transaction: txn}, nil
}

// newQRCode returns the opaque boarding code printed on a ticket.
func newQRCode() string {
	return "BUS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
