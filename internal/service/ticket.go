package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/repository"
)

// TicketService reads tickets and drives their lifecycle after the sale:
// boarding, completion, cancellation and refund.
type TicketService struct {
	store repository.Store
	opts  Options
}

// NewTicketService returns a TicketService.
func NewTicketService(store repository.Store, opts Options) *TicketService {
	return &TicketService{store: store, opts: opts.withDefaults()}
}

// Get returns a ticket by ID.
func (s *TicketService) Get(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := s.store.Stores().Tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(CodeNotFound, "ticket %s not found", id)
	}
	if err != nil {
		return nil, persistence("load ticket", err)
	}
	return t, nil
}

// UpdateStatus moves a ticket forward.  Backward or unknown transitions
// are OPERATION_INVALID, as is a concurrent change of the same ticket.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, to model.TicketStatus) (t *model.Ticket, err error) {
	ctx, span := startSpan(ctx, "TicketService.UpdateStatus",
		attribute.String("ticket.id", id), attribute.String("ticket.status", string(to)))
	defer func() { endSpan(span, err) }()

	if !to.Valid() {
		return nil, newError(CodeValidation, "unknown ticket status %q", to)
	}
	t, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := t.Status
	if !model.CanTransition(from, to) {
		return nil, newError(CodeOperationInvalid, "ticket cannot move from %s to %s", from, to)
	}

	now := s.opts.Now()
	err = s.store.Stores().Tickets.UpdateStatus(ctx, id, from, to, now)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return nil, newError(CodeOperationInvalid, "ticket %s changed concurrently", id)
	case errors.Is(err, repository.ErrDuplicate):
		return nil, newError(CodeSeatUnavailable, "seat %s is already sold for this trip", t.SeatID)
	case err != nil:
		return nil, persistence("update ticket status", err)
	}
	t.Status = to
	t.UpdatedAt = now

	s.opts.log(ctx).Info("ticket status changed",
		zap.String("ticket_id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	s.opts.publish(ctx, queue.POSEvent{
		Type: queue.EventTicketStatusChanged, TicketID: id, TripID: t.TripID, SeatID: t.SeatID,
		TicketStatus: string(to),
	})
	return t, nil
}
