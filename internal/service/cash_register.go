package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-pos/internal/cashcount"
	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/repository"
)

// OpenInput is the request to start a cash session on a terminal.
// ManualTotal is the total the agent declares by hand.  The breakdown is
// checked against it only when both are given.
type OpenInput struct {
	TerminalID       string
	UserID           string
	InitialCash      decimal.Decimal
	CashBreakdown    []cashcount.Denomination
	ManualTotal      *decimal.Decimal
	DiscrepancyNotes *string
}

// CloseInput is the request to end the open cash session of a terminal.
// ManualTotal defaults to ActualCash.
type CloseInput struct {
	TerminalID       string
	UserID           string
	ClosureType      model.ClosureType
	ActualCash       decimal.Decimal
	CashBreakdown    []cashcount.Denomination
	ManualTotal      *decimal.Decimal
	Notes            *string
	DiscrepancyNotes *string
}

// RegisterState is the terminal and session after an open or close.
type RegisterState struct {
	Terminal *model.POSTerminal     `json:"terminal"`
	Session  *model.POSCashSession `json:"session"`
}

// CashRegisterService runs the CLOSED -> OPEN -> CLOSED lifecycle of POS
// terminals.  Counting mismatches are recorded on the session and never
// block an open or a close.
type CashRegisterService struct {
	store     repository.Store
	reports   *ReportService
	tolerance decimal.Decimal
	opts      Options
}

// NewCashRegisterService returns a service comparing cash counts with the
// given tolerance (cashcount.DefaultTolerance when negative).
func NewCashRegisterService(store repository.Store, reports *ReportService, tolerance decimal.Decimal, opts Options) *CashRegisterService {
	if tolerance.IsNegative() {
		tolerance = cashcount.DefaultTolerance
	}
	return &CashRegisterService{store: store, reports: reports, tolerance: tolerance, opts: opts.withDefaults()}
}

// OpenCashRegister opens a new session on an active, closed terminal.
func (s *CashRegisterService) OpenCashRegister(ctx context.Context, in OpenInput) (state *RegisterState, err error) {
	ctx, span := startSpan(ctx, "CashRegisterService.Open", attribute.String("terminal.id", in.TerminalID))
	defer func() { endSpan(span, err) }()

	if in.TerminalID == "" || in.UserID == "" {
		return nil, newError(CodeValidation, "terminal_id and user_id are required")
	}
	if in.InitialCash.IsNegative() {
		return nil, newError(CodeValidation, "initial cash cannot be negative")
	}
	if err := checkMoney("initial_cash", in.InitialCash); err != nil {
		return nil, err
	}
	if in.ManualTotal != nil {
		if err := checkMoney("manual_total", *in.ManualTotal); err != nil {
			return nil, err
		}
	}
	if err := cashcount.ValidateBreakdown(in.CashBreakdown); err != nil {
		return nil, &Error{Code: CodeValidation, Message: "invalid opening breakdown", Err: err}
	}

	notes := notesFrom(in.DiscrepancyNotes)
	if len(in.CashBreakdown) > 0 && in.ManualTotal != nil {
		if r := cashcount.Validate(cashcount.CalculateTotal(in.CashBreakdown), *in.ManualTotal, s.tolerance); !r.IsValid {
			notes = append(notes, "opening count: "+r.Message)
		}
	}

	now := s.opts.Now()
	session := &model.POSCashSession{
		ID:               uuid.NewString(),
		TerminalID:       in.TerminalID,
		OpenedBy:         in.UserID,
		OpenedAt:         now,
		InitialCash:      in.InitialCash,
		DiscrepancyNotes: joinNotes(notes),
	}

	var terminal *model.POSTerminal
	err = s.store.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		t, err := st.Terminals.GetByIDForUpdate(ctx, in.TerminalID)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(CodeNotFound, "terminal %s not found", in.TerminalID)
		}
		if err != nil {
			return err
		}
		if !t.IsActive {
			return newError(CodeOperationInvalid, "terminal %s is not active", t.Identifier)
		}
		if t.IsOpen {
			return newError(CodeOperationInvalid, "terminal %s is already open", t.Identifier)
		}

		if err := st.Sessions.Create(ctx, session); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(CodeOperationInvalid, "terminal %s already has an open session", t.Identifier)
			}
			return err
		}
		if err := st.CashCounts.CreateMany(ctx, breakdownRows(session.ID, model.BreakdownInitial, in.CashBreakdown)); err != nil {
			return err
		}

		t.IsOpen = true
		t.InitialCashAmount = in.InitialCash
		t.CurrentCashAmount = in.InitialCash
		t.LastOpenedAt = &now
		t.OpenedByUserID = &in.UserID
		if err := st.Terminals.Update(ctx, t); err != nil {
			return err
		}
		terminal = t
		return nil
	})
	if err != nil {
		return nil, persistence("open cash register", err)
	}

	s.opts.Metrics.SessionOpened()
	s.opts.log(ctx).Info("cash register opened",
		zap.String("terminal_id", in.TerminalID), zap.String("session_id", session.ID),
		zap.String("user_id", in.UserID), zap.String("initial_cash", in.InitialCash.StringFixed(2)))
	s.opts.publish(ctx, queue.POSEvent{
		Type: queue.EventSessionOpened, TerminalID: in.TerminalID, SessionID: session.ID, UserID: in.UserID,
	})
	return &RegisterState{Terminal: terminal, Session: session}, nil
}

// CloseCashRegister closes the open session of a terminal with an X
// (interim) or Z (end of period) closure.  The difference between counted
// and expected cash is always recorded.  Both closure types leave the
// terminal closed; a Z closure also resets the drawer amount to the
// counted cash.
func (s *CashRegisterService) CloseCashRegister(ctx context.Context, in CloseInput) (state *RegisterState, err error) {
	ctx, span := startSpan(ctx, "CashRegisterService.Close",
		attribute.String("terminal.id", in.TerminalID), attribute.String("closure.type", string(in.ClosureType)))
	defer func() { endSpan(span, err) }()

	if in.TerminalID == "" || in.UserID == "" {
		return nil, newError(CodeValidation, "terminal_id and user_id are required")
	}
	if !in.ClosureType.Valid() {
		return nil, newError(CodeValidation, "closure type must be X or Z")
	}
	if in.ActualCash.IsNegative() {
		return nil, newError(CodeValidation, "actual cash cannot be negative")
	}
	if err := checkMoney("actual_cash", in.ActualCash); err != nil {
		return nil, err
	}
	if in.ManualTotal != nil {
		if err := checkMoney("manual_total", *in.ManualTotal); err != nil {
			return nil, err
		}
	}
	if err := cashcount.ValidateBreakdown(in.CashBreakdown); err != nil {
		return nil, &Error{Code: CodeValidation, Message: "invalid closing breakdown", Err: err}
	}

	now := s.opts.Now()
	var (
		terminal *model.POSTerminal
		session  *model.POSCashSession
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		t, err := st.Terminals.GetByIDForUpdate(ctx, in.TerminalID)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(CodeNotFound, "terminal %s not found", in.TerminalID)
		}
		if err != nil {
			return err
		}
		if !t.IsOpen {
			return newError(CodeTerminalNotOpen, "terminal %s is not open", t.Identifier)
		}
		sess, err := st.Sessions.GetOpenByTerminal(ctx, in.TerminalID)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(CodeTerminalNotOpen, "terminal %s has no open session", t.Identifier)
		}
		if err != nil {
			return err
		}

		expected := sess.CurrentExpectedCash()
		actual := in.ActualCash
		diff := actual.Sub(expected)

		notes := notesFrom(sess.DiscrepancyNotes)
		notes = append(notes, notesFrom(in.DiscrepancyNotes)...)
		notes = append(notes, s.closingNotes(in, expected, diff)...)

		closureType := in.ClosureType
		sess.ClosedAt = &now
		sess.ClosedBy = &in.UserID
		sess.ClosureType = &closureType
		sess.ExpectedCash = &expected
		sess.ActualCash = &actual
		sess.Difference = &diff
		sess.Notes = in.Notes
		sess.DiscrepancyNotes = joinNotes(notes)
		if err := st.Sessions.Close(ctx, sess); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newError(CodeSessionClosed, "session %s is already closed", sess.ID)
			}
			return err
		}
		if err := st.CashCounts.CreateMany(ctx, breakdownRows(sess.ID, model.BreakdownClosing, in.CashBreakdown)); err != nil {
			return err
		}

		t.IsOpen = false
		t.LastClosedAt = &now
		if closureType == model.ClosureZ {
			t.CurrentCashAmount = actual
		}
		if err := st.Terminals.Update(ctx, t); err != nil {
			return err
		}
		terminal, session = t, sess
		return nil
	})
	if err != nil {
		return nil, persistence("close cash register", err)
	}

	discrepancy := session.Difference.Abs().GreaterThan(s.tolerance)
	s.opts.Metrics.SessionClosed(string(in.ClosureType), discrepancy)
	log := s.opts.log(ctx).With(
		zap.String("terminal_id", in.TerminalID), zap.String("session_id", session.ID),
		zap.String("closure_type", string(in.ClosureType)), zap.String("difference", session.Difference.StringFixed(2)))
	if discrepancy {
		log.Warn("cash register closed with discrepancy")
	} else {
		log.Info("cash register closed")
	}
	total, tickets := session.TotalSales, session.TotalTickets
	s.opts.publish(ctx, queue.POSEvent{
		Type: queue.EventSessionClosed, TerminalID: in.TerminalID, SessionID: session.ID, UserID: in.UserID,
		ClosureType: string(in.ClosureType), Difference: session.Difference,
		TotalSales: &total, TotalTickets: &tickets,
	})
	return &RegisterState{Terminal: terminal, Session: session}, nil
}

// closingNotes cross-checks the closing count.  With a breakdown the
// counted total is compared to the declared and expected totals; without
// one only the declared cash is compared to the expected cash.
func (s *CashRegisterService) closingNotes(in CloseInput, expected, diff decimal.Decimal) []string {
	var notes []string
	if len(in.CashBreakdown) == 0 {
		if diff.Abs().GreaterThan(s.tolerance) {
			notes = append(notes, fmt.Sprintf("closing cash differs from expected %s by %s",
				expected.StringFixed(2), diff.StringFixed(2)))
		}
		return notes
	}
	manual := in.ActualCash
	if in.ManualTotal != nil {
		manual = *in.ManualTotal
	}
	r := cashcount.ValidateForClosing(cashcount.CalculateTotal(in.CashBreakdown), manual, expected, s.tolerance)
	if !r.CountedVsManual.IsValid {
		notes = append(notes, "closing count vs declared: "+r.CountedVsManual.Message)
	}
	if !r.CountedVsExpected.IsValid {
		notes = append(notes, "closing count vs expected: "+r.CountedVsExpected.Message)
	}
	if !r.ManualVsExpected.IsValid {
		notes = append(notes, "declared vs expected: "+r.ManualVsExpected.Message)
	}
	return notes
}

// GetCurrentSession returns the open session of a terminal.
func (s *CashRegisterService) GetCurrentSession(ctx context.Context, terminalID string) (*model.POSCashSession, error) {
	st := s.store.Stores()
	t, err := st.Terminals.GetByID(ctx, terminalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(CodeNotFound, "terminal %s not found", terminalID)
	}
	if err != nil {
		return nil, persistence("load terminal", err)
	}
	sess, err := st.Sessions.GetOpenByTerminal(ctx, terminalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(CodeTerminalNotOpen, "terminal %s is not open", t.Identifier)
	}
	if err != nil {
		return nil, persistence("load open session", err)
	}
	return sess, nil
}

// GetSessionReport returns the closure report of a session.
func (s *CashRegisterService) GetSessionReport(ctx context.Context, sessionID string) (*SessionReport, error) {
	return s.reports.GetSessionReport(ctx, sessionID)
}

func breakdownRows(sessionID string, typ model.BreakdownType, in []cashcount.Denomination) []model.CashCountBreakdown {
	rows := make([]model.CashCountBreakdown, 0, len(in))
	for _, d := range in {
		rows = append(rows, model.CashCountBreakdown{
			SessionID:    sessionID,
			Denomination: d.Denomination,
			Count:        d.Count,
			Type:         typ,
		})
	}
	return rows
}

func notesFrom(p *string) []string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return []string{strings.TrimSpace(*p)}
}

func joinNotes(notes []string) *string {
	if len(notes) == 0 {
		return nil
	}
	s := strings.Join(notes, "\n")
	return &s
}
