package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/cashcount"
	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/repository"
)

// MethodTotal is the count and sum of transactions paid with one method.
type MethodTotal struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ReportSummary aggregates a session for the closure report.
// ExpectedCash is the frozen value for a closed session and the running
// value for an open one.  Reconciled is true only for a closed session
// whose difference is within tolerance.
type ReportSummary struct {
	TotalSales        decimal.Decimal                     `json:"total_sales"`
	TotalTickets      int                                 `json:"total_tickets"`
	TotalCashSales    decimal.Decimal                     `json:"total_cash_sales"`
	TotalCardSales    decimal.Decimal                     `json:"total_card_sales"`
	TotalDigitalSales decimal.Decimal                     `json:"total_digital_sales"`
	ByPaymentMethod   map[model.PaymentMethod]MethodTotal `json:"by_payment_method"`
	ExpectedCash      decimal.Decimal                     `json:"expected_cash"`
	ActualCash        *decimal.Decimal                    `json:"actual_cash,omitempty"`
	Difference        *decimal.Decimal                    `json:"difference,omitempty"`
	Reconciled        bool                                `json:"reconciled"`
}

// SessionReport is the closure report of one cash session.
type SessionReport struct {
	Session      *model.POSCashSession      `json:"session"`
	Transactions []model.POSTransaction     `json:"transactions"`
	Breakdowns   []model.CashCountBreakdown `json:"breakdowns"`
	Summary      ReportSummary              `json:"summary"`
}

// TerminalReport sums the sessions of a terminal opened in [From, To).
type TerminalReport struct {
	TerminalID        string                 `json:"terminal_id"`
	From              time.Time              `json:"from"`
	To                time.Time              `json:"to"`
	SessionCount      int                    `json:"session_count"`
	TotalSales        decimal.Decimal        `json:"total_sales"`
	TotalTickets      int                    `json:"total_tickets"`
	TotalCashSales    decimal.Decimal        `json:"total_cash_sales"`
	TotalCardSales    decimal.Decimal        `json:"total_card_sales"`
	TotalDigitalSales decimal.Decimal        `json:"total_digital_sales"`
	TotalDifference   decimal.Decimal        `json:"total_difference"`
	Sessions          []model.POSCashSession `json:"sessions"`
}

// ReportService builds read-only reports.
type ReportService struct {
	store     repository.Store
	tolerance decimal.Decimal
}

// NewReportService returns a ReportService using tolerance to decide
// whether a closed session reconciles.
func NewReportService(store repository.Store, tolerance decimal.Decimal) *ReportService {
	if tolerance.IsNegative() {
		tolerance = cashcount.DefaultTolerance
	}
	return &ReportService{store: store, tolerance: tolerance}
}

// GetSessionReport returns the session with its transactions, drawer
// counts and summary.
func (r *ReportService) GetSessionReport(ctx context.Context, sessionID string) (rep *SessionReport, err error) {
	ctx, span := startSpan(ctx, "ReportService.GetSessionReport")
	defer func() { endSpan(span, err) }()

	st := r.store.Stores()
	sess, err := st.Sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(CodeNotFound, "session %s not found", sessionID)
	}
	if err != nil {
		return nil, persistence("load session", err)
	}
	txns, err := st.Transactions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, persistence("list transactions", err)
	}
	counts, err := st.CashCounts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, persistence("list cash counts", err)
	}
	if txns == nil {
		txns = []model.POSTransaction{}
	}
	if counts == nil {
		counts = []model.CashCountBreakdown{}
	}
	return &SessionReport{
		Session:      sess,
		Transactions: txns,
		Breakdowns:   counts,
		Summary:      r.summarize(sess, txns),
	}, nil
}

func (r *ReportService) summarize(sess *model.POSCashSession, txns []model.POSTransaction) ReportSummary {
	sum := ReportSummary{
		TotalSales:        sess.TotalSales,
		TotalTickets:      sess.TotalTickets,
		TotalCashSales:    sess.TotalCashSales,
		TotalCardSales:    sess.TotalCardSales,
		TotalDigitalSales: sess.TotalDigitalSales,
		ByPaymentMethod:   map[model.PaymentMethod]MethodTotal{},
		ExpectedCash:      sess.CurrentExpectedCash(),
		ActualCash:        sess.ActualCash,
		Difference:        sess.Difference,
	}
	for _, t := range txns {
		mt := sum.ByPaymentMethod[t.PaymentMethod]
		mt.Count++
		mt.Amount = mt.Amount.Add(t.Amount)
		sum.ByPaymentMethod[t.PaymentMethod] = mt
	}
	if !sess.IsOpen() {
		if sess.ExpectedCash != nil {
			sum.ExpectedCash = *sess.ExpectedCash
		}
		sum.Reconciled = sess.Difference != nil && sess.Difference.Abs().LessThanOrEqual(r.tolerance)
	}
	return sum
}

// GetTerminalReport sums the sessions of a terminal opened in [from, to).
func (r *ReportService) GetTerminalReport(ctx context.Context, terminalID string, from, to time.Time) (rep *TerminalReport, err error) {
	ctx, span := startSpan(ctx, "ReportService.GetTerminalReport")
	defer func() { endSpan(span, err) }()

	if !from.Before(to) {
		return nil, newError(CodeValidation, "from must be before to")
	}
	st := r.store.Stores()
	if _, err := st.Terminals.GetByID(ctx, terminalID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, "terminal %s not found", terminalID)
		}
		return nil, persistence("load terminal", err)
	}
	sessions, err := st.Sessions.ListByTerminal(ctx, terminalID, from, to)
	if err != nil {
		return nil, persistence("list sessions", err)
	}

	rep = &TerminalReport{TerminalID: terminalID, From: from, To: to, Sessions: sessions}
	if rep.Sessions == nil {
		rep.Sessions = []model.POSCashSession{}
	}
	for _, s := range sessions {
		rep.SessionCount++
		rep.TotalSales = rep.TotalSales.Add(s.TotalSales)
		rep.TotalTickets += s.TotalTickets
		rep.TotalCashSales = rep.TotalCashSales.Add(s.TotalCashSales)
		rep.TotalCardSales = rep.TotalCardSales.Add(s.TotalCardSales)
		rep.TotalDigitalSales = rep.TotalDigitalSales.Add(s.TotalDigitalSales)
		if s.Difference != nil {
			rep.TotalDifference = rep.TotalDifference.Add(*s.Difference)
		}
	}
	return rep, nil
}
