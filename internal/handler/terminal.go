package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/cashcount"
	"github.com/iliyamo/bus-pos/internal/middleware"
	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/service"
)

// TerminalHandler serves the cash register endpoints of a terminal.
type TerminalHandler struct {
	Register *service.CashRegisterService
	Reports  *service.ReportService
}

func NewTerminalHandler(register *service.CashRegisterService, reports *service.ReportService) *TerminalHandler {
	if register == nil || reports == nil {
		panic("nil service passed to NewTerminalHandler")
	}
	return &TerminalHandler{Register: register, Reports: reports}
}

type openRequest struct {
	InitialCash      decimal.Decimal          `json:"initial_cash"`
	CashBreakdown    []cashcount.Denomination `json:"cash_breakdown" validate:"max=50"`
	ManualTotal      *decimal.Decimal         `json:"manual_total"`
	DiscrepancyNotes *string                  `json:"discrepancy_notes" validate:"omitempty,max=2000"`
}

type closeRequest struct {
	ClosureType      string                   `json:"closure_type" validate:"required,oneof=X Z"`
	ActualCash       decimal.Decimal          `json:"actual_cash"`
	CashBreakdown    []cashcount.Denomination `json:"cash_breakdown" validate:"max=50"`
	ManualTotal      *decimal.Decimal         `json:"manual_total"`
	Notes            *string                  `json:"notes" validate:"omitempty,max=2000"`
	DiscrepancyNotes *string                  `json:"discrepancy_notes" validate:"omitempty,max=2000"`
}

// Open handles POST /v1/terminals/:id/open.
func (h *TerminalHandler) Open(c echo.Context) error {
	var req openRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	st, err := h.Register.OpenCashRegister(c.Request().Context(), service.OpenInput{
		TerminalID:       c.Param("id"),
		UserID:           middleware.UserID(c),
		InitialCash:      req.InitialCash,
		CashBreakdown:    req.CashBreakdown,
		ManualTotal:      req.ManualTotal,
		DiscrepancyNotes: req.DiscrepancyNotes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, st)
}

// Close handles POST /v1/terminals/:id/close.
func (h *TerminalHandler) Close(c echo.Context) error {
	var req closeRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	st, err := h.Register.CloseCashRegister(c.Request().Context(), service.CloseInput{
		TerminalID:       c.Param("id"),
		UserID:           middleware.UserID(c),
		ClosureType:      model.ClosureType(req.ClosureType),
		ActualCash:       req.ActualCash,
		CashBreakdown:    req.CashBreakdown,
		ManualTotal:      req.ManualTotal,
		Notes:            req.Notes,
		DiscrepancyNotes: req.DiscrepancyNotes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Session handles GET /v1/terminals/:id/session.
func (h *TerminalHandler) Session(c echo.Context) error {
	sess, err := h.Register.GetCurrentSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Report handles GET /v1/terminals/:id/report?from=&to=.  Bounds are
// RFC 3339; the period defaults to the 24 hours before to.
func (h *TerminalHandler) Report(c echo.Context) error {
	to := time.Now().UTC()
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return respondError(c, &service.Error{Code: service.CodeValidation, Message: "to must be RFC 3339"})
		}
		to = t
	}
	from := to.Add(-24 * time.Hour)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return respondError(c, &service.Error{Code: service.CodeValidation, Message: "from must be RFC 3339"})
		}
		from = t
	}
	rep, err := h.Reports.GetTerminalReport(c.Request().Context(), c.Param("id"), from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// SessionReport handles GET /v1/sessions/:id/report.  Reports of closed
// sessions never change and are marked for the report cache.
func (h *TerminalHandler) SessionReport(c echo.Context) error {
	rep, err := h.Register.GetSessionReport(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !rep.Session.IsOpen() {
		middleware.MarkFinal(c)
	}
	return c.JSON(http.StatusOK, rep)
}
