package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/middleware"
	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/service"
)

// SaleHandler serves counter ticket sales.
type SaleHandler struct {
	Sales *service.SaleService
}

func NewSaleHandler(sales *service.SaleService) *SaleHandler {
	if sales == nil {
		panic("nil service passed to NewSaleHandler")
	}
	return &SaleHandler{Sales: sales}
}

type saleRequest struct {
	SessionID             string           `json:"session_id" validate:"required"`
	TerminalID            string           `json:"terminal_id" validate:"required"`
	TripID                string           `json:"trip_id" validate:"required"`
	SeatID                string           `json:"seat_id" validate:"required"`
	PassengerName         string           `json:"passenger_name" validate:"required,max=255"`
	PassengerDocument     string           `json:"passenger_document" validate:"required,max=64"`
	PassengerPhone        *string          `json:"passenger_phone" validate:"omitempty,max=32"`
	PassengerEmail        *string          `json:"passenger_email" validate:"omitempty,email,max=255"`
	DestinationStopID     string           `json:"destination_stop_id" validate:"required"`
	BoardingStopID        *string          `json:"boarding_stop_id"`
	Amount                decimal.Decimal  `json:"amount"`
	ITBMS                 decimal.Decimal  `json:"itbms"`
	PaymentMethod         string           `json:"payment_method" validate:"required,oneof=cash card yappy paguelofacil transfer"`
	ReceivedAmount        *decimal.Decimal `json:"received_amount"`
	ProviderTransactionID *string          `json:"provider_transaction_id" validate:"omitempty,max=128"`
	LockHolderID          string           `json:"lock_holder_id" validate:"omitempty,max=64"`
}

// Create handles POST /v1/sales.  The selling agent is the authenticated
// user; the seat lease consumed defaults to that agent's own.
func (h *SaleHandler) Create(c echo.Context) error {
	var req saleRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.Sales.ProcessSale(c.Request().Context(), service.SaleInput{
		SessionID:             req.SessionID,
		TerminalID:            req.TerminalID,
		TripID:                req.TripID,
		SeatID:                req.SeatID,
		PassengerName:         req.PassengerName,
		PassengerDocument:     req.PassengerDocument,
		PassengerPhone:        req.PassengerPhone,
		PassengerEmail:        req.PassengerEmail,
		DestinationStopID:     req.DestinationStopID,
		BoardingStopID:        req.BoardingStopID,
		Amount:                req.Amount,
		ITBMS:                 req.ITBMS,
		PaymentMethod:         model.PaymentMethod(req.PaymentMethod),
		ReceivedAmount:        req.ReceivedAmount,
		ProviderTransactionID: req.ProviderTransactionID,
		ProcessedByUserID:     middleware.UserID(c),
		LockHolderID:          req.LockHolderID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
