package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/service"
)

// TicketHandler serves ticket lookups and status changes.
type TicketHandler struct {
	Tickets *service.TicketService
}

func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	if tickets == nil {
		panic("nil service passed to NewTicketHandler")
	}
	return &TicketHandler{Tickets: tickets}
}

type ticketStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid boarded completed cancelled refunded"`
}

// Get handles GET /v1/tickets/:id.
func (h *TicketHandler) Get(c echo.Context) error {
	t, err := h.Tickets.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateStatus handles PATCH /v1/tickets/:id/status.
func (h *TicketHandler) UpdateStatus(c echo.Context) error {
	var req ticketStatusRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.Tickets.UpdateStatus(c.Request().Context(), c.Param("id"), model.TicketStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
