package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-pos/internal/middleware"
	"github.com/iliyamo/bus-pos/internal/service"
)

// SeatHandler serves seat leases taken by agents while a sale is keyed in.
type SeatHandler struct {
	Seats *service.SeatLockManager
}

func NewSeatHandler(seats *service.SeatLockManager) *SeatHandler {
	if seats == nil {
		panic("nil service passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats}
}

type lockRequest struct {
	DurationSeconds int `json:"duration_seconds" validate:"omitempty,min=1,max=3600"`
}

// Lock handles POST /v1/trips/:tripId/seats/:seatId/lock.  The body is
// optional; without a duration the configured lease length applies.
func (h *SeatHandler) Lock(c echo.Context) error {
	var req lockRequest
	if c.Request().ContentLength > 0 {
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}
	}
	lock, err := h.Seats.Lock(c.Request().Context(), c.Param("tripId"), c.Param("seatId"),
		middleware.UserID(c), time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, lock)
}

// Unlock handles DELETE /v1/trips/:tripId/seats/:seatId/lock.  Releasing a
// lease that does not exist succeeds.
func (h *SeatHandler) Unlock(c echo.Context) error {
	if err := h.Seats.Unlock(c.Request().Context(), c.Param("tripId"), c.Param("seatId"), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Status handles GET /v1/trips/:tripId/seats/:seatId/status.
func (h *SeatHandler) Status(c echo.Context) error {
	st, err := h.Seats.Status(c.Request().Context(), c.Param("tripId"), c.Param("seatId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
