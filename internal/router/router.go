// Package router registers the HTTP routes of the POS API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-pos/internal/handler"
	"github.com/iliyamo/bus-pos/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil when Prometheus exposure is disabled.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, metrics http.Handler) {
	e.GET("/healthz", health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// POS bundles the handlers and middleware mounted under /v1.  RateLimit
// and ReportCache are optional and usually backed by Redis.
type POS struct {
	JWTSecret   string
	Terminals   *handler.TerminalHandler
	Sales       *handler.SaleHandler
	Seats       *handler.SeatHandler
	Tickets     *handler.TicketHandler
	RateLimit   echo.MiddlewareFunc
	ReportCache echo.MiddlewareFunc
}

// RegisterPOS registers the protected POS endpoints.  Every route passes
// JWTAuth, then the rate limiter, then a single capability check.
func RegisterPOS(e *echo.Echo, p POS) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(p.JWTSecret))
	if p.RateLimit != nil {
		g.Use(p.RateLimit)
	}

	can := middleware.RequireCapability
	cached := []echo.MiddlewareFunc{can(middleware.CapReport)}
	if p.ReportCache != nil {
		cached = append(cached, p.ReportCache)
	}

	g.POST("/terminals/:id/open", p.Terminals.Open, can(middleware.CapCash))
	g.POST("/terminals/:id/close", p.Terminals.Close, can(middleware.CapCash))
	g.GET("/terminals/:id/session", p.Terminals.Session, can(middleware.CapCash))
	g.GET("/terminals/:id/report", p.Terminals.Report, can(middleware.CapReport))
	g.GET("/sessions/:id/report", p.Terminals.SessionReport, cached...)

	g.POST("/sales", p.Sales.Create, can(middleware.CapSell))

	seat := g.Group("/trips/:tripId/seats/:seatId")
	seat.POST("/lock", p.Seats.Lock, can(middleware.CapSeatLock))
	seat.DELETE("/lock", p.Seats.Unlock, can(middleware.CapSeatLock))
	seat.GET("/status", p.Seats.Status, can(middleware.CapSeatLock))

	g.GET("/tickets/:id", p.Tickets.Get, can(middleware.CapTicketRead))
	g.PATCH("/tickets/:id/status", p.Tickets.UpdateStatus, can(middleware.CapTicketUpdate))
}
