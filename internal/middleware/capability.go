package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Capabilities checked in front of the POS endpoints.
const (
	CapSell         = "pos.sell"
	CapCash         = "pos.cash"
	CapReport       = "pos.report"
	CapSeatLock     = "seat.lock"
	CapTicketRead   = "ticket.read"
	CapTicketUpdate = "ticket.update"
)

// Roles known to the POS.
const (
	RoleAgent      = "sales_agent"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
	RoleDriver     = "driver"
)

var roleCapabilities = map[string][]string{
	RoleAgent:      {CapSell, CapCash, CapSeatLock, CapTicketRead, CapReport},
	RoleSupervisor: {CapSell, CapCash, CapSeatLock, CapTicketRead, CapTicketUpdate, CapReport},
	RoleAdmin:      {CapSell, CapCash, CapSeatLock, CapTicketRead, CapTicketUpdate, CapReport},
	RoleDriver:     {CapTicketRead, CapTicketUpdate},
}

// HasCapability reports whether role grants capability.
func HasCapability(role, capability string) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// RequireCapability aborts with 403 unless the role stored by JWTAuth
// grants the capability.  Services behind it carry no role logic.
func RequireCapability(capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasCapability(Role(c), capability) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
