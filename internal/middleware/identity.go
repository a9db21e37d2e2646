package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated agent stored by JWTAuth, or "" when the
// request carries no identity.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok {
		return s
	}
	return ""
}

// Role returns the role claim stored by JWTAuth.
func Role(c echo.Context) string {
	if s, ok := c.Get(ContextRole).(string); ok {
		return s
	}
	return ""
}

// currentUserID is the rate limiter's view of the caller; anonymous
// requests share one bucket per IP.
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
