package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/busstation/station/internal/model"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Allow Decision = iota
	Unauthenticated
	Forbidden
)

// Permit decides whether a caller holding role may use method on a
// catalog resource (buses, trips, facilities): anonymous callers are
// never admitted, safe methods are open to every authenticated user and
// everything else is reserved to staff.  An empty role means anonymous.
func Permit(role, method string) Decision {
	if role == "" {
		return Unauthenticated
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return Allow
	}
	if role == model.RoleStaff {
		return Allow
	}
	return Forbidden
}

// StaffOrReadOnly enforces Permit for the request.  It must run after
// JWTAuth.
func StaffOrReadOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch Permit(Role(c), c.Request().Method) {
			case Unauthenticated:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication credentials were not provided"})
			case Forbidden:
				return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not have permission to perform this action"})
			}
			return next(c)
		}
	}
}

// RequireRole returns a middleware that enforces that the authenticated
// user has one of the specified roles, whatever the method.  It assumes
// JWTAuth has already stored the role.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c)
			if role == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication credentials were not provided"})
			}
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not have permission to perform this action"})
			}
			return next(c)
		}
	}
}
