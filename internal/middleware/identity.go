package middleware

// identity.go holds the context keys JWTAuth fills and the accessors the
// rest of the middleware chain and the handlers read them with.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxError  = "handler_error"
)

// UserID returns the authenticated user's ID, or false when the request
// carries no verified identity.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get(ctxUserID).(type) {
	case uint64:
		return v, v != 0
	case float64:
		return uint64(v), v > 0
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil && n != 0
	}
	return 0, false
}

// Role returns the role claim of the authenticated user, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// SetIdentity stores a verified identity on the context.
func SetIdentity(c echo.Context, userID uint64, role string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
}

// SetError records an error a handler already answered so that the
// request log line carries it.
func SetError(c echo.Context, err error) {
	c.Set(ctxError, err)
}

// rateKeyUser returns the user part of rate limit keys.
func rateKeyUser(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
