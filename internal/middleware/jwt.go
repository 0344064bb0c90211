package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/busstation/station/internal/utils"
)

// JWTAuth validates a Bearer access token and injects the token's user
// ID and role into the request context.  Requests without a valid token
// are answered with 401 before any handler runs.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				c.Response().Header().Set("WWW-Authenticate", `Bearer realm="station"`)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication credentials were not provided"})
			}
			uid, role, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				c.Response().Header().Set("WWW-Authenticate", `Bearer realm="station", error="invalid_token"`)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			SetIdentity(c, uid, role)
			return next(c)
		}
	}
}
