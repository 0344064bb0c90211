package handler // handler defines http handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/busstation/station/internal/media"
	"github.com/busstation/station/internal/middleware"
	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/service"
)

// notFound lists the lookup failures answered with 404.
var notFound = []error{
	model.ErrFacilityNotFound,
	model.ErrBusNotFound,
	model.ErrTripNotFound,
	model.ErrOrderNotFound,
	model.ErrUserNotFound,
}

// conflicts lists the uniqueness failures answered with 409.
var conflicts = []error{
	model.ErrFacilityNameTaken,
	model.ErrEmailExists,
}

// respondError writes the response for an error returned by the service
// or storage layer.  It is the only place such errors are turned into
// status codes.  Unknown errors are logged and answered with a generic
// 500 body.
func respondError(c echo.Context, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return fieldError(c, verr.Field, verr.Err.Error())
	}
	if errors.Is(err, media.ErrNotImage) {
		return fieldError(c, "image", media.ErrNotImage.Error())
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": target.Error()})
		}
	}
	for _, target := range conflicts {
		if errors.Is(err, target) {
			return c.JSON(http.StatusConflict, echo.Map{"error": target.Error()})
		}
	}
	middleware.SetError(c, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// fieldError answers 400 naming the offending request field.
func fieldError(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":  "invalid input",
		"fields": echo.Map{field: msg},
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// getUserID returns the authenticated user's ID or an error when the
// JWT middleware did not run.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, bool) {
	return parseID(c.Param("id"))
}
