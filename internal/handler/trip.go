package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/service"
)

// tripReq is the JSON body of trip writes.  departure is RFC 3339.
type tripReq struct {
	Source      *string    `json:"source"`
	Destination *string    `json:"destination"`
	Departure   *time.Time `json:"departure"`
	Bus         *uint64    `json:"bus"`
}

func (r tripReq) input() service.TripInput {
	return service.TripInput{Source: r.Source, Destination: r.Destination, Departure: r.Departure, Bus: r.Bus}
}

// ListTrips handles GET /v1/trips.  source and destination match
// case-insensitively by substring; date (YYYY-MM-DD) selects the UTC
// departure day.
func (h *CatalogHandler) ListTrips(c echo.Context) error {
	day, err := parseDay(c.QueryParam("date"))
	if err != nil {
		return fieldError(c, "date", err.Error())
	}
	items, err := h.Catalog.ListTrips(c.Request().Context(), model.TripFilter{
		Source:      c.QueryParam("source"),
		Destination: c.QueryParam("destination"),
		Date:        day,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// GetTrip handles GET /v1/trips/:id.
func (h *CatalogHandler) GetTrip(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	t, err := h.Catalog.GetTrip(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// CreateTrip handles POST /v1/trips.
func (h *CatalogHandler) CreateTrip(c echo.Context) error {
	var req tripReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	t, err := h.Catalog.CreateTrip(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// UpdateTrip handles PUT /v1/trips/:id.
func (h *CatalogHandler) UpdateTrip(c echo.Context) error {
	return h.writeTrip(c, false)
}

// PatchTrip handles PATCH /v1/trips/:id.
func (h *CatalogHandler) PatchTrip(c echo.Context) error {
	return h.writeTrip(c, true)
}

func (h *CatalogHandler) writeTrip(c echo.Context, partial bool) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req tripReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	t, err := h.Catalog.UpdateTrip(c.Request().Context(), id, req.input(), partial)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// DeleteTrip handles DELETE /v1/trips/:id.
func (h *CatalogHandler) DeleteTrip(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Catalog.DeleteTrip(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
