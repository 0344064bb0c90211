package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/busstation/station/internal/service"
)

type facilityReq struct {
	Name string `json:"name"`
}

// ListFacilities handles GET /v1/facilities.
func (h *CatalogHandler) ListFacilities(c echo.Context) error {
	items, err := h.Catalog.ListFacilities(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// GetFacility handles GET /v1/facilities/:id.
func (h *CatalogHandler) GetFacility(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	f, err := h.Catalog.GetFacility(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// CreateFacility handles POST /v1/facilities.
func (h *CatalogHandler) CreateFacility(c echo.Context) error {
	var req facilityReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	f, err := h.Catalog.CreateFacility(c.Request().Context(), service.FacilityInput{Name: req.Name})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// UpdateFacility handles PUT and PATCH /v1/facilities/:id.  A facility
// has a single writable field, so both methods behave the same.
func (h *CatalogHandler) UpdateFacility(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req facilityReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	f, err := h.Catalog.UpdateFacility(c.Request().Context(), id, service.FacilityInput{Name: req.Name})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// DeleteFacility handles DELETE /v1/facilities/:id.
func (h *CatalogHandler) DeleteFacility(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Catalog.DeleteFacility(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
