package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/busstation/station/internal/service"
)

// busReq is the JSON body of bus writes.  Absent fields are nil; on PUT
// they clear the stored value, on PATCH they keep it.
type busReq struct {
	Info       *string   `json:"info"`
	NumSeats   *int      `json:"num_seats"`
	Facilities *[]uint64 `json:"facilities"`
}

func (r busReq) input() service.BusInput {
	return service.BusInput{Info: r.Info, NumSeats: r.NumSeats, Facilities: r.Facilities}
}

// ListBuses handles GET /v1/buses.  ?facilities=1,2 keeps the buses
// having any of the listed facilities.
func (h *CatalogHandler) ListBuses(c echo.Context) error {
	ids, err := parseIDList(c.QueryParam("facilities"))
	if err != nil {
		return fieldError(c, "facilities", err.Error())
	}
	items, err := h.Catalog.ListBuses(c.Request().Context(), ids)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// GetBus handles GET /v1/buses/:id.
func (h *CatalogHandler) GetBus(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	b, err := h.Catalog.GetBus(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CreateBus handles POST /v1/buses.
func (h *CatalogHandler) CreateBus(c echo.Context) error {
	var req busReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Catalog.CreateBus(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// UpdateBus handles PUT /v1/buses/:id.
func (h *CatalogHandler) UpdateBus(c echo.Context) error {
	return h.writeBus(c, false)
}

// PatchBus handles PATCH /v1/buses/:id.
func (h *CatalogHandler) PatchBus(c echo.Context) error {
	return h.writeBus(c, true)
}

func (h *CatalogHandler) writeBus(c echo.Context, partial bool) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req busReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Catalog.UpdateBus(c.Request().Context(), id, req.input(), partial)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// DeleteBus handles DELETE /v1/buses/:id.  Trips of the bus and their
// tickets go with it.
func (h *CatalogHandler) DeleteBus(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Catalog.DeleteBus(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadBusImage handles POST /v1/buses/:id/upload-image with the file
// in the multipart field "image".
func (h *CatalogHandler) UploadBusImage(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return fieldError(c, "image", "no file was submitted")
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer f.Close()

	b, err := h.Catalog.UploadBusImage(c.Request().Context(), id, fh.Filename, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
