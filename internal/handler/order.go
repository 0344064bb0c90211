package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/busstation/station/internal/service"
)

// OrderHandler serves the authenticated user's orders.  Every call is
// scoped to the caller; other users' orders are reported as not found.
type OrderHandler struct {
	Orders *service.OrderService
}

// NewOrderHandler constructs an OrderHandler and panics if the service is nil.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	if orders == nil {
		panic("nil order service passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: orders}
}

type ticketReq struct {
	Seat int    `json:"seat"`
	Trip uint64 `json:"trip"`
}

type orderReq struct {
	Tickets []ticketReq `json:"tickets"`
}

type orderPageResp struct {
	Count    int                     `json:"count"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
	Results  []service.OrderListItem `json:"results"`
}

// CreateOrder handles POST /v1/orders.  All tickets are booked or none.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	reqs := make([]service.TicketRequest, 0, len(req.Tickets))
	for _, t := range req.Tickets {
		reqs = append(reqs, service.TicketRequest{Seat: t.Seat, TripID: t.Trip})
	}
	o, err := h.Orders.Create(c.Request().Context(), uid, reqs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// ListOrders handles GET /v1/orders?page=&page_size=, newest first.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page, size, err := pageParams(c)
	if err != nil {
		return fieldError(c, "page", err.Error())
	}
	res, err := h.Orders.List(c.Request().Context(), uid, service.Page{Number: page, Size: size})
	if err != nil {
		return respondError(c, err)
	}
	if page > 1 && (page-1)*size >= res.Count {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid page"})
	}
	resp := orderPageResp{
		Count:    res.Count,
		Page:     page,
		PageSize: size,
		Results:  res.Results,
	}
	if page*size < res.Count {
		resp.Next = pageLink(c, page+1)
	}
	if page > 1 {
		resp.Previous = pageLink(c, page-1)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetOrder handles GET /v1/orders/:id.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	o, err := h.Orders.Get(c.Request().Context(), uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
