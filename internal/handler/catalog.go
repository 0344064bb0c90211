package handler

import (
	"github.com/busstation/station/internal/service"
)

// CatalogHandler serves facilities, buses and trips.  Write access is
// enforced by the router's middleware, not here.
type CatalogHandler struct {
	Catalog *service.Catalog
}

// NewCatalogHandler constructs a CatalogHandler and panics if the
// catalog is nil.
func NewCatalogHandler(catalog *service.Catalog) *CatalogHandler {
	if catalog == nil {
		panic("nil catalog passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: catalog}
}
