package router // package router defines how HTTP routes are registered for the API

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/busstation/station/internal/config"
	"github.com/busstation/station/internal/handler"
	"github.com/busstation/station/internal/middleware"
	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/service"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterMedia serves uploaded files from root under urlPrefix.  An
// empty prefix serves nothing.
func RegisterMedia(e *echo.Echo, urlPrefix, root string) {
	if strings.TrimSuffix(urlPrefix, "/") == "" {
		return
	}
	e.Static(urlPrefix, root)
}

// Protected returns the /v1 group every authenticated endpoint lives in.
// Requests are authenticated first and then rate limited per user; a
// nil limit disables rate limiting.
func Protected(e *echo.Echo, jwtSecret string, limit echo.MiddlewareFunc) *echo.Group {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret)}
	if limit != nil {
		mws = append(mws, limit)
	}
	return e.Group("/v1", mws...)
}

// RegisterAuth registers the token endpoints under /v1/auth, which need
// no session, and /v1/me on the protected group.
func RegisterAuth(e *echo.Echo, api *echo.Group, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)

	api.GET("/me", a.Me)
}

// RegisterCatalog registers facilities, buses and trips.  Any
// authenticated user may read them; every other method is reserved to
// staff.  Responses of the routes configured in the cache are served
// from Redis, and successful writes drop the cached entries.
func RegisterCatalog(api *echo.Group, h *handler.CatalogHandler, cache *middleware.ResponseCache) {
	g := api.Group("", middleware.StaffOrReadOnly(), cache.Middleware())

	// ---- Facilities ----
	g.GET("/facilities", h.ListFacilities)
	g.GET("/facilities/:id", h.GetFacility)
	g.POST("/facilities", h.CreateFacility)
	g.PUT("/facilities/:id", h.UpdateFacility)
	g.PATCH("/facilities/:id", h.UpdateFacility)
	g.DELETE("/facilities/:id", h.DeleteFacility)

	// ---- Buses ----
	g.GET("/buses", h.ListBuses)
	g.GET("/buses/:id", h.GetBus)
	g.POST("/buses", h.CreateBus)
	g.PUT("/buses/:id", h.UpdateBus)
	g.PATCH("/buses/:id", h.PatchBus)
	g.DELETE("/buses/:id", h.DeleteBus)
	g.POST("/buses/:id/upload-image", h.UploadBusImage, middleware.RequireRole(model.RoleStaff))

	// ---- Trips ----
	g.GET("/trips", h.ListTrips)
	g.GET("/trips/:id", h.GetTrip)
	g.POST("/trips", h.CreateTrip)
	g.PUT("/trips/:id", h.UpdateTrip)
	g.PATCH("/trips/:id", h.PatchTrip)
	g.DELETE("/trips/:id", h.DeleteTrip)
}

// RegisterOrders registers the caller's order endpoints.  Every
// authenticated user, staff included, only sees their own orders.
func RegisterOrders(api *echo.Group, o *handler.OrderHandler) {
	api.POST("/orders", o.CreateOrder)
	api.GET("/orders", o.ListOrders)
	api.GET("/orders/:id", o.GetOrder)
}

// Deps are the services and stores the API is built from.  Limit and
// Cache may be nil.
type Deps struct {
	Catalog *service.Catalog
	Orders  *service.OrderService
	Users   handler.UserStore
	Tokens  handler.TokenStore
	Limit   echo.MiddlewareFunc
	Cache   *middleware.ResponseCache
}

// New builds the echo instance with every route of the API.
func New(cfg config.Config, d Deps, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	if d.Cache == nil {
		d.Cache = middleware.NewResponseCache(config.CacheConfig{}, nil, logger)
	}

	RegisterRoutes(e)
	RegisterMedia(e, cfg.MediaURL, cfg.MediaRoot)
	api := Protected(e, cfg.JWTSecret, d.Limit)
	RegisterAuth(e, api, handler.NewAuthHandler(cfg, d.Users, d.Tokens))
	RegisterCatalog(api, handler.NewCatalogHandler(d.Catalog), d.Cache)
	RegisterOrders(api, handler.NewOrderHandler(d.Orders))
	return e
}
