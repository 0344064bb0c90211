package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/busstation/station/internal/config"
	"github.com/busstation/station/internal/database"
	"github.com/busstation/station/internal/handler"
	"github.com/busstation/station/internal/logging"
	"github.com/busstation/station/internal/media"
	"github.com/busstation/station/internal/memstore"
	"github.com/busstation/station/internal/middleware"
	"github.com/busstation/station/internal/repository"
	"github.com/busstation/station/internal/router"
	"github.com/busstation/station/internal/service"
)

// stores groups the persistence the services and auth handlers run on.
type stores struct {
	facilities service.FacilityStore
	buses      service.BusStore
	trips      service.TripStore
	orders     service.OrderStore
	users      handler.UserStore
	tokens     handler.TokenStore
	close      func() error
}

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer st.close() //nolint:errcheck

	rdb, err := config.NewRedisClient()
	if err != nil {
		logger.Warn("redis unavailable, running without cache and rate limit", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	catalog := service.NewCatalog(st.facilities, st.buses, st.trips, media.NewLocalStore(cfg.MediaRoot, cfg.MediaURL), logger)
	orders := service.NewOrderService(st.orders, st.trips, logger)
	e := router.New(cfg, router.Deps{
		Catalog: catalog,
		Orders:  orders,
		Users:   st.users,
		Tokens:  st.tokens,
		Limit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		Cache:   middleware.NewResponseCache(config.LoadCacheConfig(), rdb, logger),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port // Address string with port
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStores(cfg config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		s := memstore.New()
		logger.Warn("using in-memory store, data is lost on exit")
		return &stores{
			facilities: s, buses: s, trips: s, orders: s, users: s, tokens: s,
			close: func() error { return nil },
		}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DBMigrate {
		if err := database.Migrate(db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &stores{
		facilities: repository.NewFacilityRepo(db),
		buses:      repository.NewBusRepo(db),
		trips:      repository.NewTripRepo(db),
		orders:     repository.NewOrderRepo(db),
		users:      repository.NewUserRepo(db),
		tokens:     repository.NewTokenRepo(db),
		close:      db.Close,
	}, nil
}
