// Command createstaff creates a STAFF account in the MySQL store.  Staff
// accounts cannot be registered through the API.
//
//	createstaff -email ops@example.com -password 's3cret-pass'
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/busstation/station/internal/config"
	"github.com/busstation/station/internal/database"
	"github.com/busstation/station/internal/logging"
	"github.com/busstation/station/internal/model"
	"github.com/busstation/station/internal/repository"
	"github.com/busstation/station/internal/utils"
)

func main() {
	email := flag.String("email", "", "staff email")
	password := flag.String("password", "", "staff password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver != config.DriverMySQL {
		log.Fatalf("createstaff needs STORE_DRIVER=%s", config.DriverMySQL)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	addr := strings.ToLower(strings.TrimSpace(*email))
	if addr == "" {
		logger.Fatal("-email is required")
	}
	if err := utils.CheckPassword(*password); err != nil {
		logger.Fatal("invalid -password", zap.Error(err))
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(db, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	hash, err := utils.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := repository.NewUserRepo(db).CreateUser(ctx, addr, hash, model.RoleStaff)
	if err != nil {
		logger.Fatal("create staff user", zap.String("email", addr), zap.Error(err))
	}
	logger.Info("staff user created", zap.Uint64("id", id), zap.String("email", addr))
}
