package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers selectable through STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	StoreDriver    string // "mysql" or "memory"
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBMigrate      bool   // apply embedded migrations on startup
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	MediaRoot      string // directory uploaded files are written to
	MediaURL       string // URL prefix the media root is served under
	LogLevel       string // zap level name
}

// Load reads an optional .env file and then the environment.  Missing
// required variables are reported together in one error.  Database
// variables are only required for the mysql driver.
func Load() (Config, error) {
	// a missing .env is fine, the environment may be set by the runtime
	_ = godotenv.Load()

	var r reader
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		DBPass:         os.Getenv("DB_PASS"),
		DBMigrate:      envBool("DB_MIGRATE", true),
		JWTSecret:      r.must("JWT_SECRET"),
		AccessTTLMin:   r.intOr("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: r.intOr("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     r.intOr("BCRYPT_COST", 12),
		MediaRoot:      envStr("MEDIA_ROOT", "media"),
		MediaURL:       envStr("MEDIA_URL", "/media/"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = r.must("DB_USER")
		cfg.DBHost = r.must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = r.must("DB_NAME")
	case DriverMemory:
	default:
		r.errs = append(r.errs, fmt.Errorf("invalid STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, DriverMySQL, DriverMemory))
	}
	if cfg.AccessTTLMin <= 0 || cfg.RefreshTTLDays <= 0 {
		r.errs = append(r.errs, errors.New("token TTLs must be positive"))
	}
	return cfg, errors.Join(r.errs...)
}

// reader accumulates the problems found while reading variables.
type reader struct{ errs []error }

// must retrieves the value of a required environment variable.
func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.errs = append(r.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// intOr parses an optional integer variable; a malformed value is an
// error rather than a silent fallback.
func (r *reader) intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid int for %s: %q", key, s))
		return def
	}
	return n
}
