// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Storage driver names accepted in OBSIDIAN_WEBHOOK_DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBDriver     string
	DBPath       string
	DatabaseURL  string
	APIURL       string
	APITimeout   time.Duration
	AuthToken    string
	MaxNoteBytes int64
}

// Load reads configuration from environment variables and returns a validated
// Config. OBSIDIAN_WEBHOOK_API_URL is required. Optional variables with
// defaults: OBSIDIAN_WEBHOOK_LISTEN_ADDR (127.0.0.1:8080),
// OBSIDIAN_WEBHOOK_DB_DRIVER (sqlite), OBSIDIAN_WEBHOOK_DB_PATH
// (obsidian-webhook.db), OBSIDIAN_WEBHOOK_API_TIMEOUT (30s),
// OBSIDIAN_WEBHOOK_MAX_NOTE_BYTES (1048576). OBSIDIAN_WEBHOOK_DATABASE_URL is
// required when the driver is postgres. OBSIDIAN_WEBHOOK_AUTH_TOKEN is
// optional; when empty the bearer gate is disabled.
func Load() (*Config, error) {
	apiURL := os.Getenv("OBSIDIAN_WEBHOOK_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("OBSIDIAN_WEBHOOK_API_URL is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("OBSIDIAN_WEBHOOK_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	driver := DriverSQLite
	if v, ok := os.LookupEnv("OBSIDIAN_WEBHOOK_DB_DRIVER"); ok {
		switch v {
		case DriverSQLite, DriverPostgres:
			driver = v
		default:
			return nil, fmt.Errorf("OBSIDIAN_WEBHOOK_DB_DRIVER has invalid value %q: must be %q or %q", v, DriverSQLite, DriverPostgres)
		}
	}

	dbPath := "obsidian-webhook.db"
	if v, ok := os.LookupEnv("OBSIDIAN_WEBHOOK_DB_PATH"); ok {
		dbPath = v
	}

	databaseURL := os.Getenv("OBSIDIAN_WEBHOOK_DATABASE_URL")
	if driver == DriverPostgres && databaseURL == "" {
		return nil, fmt.Errorf("OBSIDIAN_WEBHOOK_DATABASE_URL is required when OBSIDIAN_WEBHOOK_DB_DRIVER is %q", DriverPostgres)
	}

	apiTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("OBSIDIAN_WEBHOOK_API_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("OBSIDIAN_WEBHOOK_API_TIMEOUT has invalid duration %q: %w", v, err)
		}
		apiTimeout = parsed
	}

	var maxNoteBytes int64 = 1 << 20
	if v, ok := os.LookupEnv("OBSIDIAN_WEBHOOK_MAX_NOTE_BYTES"); ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("OBSIDIAN_WEBHOOK_MAX_NOTE_BYTES has invalid value %q", v)
		}
		maxNoteBytes = parsed
	}

	return &Config{
		ListenAddr:   listenAddr,
		DBDriver:     driver,
		DBPath:       dbPath,
		DatabaseURL:  databaseURL,
		APIURL:       apiURL,
		APITimeout:   apiTimeout,
		AuthToken:    os.Getenv("OBSIDIAN_WEBHOOK_AUTH_TOKEN"),
		MaxNoteBytes: maxNoteBytes,
	}, nil
}
