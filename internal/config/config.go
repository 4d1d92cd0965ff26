package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL   = "https://api.xero.com/api.xro/2.0"
	DefaultTokenURL = "https://identity.xero.com/connect/token"
	DefaultAuthURL  = "https://login.xero.com/identity/connect/authorize"
)

type Config struct {
	DatabaseURL     string
	PollInterval    int // seconds, watch mode only
	ShutdownTimeout int // seconds
	LogFile         string

	XeroClientID     string
	XeroClientSecret string
	XeroTenantID     string
	XeroRefreshToken string // bootstrap seed, used only when nothing is persisted yet
	XeroAPIURL       string
	XeroTokenURL     string
	XeroAuthURL      string

	RequestsPerSecond float64
	TokenExpiryBuffer time.Duration

	PageSize           int
	BatchPages         int
	ForceFullSync      bool
	FullResyncInterval time.Duration
	VerifyCommits      bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	tenantID := os.Getenv("XERO_TENANT_ID")
	if tenantID == "" {
		return nil, fmt.Errorf("XERO_TENANT_ID is required")
	}

	clientID := os.Getenv("XERO_CLIENT_ID")
	clientSecret := os.Getenv("XERO_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		fmt.Fprintln(os.Stderr, "Warning: XERO_CLIENT_ID or XERO_CLIENT_SECRET not set, token refresh will not work")
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		PollInterval:      3600,
		ShutdownTimeout:   30,
		LogFile:           os.Getenv("LOG_FILE"),
		XeroClientID:      clientID,
		XeroClientSecret:  clientSecret,
		XeroTenantID:      tenantID,
		XeroRefreshToken:  os.Getenv("XERO_REFRESH_TOKEN"),
		XeroAPIURL:        envOr("XERO_API_URL", DefaultAPIURL),
		XeroTokenURL:      envOr("XERO_TOKEN_URL", DefaultTokenURL),
		XeroAuthURL:       envOr("XERO_AUTH_URL", DefaultAuthURL),
		TokenExpiryBuffer: 5 * time.Minute,
	}

	var err error
	if cfg.PollInterval, err = envInt("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %d", cfg.PollInterval)
	}
	if cfg.ShutdownTimeout, err = envInt("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = envInt("SYNC_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.BatchPages, err = envInt("SYNC_BATCH_PAGES", 10); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 || cfg.BatchPages <= 0 {
		return nil, fmt.Errorf("SYNC_PAGE_SIZE and SYNC_BATCH_PAGES must be positive")
	}
	resyncDays, err := envInt("SYNC_FULL_RESYNC_DAYS", 7)
	if err != nil {
		return nil, err
	}
	cfg.FullResyncInterval = time.Duration(resyncDays) * 24 * time.Hour
	if cfg.ForceFullSync, err = envBool("SYNC_FORCE_FULL", false); err != nil {
		return nil, err
	}
	if cfg.VerifyCommits, err = envBool("SYNC_VERIFY_COMMITS", true); err != nil {
		return nil, err
	}
	cfg.RequestsPerSecond = 1
	if v := os.Getenv("XERO_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("invalid XERO_REQUESTS_PER_SECOND %q", v)
		}
		cfg.RequestsPerSecond = rps
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}
