package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/uhyunpark/hlclient/pkg/ratelimit"
	"github.com/uhyunpark/hlclient/pkg/registry"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

type Venue struct {
	BaseURL string
	Network wire.Network
}

type Account struct {
	// PrivateKey is the hex-encoded signing key. It may belong to an agent
	// approved for Address rather than to Address itself.
	PrivateKey string
	Address    string
	Vault      string
}

type Dispatch struct {
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBase      time.Duration
	RatePerMinute  int
	RateBurst      int
}

type Storage struct {
	// MetaCacheDir holds the pebble asset snapshot. Empty disables it.
	MetaCacheDir string
	// MetaCacheMaxAge is how old a snapshot may be and still be used.
	MetaCacheMaxAge time.Duration
	JournalPath     string
}

type Log struct {
	Level string
	File  string
}

type Config struct {
	Venue    Venue
	Account  Account
	Dispatch Dispatch
	Storage  Storage
	Log      Log
}

func Default() Config {
	return Config{
		Venue: Venue{
			BaseURL: transport.TestnetURL,
			Network: wire.Testnet,
		},
		Dispatch: Dispatch{
			RequestTimeout: 10 * time.Second,
			MaxRetries:     transport.DefaultMaxRetries,
			RetryBase:      transport.DefaultRetryBase,
			RatePerMinute:  ratelimit.DefaultPerMinute,
			RateBurst:      ratelimit.DefaultBurst,
		},
		Storage: Storage{MetaCacheMaxAge: registry.DefaultSnapshotMaxAge},
		Log:     Log{Level: "info"},
	}
}

// Validate rejects a configuration that points at one of the public venues
// while signing for the other. Signatures carry the network, so such a
// client would have every action refused.
func (c Config) Validate() error {
	url := strings.TrimRight(c.Venue.BaseURL, "/")
	switch {
	case url == transport.MainnetURL && c.Venue.Network != wire.Mainnet:
		return fmt.Errorf("HL_BASE_URL %s is mainnet but network is %s (set HL_MAINNET=true)", url, c.Venue.Network)
	case url == transport.TestnetURL && c.Venue.Network != wire.Testnet:
		return fmt.Errorf("HL_BASE_URL %s is testnet but network is %s (unset HL_MAINNET)", url, c.Venue.Network)
	}
	return nil
}

// LoadFromEnv loads configuration from a .env file (if it exists) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	// Choosing mainnet moves the default URL with it; HL_BASE_URL still wins.
	if mainnet := os.Getenv("HL_MAINNET"); mainnet != "" {
		if on, err := strconv.ParseBool(mainnet); err == nil && on {
			cfg.Venue.Network = wire.Mainnet
			cfg.Venue.BaseURL = transport.MainnetURL
		}
	}
	cfg.Venue.BaseURL = getEnv("HL_BASE_URL", cfg.Venue.BaseURL)

	cfg.Account.PrivateKey = getEnv("HL_PRIVATE_KEY", "")
	cfg.Account.Address = getEnv("HL_ACCOUNT_ADDRESS", "")
	cfg.Account.Vault = getEnv("HL_VAULT_ADDRESS", "")

	cfg.Dispatch.RequestTimeout = getMillis("HL_REQUEST_TIMEOUT_MS", cfg.Dispatch.RequestTimeout)
	cfg.Dispatch.RetryBase = getMillis("HL_RETRY_BASE_MS", cfg.Dispatch.RetryBase)
	cfg.Dispatch.MaxRetries = getInt("HL_MAX_RETRIES", cfg.Dispatch.MaxRetries)
	cfg.Dispatch.RatePerMinute = getInt("HL_RATE_PER_MIN", cfg.Dispatch.RatePerMinute)
	cfg.Dispatch.RateBurst = getInt("HL_RATE_BURST", cfg.Dispatch.RateBurst)

	cfg.Storage.MetaCacheDir = getEnv("HL_META_CACHE_DIR", "")
	cfg.Storage.MetaCacheMaxAge = getMillis("HL_META_CACHE_MAX_AGE_MS", cfg.Storage.MetaCacheMaxAge)
	cfg.Storage.JournalPath = getEnv("HL_JOURNAL_FILE", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", "")

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getMillis(key string, defaultValue time.Duration) time.Duration {
	if ms, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
