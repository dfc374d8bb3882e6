package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

// clearEnv unsets every key LoadFromEnv reads and restores them after the
// test. godotenv never overrides a key that is set, even to "".
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HL_BASE_URL", "HL_MAINNET", "HL_PRIVATE_KEY", "HL_ACCOUNT_ADDRESS",
		"HL_VAULT_ADDRESS", "HL_REQUEST_TIMEOUT_MS", "HL_MAX_RETRIES",
		"HL_RETRY_BASE_MS", "HL_RATE_PER_MIN", "HL_RATE_BURST",
		"HL_META_CACHE_DIR", "HL_META_CACHE_MAX_AGE_MS", "HL_JOURNAL_FILE",
		"LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaultsAreTestnet(t *testing.T) {
	clearEnv(t)
	cfg := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.Venue.Network != wire.Testnet {
		t.Errorf("network = %v, want Testnet", cfg.Venue.Network)
	}
	if cfg.Venue.BaseURL != transport.TestnetURL {
		t.Errorf("base url = %q, want %q", cfg.Venue.BaseURL, transport.TestnetURL)
	}
	if cfg.Dispatch.MaxRetries != transport.DefaultMaxRetries {
		t.Errorf("max retries = %d, want %d", cfg.Dispatch.MaxRetries, transport.DefaultMaxRetries)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
}

func TestEnvOverridesDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "HL_MAINNET=true\nHL_MAX_RETRIES=7\nHL_RETRY_BASE_MS=50\nHL_VAULT_ADDRESS=0xabc\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HL_MAX_RETRIES", "1")

	cfg := LoadFromEnv(path)

	if cfg.Venue.Network != wire.Mainnet || cfg.Venue.BaseURL != transport.MainnetURL {
		t.Errorf("venue = %+v, want mainnet", cfg.Venue)
	}
	if cfg.Dispatch.MaxRetries != 1 {
		t.Errorf("max retries = %d, want environment value 1", cfg.Dispatch.MaxRetries)
	}
	if cfg.Dispatch.RetryBase != 50*time.Millisecond {
		t.Errorf("retry base = %v, want 50ms", cfg.Dispatch.RetryBase)
	}
	if cfg.Account.Vault != "0xabc" {
		t.Errorf("vault = %q, want 0xabc", cfg.Account.Vault)
	}
}

func TestBaseURLOverridesNetworkDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("HL_MAINNET", "true")
	t.Setenv("HL_BASE_URL", "http://localhost:3001")

	cfg := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Venue.BaseURL != "http://localhost:3001" || cfg.Venue.Network != wire.Mainnet {
		t.Errorf("venue = %+v", cfg.Venue)
	}
}

func TestMetaCacheMaxAge(t *testing.T) {
	clearEnv(t)
	cfg := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Storage.MetaCacheMaxAge != time.Hour {
		t.Errorf("default max age = %v, want 1h", cfg.Storage.MetaCacheMaxAge)
	}

	t.Setenv("HL_META_CACHE_MAX_AGE_MS", "60000")
	cfg = LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Storage.MetaCacheMaxAge != time.Minute {
		t.Errorf("max age = %v, want 1m", cfg.Storage.MetaCacheMaxAge)
	}
}

func TestValidateNetworkMatchesURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		network wire.Network
		wantErr bool
	}{
		{"testnet defaults", transport.TestnetURL, wire.Testnet, false},
		{"mainnet", transport.MainnetURL + "/", wire.Mainnet, false},
		{"mainnet url signing testnet", transport.MainnetURL, wire.Testnet, true},
		{"testnet url signing mainnet", transport.TestnetURL, wire.Mainnet, true},
		{"custom url", "http://localhost:3001", wire.Mainnet, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Venue = Venue{BaseURL: tc.url, Network: tc.network}
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestMainnetURLWithoutMainnetFlagFailsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("HL_BASE_URL", transport.MainnetURL)

	cfg := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a network mismatch error")
	}
}
