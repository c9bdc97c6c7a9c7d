// Package config loads process configuration from the environment: a thin
// typed wrapper over os.Getenv with local .env support via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting the control plane needs.
type Config struct {
	DatabaseURL string
	RedisURL    string // empty disables the Redis fast-path ledger

	ListenAddr          string
	ProxyListenAddr     string
	ProxyExternalAddr   string
	GatewayProxyPort    int
	FrontendOrigin      string
	MonitorInterval     time.Duration
	LedgerFlushInterval time.Duration

	JWTSecret string

	// Provider credentials. Empty means that provider is not registered.
	FlyAPIToken string
	FlyAppName  string
	FlyRegion   string

	HetznerAPIToken    string
	HetznerLocation    string
	HetznerNetworkID   int64
	HetznerFirewallID  int64
	HetznerSSHKeyNames string

	SpritesAPIToken string
	SpritesBaseURL  string

	VPSConfigCatalogPath string
}

// Load reads the process environment into a Config. DATABASE_URL and
// JWT_SECRET are required; everything else has a sane default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		ListenAddr:        getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		ProxyListenAddr:   getEnv("PROXY_LISTEN_ADDR", "0.0.0.0:3128"),
		ProxyExternalAddr: getEnv("PROXY_EXTERNAL_ADDR", "agentplane:3128"),
		FrontendOrigin:    getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
		JWTSecret:         os.Getenv("JWT_SECRET"),

		FlyAPIToken: os.Getenv("FLY_API_TOKEN"),
		FlyAppName:  getEnv("FLY_APP_NAME", "agentplane-agents"),
		FlyRegion:   getEnv("FLY_REGION", "iad"),

		HetznerAPIToken:    os.Getenv("HETZNER_API_TOKEN"),
		HetznerLocation:    getEnv("HETZNER_LOCATION", "fsn1"),
		HetznerSSHKeyNames: os.Getenv("HETZNER_SSH_KEY_NAMES"),

		SpritesAPIToken: os.Getenv("SPRITES_API_TOKEN"),
		SpritesBaseURL:  getEnv("SPRITES_API_BASE_URL", "https://api.sprites.dev"),

		VPSConfigCatalogPath: os.Getenv("VPS_CONFIG_CATALOG_PATH"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET must be set")
	}

	var err error
	if cfg.GatewayProxyPort, err = getEnvInt("GATEWAY_PROXY_PORT", 18789); err != nil {
		return nil, err
	}
	if cfg.MonitorInterval, err = getEnvSeconds("MONITOR_INTERVAL_SECS", 60); err != nil {
		return nil, err
	}
	if cfg.LedgerFlushInterval, err = getEnvSeconds("LEDGER_FLUSH_INTERVAL_SECS", 5); err != nil {
		return nil, err
	}
	if cfg.HetznerNetworkID, err = getEnvInt64("HETZNER_NETWORK_ID", 0); err != nil {
		return nil, err
	}
	if cfg.HetznerFirewallID, err = getEnvInt64("HETZNER_FIREWALL_ID", 0); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return v, nil
}

func getEnvInt64(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return v, nil
}

func getEnvSeconds(key string, defSecs int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defSecs) * time.Second, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return time.Duration(secs) * time.Second, nil
}
