// Package config loads the settlement engine's runtime configuration from the
// environment. A .env file is honored for local development; deployed stages
// are expected to inject real environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/helpers"
)

// Config carries everything the API server needs to boot: where to listen,
// which settlement store to open, the privileged addresses seeded into the
// registry, and the ambient HTTP knobs.
type Config struct {
	Stage      string
	ListenAddr string

	StoreDriver string
	PebblePath  string
	PostgresDSN string

	Admin    common.Address
	Verifier common.Address
	Treasury common.Address
	Market   common.Address
	Minter   common.Address
	Registry common.Address

	AdminJWTSecret string

	CORSAllowedOrigins []string

	WebhookURL     string
	WebhookTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int
}

// Load reads configuration from the environment, after loading .env if one
// exists. Address-bearing variables are validated eagerly so a typo fails the
// boot instead of producing a registry seeded with the zero address.
func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = constants.StageLocal
		log.Printf("Warning: STAGE environment variable not set, defaulting to '%s'", stage)
	}
	if !helpers.IsValidStage(stage) {
		return nil, errors.Errorf("invalid STAGE %q: must be one of %s, %s, %s, %s",
			stage, constants.StageProd, constants.StageDev, constants.StageLocal, constants.StageTest)
	}

	cfg := &Config{
		Stage:          stage,
		ListenAddr:     envDefault("LISTEN_ADDR", ":8000"),
		StoreDriver:    envDefault("STORE_DRIVER", constants.StoreMemory),
		PebblePath:     os.Getenv("PEBBLE_PATH"),
		PostgresDSN:    os.Getenv("DATABASE_URL"),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		WebhookURL:     os.Getenv("SETTLEMENT_WEBHOOK_URL"),
		WebhookTimeout: envDuration("SETTLEMENT_WEBHOOK_TIMEOUT", 10*time.Second),
		RateLimitRPS:   envInt("RATE_LIMIT_RPS", 100),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 200),
	}

	switch cfg.StoreDriver {
	case constants.StoreMemory:
	case constants.StorePebble:
		if cfg.PebblePath == "" {
			return nil, errors.New("PEBBLE_PATH is required when STORE_DRIVER=pebble")
		}
	case constants.StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, errors.Errorf("invalid STORE_DRIVER %q: must be one of %s, %s, %s",
			cfg.StoreDriver, constants.StoreMemory, constants.StorePebble, constants.StorePostgres)
	}

	if cfg.Admin, err = requireAddress("ADMIN_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Verifier, err = requireAddress("VERIFIER_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Treasury, err = requireAddress("TREASURY_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Market, err = requireAddress("MARKET_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Minter, err = requireAddress("MINTER_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Registry, err = requireAddress("REGISTRY_ADDRESS"); err != nil {
		return nil, err
	}

	if cfg.AdminJWTSecret == "" {
		return nil, errors.New("ADMIN_JWT_SECRET is required")
	}

	cfg.CORSAllowedOrigins = splitOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	return cfg, nil
}

func requireAddress(name string) (common.Address, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return common.Address{}, errors.Errorf("%s environment variable is required", name)
	}
	if !helpers.IsAddressValid(raw) {
		return common.Address{}, errors.Errorf("%s is not a valid address: %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value %q, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value %q, using default %s", key, raw, fallback)
		return fallback
	}
	return v
}
