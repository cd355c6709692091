package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the checkout service
type Config struct {
	// Server
	Port        string `validate:"required,numeric"`
	Environment string `validate:"oneof=development staging production test"`

	// Store API backing the cart bridge
	StoreAPIURL    string `validate:"required,url"`
	StorePublicKey string `validate:"required"`
	// Tenant the store's payment config events are published under
	StoreTenantID string

	// Vault API performing privileged gateway calls
	VaultAPIURL string `validate:"required,url"`

	// Stripe API override, empty for api.stripe.com
	StripeAPIURL string `validate:"omitempty,url"`

	// Provider script settle delay
	ScriptSettleDelay time.Duration `validate:"gte=0"`

	// Redis settings cache, optional
	RedisURL         string
	SettingsCacheTTL time.Duration `validate:"gt=0"`

	// Redirect ledger database, optional
	DatabaseURL string

	// NATS for checkout events, optional
	NATSURL string

	// HTTP
	CORSAllowedOrigins []string
	SessionTTL         time.Duration `validate:"gt=0"`
	HTTPTimeout        time.Duration `validate:"gt=0"`
}

// Load loads configuration from a .env file, if present, and environment
// variables
func Load() (*Config, error) {
	// Missing .env is fine; the environment wins.
	_ = godotenv.Load()

	config := &Config{
		Port:        getEnv("PORT", "8092"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreAPIURL:    getEnv("STORE_API_URL", ""),
		StorePublicKey: getEnv("STORE_PUBLIC_KEY", ""),
		VaultAPIURL:    getEnv("VAULT_API_URL", ""),
		StripeAPIURL:   getEnv("STRIPE_API_URL", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		NATSURL:     getEnv("NATS_URL", ""),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}

	config.StoreTenantID = getEnv("STORE_TENANT_ID", config.StorePublicKey)

	var err error
	if config.ScriptSettleDelay, err = getDuration("SCRIPT_SETTLE_DELAY", time.Second); err != nil {
		return nil, err
	}
	if config.SettingsCacheTTL, err = getDuration("SETTINGS_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.SessionTTL, err = getDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if config.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getDuration parses a Go duration ("1s", "250ms") from the environment
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
