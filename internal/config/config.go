package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	BrandName    string
	CurrencyCode string
	CountryCode  string

	TaxRate                decimal.Decimal
	PlatformFeeRateDefault decimal.Decimal
	ShippingFlatCost       decimal.Decimal

	PaymentProcessor         string
	PayPalBaseURL            string
	PayPalClientID           string
	PayPalClientSecret       string
	PayPalPlatformMerchantID string
	PayPalPlatformEmail      string

	IdempotencyTTL time.Duration
	CacheTTL       time.Duration
	RateLimit      string
	MaxBodyBytes   int64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		BrandName:    valueOrDefault(k.String("BRAND_NAME"), "MySellum"),
		CurrencyCode: valueOrDefault(k.String("CURRENCY_CODE"), "EUR"),
		CountryCode:  valueOrDefault(k.String("COUNTRY_CODE"), "DE"),

		TaxRate:                parseDecimal(k.String("TAX_RATE"), "0.07"),
		PlatformFeeRateDefault: parseDecimal(k.String("PLATFORM_FEE_RATE_DEFAULT"), "0.10"),
		ShippingFlatCost:       parseDecimal(k.String("SHIPPING_FLAT_COST"), "5.00"),

		PaymentProcessor:         valueOrDefault(k.String("PAYMENT_PROCESSOR"), "paypal"),
		PayPalBaseURL:            valueOrDefault(k.String("PAYPAL_BASE_URL"), "https://api-m.sandbox.paypal.com"),
		PayPalClientID:           k.String("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:       k.String("PAYPAL_CLIENT_SECRET"),
		PayPalPlatformMerchantID: k.String("PAYPAL_PLATFORM_MERCHANT_ID"),
		PayPalPlatformEmail:      k.String("PAYPAL_PLATFORM_EMAIL"),

		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CacheTTL:       parseDuration(k.String("CACHE_TTL"), "5m"),
		RateLimit:      valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		MaxBodyBytes:   k.Int64("MAX_BODY_BYTES"),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PaymentProcessor == "paypal" {
		if cfg.PayPalClientID == "" || cfg.PayPalClientSecret == "" {
			return nil, errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required when PAYMENT_PROCESSOR=paypal")
		}
		if cfg.PayPalPlatformMerchantID == "" {
			return nil, errors.New("PAYPAL_PLATFORM_MERCHANT_ID is required when PAYMENT_PROCESSOR=paypal")
		}
	}
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.New("TAX_RATE must be in [0,1)")
	}
	if cfg.PlatformFeeRateDefault.IsNegative() || cfg.PlatformFeeRateDefault.GreaterThan(decimal.NewFromInt(1)) {
		return nil, errors.New("PLATFORM_FEE_RATE_DEFAULT must be in [0,1]")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
