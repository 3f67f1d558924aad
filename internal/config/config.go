package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Payment modes.
const (
	PaymentSandbox = "sandbox"
	PaymentHosted  = "hosted"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	StoreDriver string

	DatabaseURL      string
	CloudSQLInstance string
	DatabaseMaxConns int32

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	CORSOrigins []string
	DefaultLang string

	PaymentMode          string
	PaymentCheckoutURL   string
	PaymentWebhookSecret string
	PaymentCurrency      string

	RedisURL             string
	RedisRateLimitPrefix string
	TopUpRateLimit       int

	RabbitMQURL    string
	EventsExchange string

	ReconcileSchedule  string
	ReconcileGrace     time.Duration
	ReconcileBatchSize int

	LogLevel string
	LogDev   bool
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"STORE_DRIVER":                DriverPostgres,
	"DATABASE_MAX_CONNS":          10,
	"JWT_ISSUER":                  "taheel-backend",
	"JWT_TTL_MINUTES":             60,
	"CORS_ALLOWED_ORIGINS":        "*",
	"DEFAULT_LANG":                "ar",
	"PAYMENT_MODE":                PaymentSandbox,
	"PAYMENT_CURRENCY":            "AED",
	"REDIS_RATE_LIMIT_PREFIX":     "taheel:rate_limit",
	"TOPUP_RATE_LIMIT_PER_MINUTE": 5,
	"EVENTS_EXCHANGE":             "taheel.events",
	"RECONCILE_SCHEDULE":          "@every 1m",
	"RECONCILE_GRACE_SECONDS":     60,
	"RECONCILE_BATCH_SIZE":        50,
}

var unset = []string{
	"DATABASE_URL",
	"DATABASE_CLOUDSQL_INSTANCE",
	"JWT_SECRET",
	"PAYMENT_CHECKOUT_URL",
	"PAYMENT_WEBHOOK_SECRET",
	"REDIS_URL",
	"RABBITMQ_URL",
	"LOG_LEVEL",
	"LOG_DEV",
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range unset {
		_ = v.BindEnv(key)
	}

	cfg := Config{
		Port:                 trimmed(v, "PORT"),
		StoreDriver:          strings.ToLower(trimmed(v, "STORE_DRIVER")),
		DatabaseURL:          trimmed(v, "DATABASE_URL"),
		CloudSQLInstance:     trimmed(v, "DATABASE_CLOUDSQL_INSTANCE"),
		DatabaseMaxConns:     v.GetInt32("DATABASE_MAX_CONNS"),
		JWTSecret:            trimmed(v, "JWT_SECRET"),
		JWTIssuer:            trimmed(v, "JWT_ISSUER"),
		CORSOrigins:          parseCSV(v.GetString("CORS_ALLOWED_ORIGINS")),
		DefaultLang:          strings.ToLower(trimmed(v, "DEFAULT_LANG")),
		PaymentMode:          strings.ToLower(trimmed(v, "PAYMENT_MODE")),
		PaymentCheckoutURL:   trimmed(v, "PAYMENT_CHECKOUT_URL"),
		PaymentWebhookSecret: trimmed(v, "PAYMENT_WEBHOOK_SECRET"),
		PaymentCurrency:      strings.ToUpper(trimmed(v, "PAYMENT_CURRENCY")),
		RedisURL:             trimmed(v, "REDIS_URL"),
		RedisRateLimitPrefix: trimmed(v, "REDIS_RATE_LIMIT_PREFIX"),
		TopUpRateLimit:       v.GetInt("TOPUP_RATE_LIMIT_PER_MINUTE"),
		RabbitMQURL:          trimmed(v, "RABBITMQ_URL"),
		EventsExchange:       trimmed(v, "EVENTS_EXCHANGE"),
		ReconcileSchedule:    trimmed(v, "RECONCILE_SCHEDULE"),
		ReconcileBatchSize:   v.GetInt("RECONCILE_BATCH_SIZE"),
		LogLevel:             strings.ToLower(trimmed(v, "LOG_LEVEL")),
		LogDev:               v.GetString("LOG_DEV") == "1",
	}

	if ttlMinutes := v.GetInt("JWT_TTL_MINUTES"); ttlMinutes > 0 {
		cfg.JWTTTL = time.Duration(ttlMinutes) * time.Minute
	} else {
		cfg.JWTTTL = 60 * time.Minute
	}
	if grace := v.GetInt("RECONCILE_GRACE_SECONDS"); grace >= 0 {
		cfg.ReconcileGrace = time.Duration(grace) * time.Second
	}
	if cfg.DatabaseMaxConns <= 0 {
		cfg.DatabaseMaxConns = 10
	}
	if cfg.DefaultLang != "en" {
		cfg.DefaultLang = "ar"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.PaymentMode {
	case PaymentSandbox:
	case PaymentHosted:
		if c.PaymentCheckoutURL == "" {
			return errors.New("PAYMENT_CHECKOUT_URL is required in hosted payment mode")
		}
		if c.PaymentWebhookSecret == "" {
			return errors.New("PAYMENT_WEBHOOK_SECRET is required in hosted payment mode")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_MODE %q", c.PaymentMode)
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
