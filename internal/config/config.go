package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env            string   `mapstructure:"ENV"`
	Port           string   `mapstructure:"PORT"`
	GRPCPort       string   `mapstructure:"GRPC_PORT"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	TokenSecret    string   `mapstructure:"ACCESS_TOKEN_SECRET"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	MigrationsFile string   `mapstructure:"MIGRATIONS_FILE"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`
	NotifyBuffer int    `mapstructure:"NOTIFY_BUFFER"`

	OmisePublicKey    string `mapstructure:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey    string `mapstructure:"OMISE_SECRET_KEY"`
	PaymentCurrency   string `mapstructure:"PAYMENT_CURRENCY"`
	PaymentSourceType string `mapstructure:"PAYMENT_SOURCE_TYPE"`

	OTelEnabled     bool    `mapstructure:"OTEL_ENABLED"`
	OTelExporter    string  `mapstructure:"OTEL_EXPORTER"`
	OTelEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
}

var keys = []string{
	"ENV", "PORT", "GRPC_PORT", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"ACCESS_TOKEN_SECRET", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "MIGRATIONS_FILE",
	"AMQP_URL", "AMQP_EXCHANGE", "NOTIFY_BUFFER",
	"OMISE_PUBLIC_KEY", "OMISE_SECRET_KEY", "PAYMENT_CURRENCY", "PAYMENT_SOURCE_TYPE",
	"OTEL_ENABLED", "OTEL_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLE_RATIO",
}

// Load reads the environment, after merging an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("MIGRATIONS_FILE", "db/migrations/001_init.sql")
	v.SetDefault("AMQP_EXCHANGE", "clinic.events")
	v.SetDefault("NOTIFY_BUFFER", 256)
	v.SetDefault("PAYMENT_CURRENCY", "thb")
	v.SetDefault("PAYMENT_SOURCE_TYPE", "promptpay")
	v.SetDefault("OTEL_EXPORTER", "stdout")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	// older deployments name the signing secret differently
	_ = v.BindEnv("ACCESS_TOKEN_SECRET", "ACCESS_TOKEN_SECRET", "ACCESS_TOKEN", "JWT_SECRET")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool { return c.Env == "development" }

func (c *Config) InMemory() bool { return strings.HasPrefix(c.DatabaseURL, "memory://") }

func (c *Config) PaymentsEnabled() bool { return c.OmisePublicKey != "" && c.OmiseSecretKey != "" }

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch strings.ToLower(c.OTelExporter) {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("OTEL_EXPORTER must be \"stdout\" or \"otlp\", got %q", c.OTelExporter)
	}
	if c.OTelSampleRatio <= 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be in (0, 1], got %v", c.OTelSampleRatio)
	}
	if (c.OmisePublicKey == "") != (c.OmiseSecretKey == "") {
		return fmt.Errorf("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY must be set together")
	}
	return nil
}
