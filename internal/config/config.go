package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config groups everything the services read at startup. Business policy
// values (commission rate, order minimums, accept timeout) are supplied
// here and never hard-coded in the aggregates.
type Config struct {
	Env          string `mapstructure:"APP_ENV"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	ServerPort   string `mapstructure:"SERVER_PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	ClientOrigin string `mapstructure:"CLIENT_ORIGIN"`

	JWTSecret         string `mapstructure:"JWT_SECRET"`
	JWTIssuer         string `mapstructure:"JWT_ISSUER"`
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES"`

	// CommissionRate is the platform share of a settled order, e.g. "0.15".
	CommissionRate decimal.Decimal `mapstructure:"-"`
	// MinOrderAmount and MinDeliveryFee are in FCFA.
	MinOrderAmount decimal.Decimal `mapstructure:"-"`
	MinDeliveryFee decimal.Decimal `mapstructure:"-"`

	// DriverAcceptTimeout bounds how long an assigned delivery may wait for
	// the driver's acknowledgement before the dispatch sweep releases it.
	DriverAcceptTimeout time.Duration `mapstructure:"-"`

	AWSRegion    string `mapstructure:"AWS_REGION"`
	NotifySender string `mapstructure:"NOTIFY_SENDER"`
}

// SessionTTL returns the session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Load reads configuration from an optional .env file and the environment.
// Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	var err error
	if cfg.CommissionRate, err = parseDecimal(v, "COMMISSION_RATE"); err != nil {
		return nil, err
	}
	if cfg.MinOrderAmount, err = parseDecimal(v, "MIN_ORDER_AMOUNT"); err != nil {
		return nil, err
	}
	if cfg.MinDeliveryFee, err = parseDecimal(v, "MIN_DELIVERY_FEE"); err != nil {
		return nil, err
	}
	cfg.DriverAcceptTimeout = time.Duration(v.GetInt("DRIVER_ACCEPT_TIMEOUT_SECONDS")) * time.Second

	if cfg.CommissionRate.IsNegative() || cfg.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("config: COMMISSION_RATE must be within [0,1], got %s", cfg.CommissionRate)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("JWT_ISSUER", "mf-eats")
	v.SetDefault("SESSION_TTL_MINUTES", 24*60)
	v.SetDefault("COMMISSION_RATE", "0.15")
	v.SetDefault("MIN_ORDER_AMOUNT", "1000")
	v.SetDefault("MIN_DELIVERY_FEE", "500")
	v.SetDefault("DRIVER_ACCEPT_TIMEOUT_SECONDS", 300)
	v.SetDefault("AWS_REGION", "eu-west-1")
}

func parseDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
