package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	LogLevel     string
	Port         int
	DevMode      bool

	// PositionCooldown is the minimum gap between two position fetches of
	// the same entity.
	PositionCooldown time.Duration

	// CapitalGainsBaseTax is applied to realized profits when forecasts
	// liquidate maturing investments.
	CapitalGainsBaseTax decimal.Decimal

	// RatesRefreshSchedule is the cron expression for the exchange-rate job.
	RatesRefreshSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8080),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		DatabasePath:         getEnv("DATABASE_PATH", "./data/moneta.db"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		PositionCooldown:     time.Duration(getEnvAsInt("POSITION_UPDATE_COOLDOWN_SECONDS", 60)) * time.Second,
		RatesRefreshSchedule: getEnv("RATES_REFRESH_SCHEDULE", "0 0 */6 * * *"),
	}

	tax := getEnv("CAPITAL_GAINS_BASE_TAX", "0.19")
	d, err := decimal.NewFromString(tax)
	if err != nil {
		return nil, fmt.Errorf("CAPITAL_GAINS_BASE_TAX is not a number: %w", err)
	}
	cfg.CapitalGainsBaseTax = d

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.PositionCooldown < 0 {
		return fmt.Errorf("POSITION_UPDATE_COOLDOWN_SECONDS must not be negative")
	}
	if c.CapitalGainsBaseTax.Sign() < 0 || c.CapitalGainsBaseTax.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("CAPITAL_GAINS_BASE_TAX must be within [0, 1]")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
