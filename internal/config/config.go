// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/quantgate/quantgate/internal/market_regime"
	"github.com/quantgate/quantgate/internal/returns"
	"github.com/quantgate/quantgate/internal/risk"
	"github.com/quantgate/quantgate/internal/routing"
)

// Config holds the assembled configuration for one engine instance. The
// service layer constructs one per portfolio and injects the pieces into
// the core components.
type Config struct {
	LogLevel   string
	Pretty     bool
	MaxHistory int

	Limits  risk.Limits
	Regime  market_regime.Config
	Routing routing.Options
}

// Load reads configuration from environment variables, applying the
// documented defaults for anything unset. A .env file is honored when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	limits := risk.DefaultLimits()
	limits.MaxPortfolioDrawdown = getEnvAsFloat("QUANTGATE_MAX_DRAWDOWN", limits.MaxPortfolioDrawdown)
	limits.MaxSingleTradeRisk = getEnvAsFloat("QUANTGATE_MAX_TRADE_RISK", limits.MaxSingleTradeRisk)
	limits.MaxDailyLoss = getEnvAsFloat("QUANTGATE_MAX_DAILY_LOSS", limits.MaxDailyLoss)
	limits.MaxOpenPositions = getEnvAsInt("QUANTGATE_MAX_OPEN_POSITIONS", limits.MaxOpenPositions)
	limits.MaxPositionSizePct = getEnvAsFloat("QUANTGATE_MAX_POSITION_SIZE_PCT", limits.MaxPositionSizePct)
	limits.MaxCorrelation = getEnvAsFloat("QUANTGATE_MAX_CORRELATION", limits.MaxCorrelation)
	limits.MinRiskReward = getEnvAsFloat("QUANTGATE_MIN_RISK_REWARD", limits.MinRiskReward)
	limits.MaxLeverage = getEnvAsFloat("QUANTGATE_MAX_LEVERAGE", limits.MaxLeverage)

	regime := market_regime.DefaultConfig()
	regime.ADXStrong = getEnvAsFloat("QUANTGATE_ADX_STRONG", regime.ADXStrong)
	regime.ADXWeak = getEnvAsFloat("QUANTGATE_ADX_WEAK", regime.ADXWeak)
	regime.BBHighVolPct = getEnvAsFloat("QUANTGATE_BB_HIGH_VOL_PCT", regime.BBHighVolPct)
	regime.HysteresisBars = getEnvAsInt("QUANTGATE_HYSTERESIS_BARS", regime.HysteresisBars)
	regime.TransitionLookback = getEnvAsInt("QUANTGATE_TRANSITION_LOOKBACK", regime.TransitionLookback)

	cfg := &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Pretty:     getEnvAsBool("QUANTGATE_PRETTY_LOG", false),
		MaxHistory: getEnvAsInt("QUANTGATE_MAX_HISTORY", returns.DefaultMaxHistory),
		Limits:     limits,
		Regime:     regime,
		Routing: routing.Options{
			LowConfidenceThreshold: getEnvAsFloat("QUANTGATE_LOW_CONFIDENCE_THRESHOLD", 0.4),
			LowConfidencePenalty:   getEnvAsFloat("QUANTGATE_LOW_CONFIDENCE_PENALTY", 0.5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configured values for sane ranges.
func (c *Config) Validate() error {
	if c.Limits.MaxPortfolioDrawdown <= 0 || c.Limits.MaxPortfolioDrawdown >= 1 {
		return fmt.Errorf("max portfolio drawdown must be in (0, 1), got %v", c.Limits.MaxPortfolioDrawdown)
	}
	if c.Limits.MaxSingleTradeRisk <= 0 || c.Limits.MaxSingleTradeRisk >= 1 {
		return fmt.Errorf("max single trade risk must be in (0, 1), got %v", c.Limits.MaxSingleTradeRisk)
	}
	if c.Limits.MaxOpenPositions <= 0 {
		return fmt.Errorf("max open positions must be positive, got %d", c.Limits.MaxOpenPositions)
	}
	if c.Limits.MaxCorrelation <= 0 || c.Limits.MaxCorrelation > 1 {
		return fmt.Errorf("max correlation must be in (0, 1], got %v", c.Limits.MaxCorrelation)
	}
	if c.Regime.HysteresisBars < 1 {
		return fmt.Errorf("hysteresis bars must be at least 1, got %d", c.Regime.HysteresisBars)
	}
	if c.Regime.ADXWeak >= c.Regime.ADXStrong {
		return fmt.Errorf("ADX weak threshold %v must be below strong threshold %v",
			c.Regime.ADXWeak, c.Regime.ADXStrong)
	}
	if c.MaxHistory < returns.MinObservations {
		return fmt.Errorf("max history must be at least %d, got %d", returns.MinObservations, c.MaxHistory)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
