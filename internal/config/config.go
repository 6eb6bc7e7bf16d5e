// Package config loads and validates the bot's configuration from
// environment variables (optionally seeded from a .env file), producing an
// immutable Config. Runtime updates go through UpdateConfig, which
// revalidates before swapping the record atomically — no caller ever
// observes a partially-updated Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/johnayoung/delta-hedge-bot/internal/apperrors"
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
)

// Config holds every setting the core reads. Required fields have no
// default and loading fails fast if they are absent.
type Config struct {
	// Required
	RPCURL         string
	PoolAddress    string
	VenueAPIKey    string
	VenueAPISecret string

	// Optional, with defaults
	VenueTestnet        bool
	MinHedgeSize        decimalx.Amount
	HedgeThreshold      decimalx.Amount
	MaxSlippagePercent  decimalx.Decimal
	DefaultLeverage     decimalx.Decimal
	PollIntervalSeconds int
	MaxRetries          int
	RetryDelaySeconds   int
	DatabaseURL         string
	LogLevel            string
	LogFile             string
	SymbolPerpetual     string
}

// Load reads configuration from environment variables, having first loaded
// envFile (if it exists) via godotenv, then validates the result.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("VENUE_TESTNET", "false")
	v.SetDefault("MIN_HEDGE_SIZE", "0.005")
	v.SetDefault("HEDGE_THRESHOLD", "0.01")
	v.SetDefault("MAX_SLIPPAGE_PERCENT", "0.5")
	v.SetDefault("DEFAULT_LEVERAGE", "1")
	v.SetDefault("POLL_INTERVAL_SECONDS", "5")
	v.SetDefault("MAX_RETRIES", "3")
	v.SetDefault("RETRY_DELAY_SECONDS", "2")
	v.SetDefault("DATABASE_URL", "sqlite://hedgebot.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "hedgebot.log")
	v.SetDefault("SYMBOL_PERPETUAL", "ETH/USDT:USDT")

	required := []string{"RPC_URL", "POOL_ADDRESS", "VENUE_API_KEY", "VENUE_API_SECRET"}
	for _, key := range required {
		if v.GetString(key) == "" {
			return Config{}, apperrors.Wrap(apperrors.ErrConfig, fmt.Sprintf("missing required environment variable %s", key), nil)
		}
	}

	minHedge, err := decimalx.NewDecimalFromString(v.GetString("MIN_HEDGE_SIZE"))
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrConfig, "invalid MIN_HEDGE_SIZE", err)
	}
	minHedgeAmt, err := decimalx.NewAmount(minHedge)
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrConfig, "MIN_HEDGE_SIZE must be non-negative", err)
	}

	hedgeThreshold, err := decimalx.NewDecimalFromString(v.GetString("HEDGE_THRESHOLD"))
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrConfig, "invalid HEDGE_THRESHOLD", err)
	}
	hedgeThresholdAmt, err := decimalx.NewAmount(hedgeThreshold)
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrConfig, "HEDGE_THRESHOLD must be non-negative", err)
	}

	maxSlippage, err := decimalx.NewDecimalFromString(v.GetString("MAX_SLIPPAGE_PERCENT"))
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrConfig, "invalid MAX_SLIPPAGE_PERCENT", err)
	}

	defaultLeverage, err := decimalx.NewDecimalFromString(v.GetString("DEFAULT_LEVERAGE"))
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrConfig, "invalid DEFAULT_LEVERAGE", err)
	}

	cfg := Config{
		RPCURL:              v.GetString("RPC_URL"),
		PoolAddress:         v.GetString("POOL_ADDRESS"),
		VenueAPIKey:         v.GetString("VENUE_API_KEY"),
		VenueAPISecret:      v.GetString("VENUE_API_SECRET"),
		VenueTestnet:        v.GetBool("VENUE_TESTNET"),
		MinHedgeSize:        minHedgeAmt,
		HedgeThreshold:      hedgeThresholdAmt,
		MaxSlippagePercent:  maxSlippage,
		DefaultLeverage:     defaultLeverage,
		PollIntervalSeconds: v.GetInt("POLL_INTERVAL_SECONDS"),
		MaxRetries:          v.GetInt("MAX_RETRIES"),
		RetryDelaySeconds:   v.GetInt("RETRY_DELAY_SECONDS"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFile:             v.GetString("LOG_FILE"),
		SymbolPerpetual:     v.GetString("SYMBOL_PERPETUAL"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces every range and format rule named by the external
// interface contract.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.PoolAddress, "0x") {
		return apperrors.Wrap(apperrors.ErrConfig, "pool address must start with 0x", nil)
	}
	if len(c.PoolAddress) != 42 {
		return apperrors.Wrap(apperrors.ErrConfig, "pool address must be 42 characters", nil)
	}
	zero := decimalx.ZeroAmount()
	if !c.MinHedgeSize.GreaterThan(zero) {
		return apperrors.Wrap(apperrors.ErrConfig, "min hedge size must be positive", nil)
	}
	if !c.HedgeThreshold.GreaterThan(zero) {
		return apperrors.Wrap(apperrors.ErrConfig, "hedge threshold must be positive", nil)
	}
	if c.MaxSlippagePercent.IsNegative() || c.MaxSlippagePercent.GreaterThan(decimalx.NewDecimal(100)) {
		return apperrors.Wrap(apperrors.ErrConfig, "max slippage percent must be between 0 and 100", nil)
	}
	one := decimalx.NewDecimal(1)
	hundred := decimalx.NewDecimal(100)
	if c.DefaultLeverage.LessThan(one) || c.DefaultLeverage.GreaterThan(hundred) {
		return apperrors.Wrap(apperrors.ErrConfig, "default leverage must be between 1 and 100", nil)
	}
	if c.PollIntervalSeconds < 1 {
		return apperrors.Wrap(apperrors.ErrConfig, "poll interval must be at least 1 second", nil)
	}
	return nil
}

// UpdateConfig applies the given field updates on top of c and revalidates,
// returning a new Config atomically rather than mutating c in place.
func UpdateConfig(c Config, updates map[string]string) (Config, error) {
	updated := c
	for key, value := range updates {
		switch key {
		case "min_hedge_size":
			d, err := decimalx.NewDecimalFromString(value)
			if err != nil {
				return c, apperrors.Wrap(apperrors.ErrConfig, "invalid min_hedge_size", err)
			}
			amt, err := decimalx.NewAmount(d)
			if err != nil {
				return c, apperrors.Wrap(apperrors.ErrConfig, "min_hedge_size must be non-negative", err)
			}
			updated.MinHedgeSize = amt
		case "hedge_threshold":
			d, err := decimalx.NewDecimalFromString(value)
			if err != nil {
				return c, apperrors.Wrap(apperrors.ErrConfig, "invalid hedge_threshold", err)
			}
			amt, err := decimalx.NewAmount(d)
			if err != nil {
				return c, apperrors.Wrap(apperrors.ErrConfig, "hedge_threshold must be non-negative", err)
			}
			updated.HedgeThreshold = amt
		case "max_slippage_percent":
			d, err := decimalx.NewDecimalFromString(value)
			if err != nil {
				return c, apperrors.Wrap(apperrors.ErrConfig, "invalid max_slippage_percent", err)
			}
			updated.MaxSlippagePercent = d
		case "default_leverage":
			d, err := decimalx.NewDecimalFromString(value)
			if err != nil {
				return c, apperrors.Wrap(apperrors.ErrConfig, "invalid default_leverage", err)
			}
			updated.DefaultLeverage = d
		case "poll_interval_seconds":
			n, err := strconv.Atoi(value)
			if err != nil {
				return c, apperrors.Wrap(apperrors.ErrConfig, "invalid poll_interval_seconds", err)
			}
			updated.PollIntervalSeconds = n
		default:
			return c, apperrors.Wrap(apperrors.ErrConfig, fmt.Sprintf("unknown config key %q", key), nil)
		}
	}
	if err := updated.Validate(); err != nil {
		return c, err
	}
	return updated, nil
}
