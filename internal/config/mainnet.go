package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/johnayoung/delta-hedge-bot/internal/apperrors"
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
)

// MainnetConfig extends Config with the pool/venue specifics needed to run
// against Ethereum mainnet rather than a testnet or simulated pool.
type MainnetConfig struct {
	Config

	VaultToken0 string
	VaultToken1 string
	Token0Addr  string
	Token1Addr  string
	Token0Dec   int
	Token1Dec   int

	ChainID         int
	BlockTimeSec    int
	EquilibriumRes0 decimalx.Amount
	EquilibriumRes1 decimalx.Amount
	EquilibriumPx   decimalx.Price

	DesyncWarningPercent  decimalx.Decimal
	MaxPositionSize       decimalx.Amount
	MinBalance            decimalx.Amount
	EmergencyStopLoss     decimalx.Amount
	MaxGasPriceGwei       decimalx.Decimal
	GasLimitMultiplier    decimalx.Decimal
	MaxFundingRatePercent decimalx.Decimal
	FundingCheckInterval  decimalx.Duration

	// MaxDeltaExposureETH is loaded from the profile's
	// risk_params.hedge.max_delta_exposure_eth. It is declared and loaded
	// here rather than left as a dangling reference; nothing in the core
	// reads it, so it does not bound the delta or any hedge.
	MaxDeltaExposureETH decimalx.Amount
}

// mainnetPoolJSON mirrors the subset of the JSON profile this loader reads.
type mainnetPoolJSON struct {
	Network struct {
		RPCURL    string `json:"rpc_url"`
		ChainID   int    `json:"chain_id"`
		BlockTime int    `json:"block_time"`
	} `json:"network"`
	Pools []struct {
		Address string `json:"address"`
		Token0  struct {
			Address  string `json:"address"`
			Vault    string `json:"vault"`
			Decimals int    `json:"decimals"`
		} `json:"token0"`
		Token1 struct {
			Address  string `json:"address"`
			Vault    string `json:"vault"`
			Decimals int    `json:"decimals"`
		} `json:"token1"`
	} `json:"pools"`
	RiskParams struct {
		Hedge struct {
			MinHedgeSizeETH     string `json:"min_hedge_size_eth"`
			HedgeThresholdETH   string `json:"hedge_threshold_eth"`
			MaxDeltaExposureETH string `json:"max_delta_exposure_eth"`
		} `json:"hedge"`
		Position struct {
			MaxPositionSizeETH string `json:"max_position_size_eth"`
			MinBalanceUSDT     string `json:"min_balance_usdt"`
		} `json:"position"`
		Desync struct {
			WarningPercent string `json:"warning_percent"`
		} `json:"desync"`
		Slippage struct {
			MaxSlippagePercent string `json:"max_slippage_percent"`
		} `json:"slippage"`
	} `json:"risk_params"`
	Gas struct {
		MaxPriceGwei string `json:"max_price_gwei"`
	} `json:"gas"`
	Emergency struct {
		StopLossUSDT string `json:"stop_loss_usdt"`
	} `json:"emergency"`
}

// LoadMainnetFromJSON reads a mainnet pool/risk profile from a JSON file,
// layering it over the base Config (credentials must already be loaded via
// Load, since a checked-in profile file must never carry API secrets).
func LoadMainnetFromJSON(base Config, path string) (MainnetConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "reading mainnet profile", err)
	}
	var doc mainnetPoolJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "parsing mainnet profile", err)
	}
	if len(doc.Pools) == 0 {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "mainnet profile has no pools", nil)
	}
	pool := doc.Pools[0]

	parse := func(s string) (decimalx.Decimal, error) { return decimalx.NewDecimalFromString(s) }
	parseAmt := func(s string) (decimalx.Amount, error) {
		d, err := parse(s)
		if err != nil {
			return decimalx.ZeroAmount(), err
		}
		return decimalx.NewAmount(d)
	}

	minHedge, err := parseAmt(doc.RiskParams.Hedge.MinHedgeSizeETH)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid min_hedge_size_eth", err)
	}
	hedgeThreshold, err := parseAmt(doc.RiskParams.Hedge.HedgeThresholdETH)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid hedge_threshold_eth", err)
	}
	maxDelta, err := parseAmt(doc.RiskParams.Hedge.MaxDeltaExposureETH)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid max_delta_exposure_eth", err)
	}
	maxPosition, err := parseAmt(doc.RiskParams.Position.MaxPositionSizeETH)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid max_position_size_eth", err)
	}
	minBalance, err := parseAmt(doc.RiskParams.Position.MinBalanceUSDT)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid min_balance_usdt", err)
	}
	desyncPercent, err := parse(doc.RiskParams.Desync.WarningPercent)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid desync warning_percent", err)
	}
	maxSlippage, err := parse(doc.RiskParams.Slippage.MaxSlippagePercent)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid slippage max_slippage_percent", err)
	}
	maxGas, err := parse(doc.Gas.MaxPriceGwei)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid gas max_price_gwei", err)
	}
	stopLoss, err := parseAmt(doc.Emergency.StopLossUSDT)
	if err != nil {
		return MainnetConfig{}, apperrors.Wrap(apperrors.ErrConfig, "invalid emergency stop_loss_usdt", err)
	}

	base.PoolAddress = pool.Address
	base.MinHedgeSize = minHedge
	base.HedgeThreshold = hedgeThreshold
	base.MaxSlippagePercent = maxSlippage

	mc := MainnetConfig{
		Config:                base,
		VaultToken0:           pool.Token0.Vault,
		VaultToken1:           pool.Token1.Vault,
		Token0Addr:            pool.Token0.Address,
		Token1Addr:            pool.Token1.Address,
		Token0Dec:             pool.Token0.Decimals,
		Token1Dec:             pool.Token1.Decimals,
		ChainID:               doc.Network.ChainID,
		BlockTimeSec:          doc.Network.BlockTime,
		DesyncWarningPercent:  desyncPercent,
		MaxPositionSize:       maxPosition,
		MinBalance:            minBalance,
		EmergencyStopLoss:     stopLoss,
		MaxGasPriceGwei:       maxGas,
		GasLimitMultiplier:    decimalx.MustDecimalFromString("1.2"),
		MaxFundingRatePercent: decimalx.MustDecimalFromString("0.05"),
		FundingCheckInterval:  decimalx.Seconds(28800),
		MaxDeltaExposureETH:   maxDelta,
	}
	return mc, nil
}

// ValidateMainnet enforces the mainnet-specific checks on top of the base
// Config validation: expected chain id and 0x-prefixed token addresses.
// Token decimals are not checked.
func (mc MainnetConfig) ValidateMainnet() error {
	if err := mc.Config.Validate(); err != nil {
		return err
	}
	if mc.ChainID != 1 {
		return apperrors.Wrap(apperrors.ErrConfig, "expected mainnet chain id 1", nil)
	}
	if !strings.HasPrefix(mc.Token0Addr, "0x") || !strings.HasPrefix(mc.Token1Addr, "0x") {
		return apperrors.Wrap(apperrors.ErrConfig, "token addresses must start with 0x", nil)
	}
	return nil
}
