// Package poolrpc implements PoolReader: read-only JSON-RPC access to the
// pool contract's reserves, static parameters, assets, quotes, and swap
// limits via go-ethereum.
package poolrpc

import (
	"bytes"
	"context"
	_ "embed"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/johnayoung/delta-hedge-bot/internal/apperrors"
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

//go:embed abi/pool.json
var poolABIJSON []byte

// Reader is PoolReader: a read-only client against one pool contract.
type Reader struct {
	client      *ethclient.Client
	contract    *bind.BoundContract
	poolAddress common.Address

	mu         sync.Mutex
	cachedParams *model.PoolParams
}

// NewReader dials rpcURL and binds the pool contract at poolAddress.
func NewReader(rpcURL, poolAddress string) (*Reader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransient, "dialing rpc endpoint", err)
	}
	parsedABI, err := abi.JSON(bytes.NewReader(poolABIJSON))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfig, "parsing pool abi", err)
	}
	addr := common.HexToAddress(poolAddress)
	bound := bind.NewBoundContract(addr, parsedABI, client, client, client)
	return &Reader{client: client, contract: bound, poolAddress: addr}, nil
}

// Reserves returns the raw reserves and pool status.
func (r *Reader) Reserves(ctx context.Context) (reserve0Raw, reserve1Raw *big.Int, status model.PoolStatus, err error) {
	var out []interface{}
	out, err = r.call(ctx, "getReserves")
	if err != nil {
		return nil, nil, "", apperrors.Wrap(apperrors.ErrTransient, "getReserves call failed", err)
	}
	reserve0Raw = out[0].(*big.Int)
	reserve1Raw = out[1].(*big.Int)
	statusCode := out[2].(uint8)
	switch statusCode {
	case 0:
		status = model.PoolUnactivated
	case 1:
		status = model.PoolUnlocked
	case 2:
		status = model.PoolLocked
	default:
		status = model.PoolUnactivated
	}
	return reserve0Raw, reserve1Raw, status, nil
}

// ReservesScaled returns reserves as human-unit Amounts given the pool's
// token decimals.
func ReservesScaled(raw0, raw1 *big.Int, decimals0, decimals1 int) (decimalx.Amount, decimalx.Amount, error) {
	r0, err := scale(raw0, decimals0)
	if err != nil {
		return decimalx.Amount{}, decimalx.Amount{}, err
	}
	r1, err := scale(raw1, decimals1)
	if err != nil {
		return decimalx.Amount{}, decimalx.Amount{}, err
	}
	return r0, r1, nil
}

func scale(raw *big.Int, decimals int) (decimalx.Amount, error) {
	d, err := decimalx.NewDecimalFromString(raw.String())
	if err != nil {
		return decimalx.Amount{}, err
	}
	divisor := decimalx.MustDecimalFromString(pow10(decimals))
	scaled, err := d.Div(divisor)
	if err != nil {
		return decimalx.Amount{}, err
	}
	return decimalx.NewAmount(scaled)
}

func pow10(n int) string {
	s := "1"
	for i := 0; i < n; i++ {
		s += "0"
	}
	return s
}

// Params fetches and caches the pool's static parameters. Pass
// invalidate=true to force a refetch.
func (r *Reader) Params(ctx context.Context, invalidate bool) (model.PoolParams, error) {
	r.mu.Lock()
	if !invalidate && r.cachedParams != nil {
		cached := *r.cachedParams
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	out, err := r.call(ctx, "getParams")
	if err != nil {
		return model.PoolParams{}, apperrors.Wrap(apperrors.ErrTransient, "getParams call failed", err)
	}

	params := model.PoolParams{
		Vault0:         out[0].(common.Address).Hex(),
		Vault1:         out[1].(common.Address).Hex(),
		Account:        out[2].(common.Address).Hex(),
	}

	eq0, err := decimalFromBig(out[3].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	eq0Amt, err := decimalx.NewAmount(eq0)
	if err != nil {
		return model.PoolParams{}, err
	}
	eq1, err := decimalFromBig(out[4].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	eq1Amt, err := decimalx.NewAmount(eq1)
	if err != nil {
		return model.PoolParams{}, err
	}
	params.EquilibriumReserve0 = eq0Amt
	params.EquilibriumReserve1 = eq1Amt

	priceX, err := scaledByE18(out[5].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	priceXAmt, err := decimalx.NewAmount(priceX)
	if err != nil {
		return model.PoolParams{}, err
	}
	priceY, err := scaledByE18(out[6].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	priceYAmt, err := decimalx.NewAmount(priceY)
	if err != nil {
		return model.PoolParams{}, err
	}
	params.PriceX = priceXAmt
	params.PriceY = priceYAmt

	concX, err := scaledByE18(out[7].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	concY, err := scaledByE18(out[8].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	params.ConcentrationX = concX
	params.ConcentrationY = concY

	fee, err := scaledByE18(out[9].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	protocolFee, err := scaledByE18(out[10].(*big.Int))
	if err != nil {
		return model.PoolParams{}, err
	}
	params.Fee = fee
	params.ProtocolFee = protocolFee

	assets, err := r.call(ctx, "getAssets")
	if err != nil {
		return model.PoolParams{}, apperrors.Wrap(apperrors.ErrTransient, "getAssets call failed", err)
	}
	asset0 := assets[0].(common.Address)
	asset1 := assets[1].(common.Address)
	params.Token0Decimals = tokenDecimals(asset0, 6)
	params.Token1Decimals = tokenDecimals(asset1, 18)

	if err := params.Validate(); err != nil {
		return model.PoolParams{}, err
	}

	r.mu.Lock()
	r.cachedParams = &params
	r.mu.Unlock()

	return params, nil
}

// tokenDecimals is a placeholder for an ERC-20 decimals() lookup; the
// canonical pool in this deployment always pairs a 6-decimal stablecoin
// (token0) with an 18-decimal volatile asset (token1). It does not query
// the token contract and returns canonicalDecimals unchanged.
func tokenDecimals(addr common.Address, canonicalDecimals int) int {
	return canonicalDecimals
}

func decimalFromBig(v *big.Int) (decimalx.Decimal, error) {
	return decimalx.NewDecimalFromString(v.String())
}

func scaledByE18(v *big.Int) (decimalx.Decimal, error) {
	d, err := decimalFromBig(v)
	if err != nil {
		return decimalx.Decimal{}, err
	}
	divisor := decimalx.MustDecimalFromString("1000000000000000000")
	return d.Div(divisor)
}

// Assets returns the pool's token addresses.
func (r *Reader) Assets(ctx context.Context) (token0, token1 common.Address, err error) {
	out, err := r.call(ctx, "getAssets")
	if err != nil {
		return common.Address{}, common.Address{}, apperrors.Wrap(apperrors.ErrTransient, "getAssets call failed", err)
	}
	return out[0].(common.Address), out[1].(common.Address), nil
}

// Quote computes an informational swap quote via computeQuote.
func (r *Reader) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, exactIn bool) (*big.Int, error) {
	out, err := r.call(ctx, "computeQuote", tokenIn, tokenOut, amountIn, exactIn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransient, "computeQuote call failed", err)
	}
	return out[0].(*big.Int), nil
}

// Limits returns the pool's current swap limits.
func (r *Reader) Limits(ctx context.Context) (maxIn, maxOut *big.Int, err error) {
	out, err := r.call(ctx, "getLimits")
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrTransient, "getLimits call failed", err)
	}
	return out[0].(*big.Int), out[1].(*big.Int), nil
}

// FetchReserves composes Reserves, Params, and BlockNumber into the
// human-unit shape the aggregator consumes, so the aggregator never deals
// with raw *big.Int values or the ABI's wire types directly.
func (r *Reader) FetchReserves(ctx context.Context) (reserve0, reserve1 decimalx.Amount, status model.PoolStatus, blockNumber *uint64, err error) {
	raw0, raw1, status, err := r.Reserves(ctx)
	if err != nil {
		return decimalx.Amount{}, decimalx.Amount{}, "", nil, err
	}
	params, err := r.Params(ctx, false)
	if err != nil {
		return decimalx.Amount{}, decimalx.Amount{}, "", nil, err
	}
	reserve0, reserve1, err = ReservesScaled(raw0, raw1, params.Token0Decimals, params.Token1Decimals)
	if err != nil {
		return decimalx.Amount{}, decimalx.Amount{}, "", nil, err
	}
	bn, err := r.BlockNumber(ctx)
	if err != nil {
		return reserve0, reserve1, status, nil, nil
	}
	return reserve0, reserve1, status, &bn, nil
}

// BlockNumber returns the current chain head, used to stamp snapshots.
func (r *Reader) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrTransient, "block number fetch failed", err)
	}
	return n, nil
}

// HeadCheck succeeds only if the chain head can be read. The aggregator's
// CheckConnection health probe does not call it.
func (r *Reader) HeadCheck(ctx context.Context) error {
	_, err := r.BlockNumber(ctx)
	return err
}

func (r *Reader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := r.contract.Call(opts, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}
