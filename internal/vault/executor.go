package vault

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var hundred = uint256.NewInt(100)

// ExecuteTrade validates the live trade config against the risk bounds and
// swaps it on the venue. Recorded balances change only when the realised
// profit reaches the threshold.
//
// The venue call is external: once it has succeeded, a later profit failure
// leaves the on-chain swap in place even though nothing is recorded.
func (v *Vault) ExecuteTrade(ctx context.Context, caller common.Address) (*TradeResult, error) {
	result := &TradeResult{Phase: PhaseIdle, At: v.clock().UTC()}
	err := v.guarded(ctx, caller, func(ctx context.Context, st *state) ([]Event, error) {
		return v.executeTrade(ctx, st, result)
	})
	if err != nil {
		result.Phase = PhaseReverted
		result.Err = err.Error()
		metrics.TradesTotal.WithLabelValues("reverted").Inc()
	} else {
		metrics.TradesTotal.WithLabelValues("settled").Inc()
	}
	v.tradeMu.Lock()
	v.lastTrade = result
	v.tradeMu.Unlock()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (v *Vault) executeTrade(ctx context.Context, st *state, result *TradeResult) ([]Event, error) {
	result.Phase = PhaseValidating
	if !st.running {
		return nil, v.reject("not_running", ErrNotRunning)
	}
	if st.trade == nil {
		return nil, v.reject("no_trade_config", ErrNoTradeConfig)
	}
	cfg := st.trade
	bounds := st.bounds
	result.InputAsset = cfg.InputAsset
	result.OutputAsset = cfg.OutputAsset

	if !st.isAllowed(cfg.InputAsset) || !st.isAllowed(cfg.OutputAsset) {
		return nil, v.reject("asset_not_allowed", ErrAssetNotAllowed)
	}
	if cfg.InputAmount.Lt(intOrZero(bounds.MinTradeAmount)) || cfg.InputAmount.Gt(intOrZero(bounds.MaxTradeAmount)) {
		return nil, v.reject("trade_amount", fmt.Errorf("%w: %s not in [%s, %s]", ErrInvalidTradeAmount,
			cfg.InputAmount.Dec(), intOrZero(bounds.MinTradeAmount).Dec(), intOrZero(bounds.MaxTradeAmount).Dec()))
	}
	now := v.clock()
	if now.After(cfg.Deadline) {
		return nil, v.reject("deadline", ErrDeadlineExpired)
	}

	inputBalance, err := v.onchainBalance(ctx, cfg.InputAsset)
	if err != nil {
		return nil, err
	}
	tradeAmount := tradeSize(cfg.InputAmount, inputBalance, bounds.TradePercent)
	if tradeAmount.IsZero() {
		return nil, v.reject("trade_amount", fmt.Errorf("%w: nothing to trade", ErrInvalidTradeAmount))
	}
	if st.balance(cfg.InputAsset).Lt(tradeAmount) {
		return nil, v.reject("recorded_balance", fmt.Errorf("%w: recorded %s, trade %s",
			ErrInsufficientRecordedBalance, st.balance(cfg.InputAsset).Dec(), tradeAmount.Dec()))
	}
	result.AmountIn = tradeAmount.Clone()

	result.Phase = PhaseSwapping
	opts := v.txOptions(st)
	if err := v.assets.Approve(ctx, cfg.InputAsset, v.venue.Address(), tradeAmount, opts); err != nil {
		return nil, fmt.Errorf("%w: approve venue: %w", ErrTransferFailed, err)
	}
	initialBalance, err := v.onchainBalance(ctx, cfg.OutputAsset)
	if err != nil {
		return nil, err
	}
	amountOut, err := v.venue.ExactInputSingle(ctx, chain.ExactInputSingleParams{
		TokenIn:           cfg.InputAsset,
		TokenOut:          cfg.OutputAsset,
		Fee:               cfg.FeeTier,
		Recipient:         v.self,
		Deadline:          now,
		AmountIn:          tradeAmount,
		AmountOutMinimum:  intOrZero(cfg.MinOutputAmount),
		SqrtPriceLimitX96: new(uint256.Int),
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVenueCallFailed, err)
	}
	amountOut = intOrZero(amountOut)
	result.AmountOut = amountOut.Clone()

	postBalance, err := v.onchainBalance(ctx, cfg.OutputAsset)
	if err != nil {
		return nil, err
	}
	profit := new(uint256.Int)
	if postBalance.Gt(initialBalance) {
		profit.Sub(postBalance, initialBalance)
	}
	result.Profit = profit.Clone()
	if profit.Lt(intOrZero(bounds.ProfitThreshold)) {
		v.log.Warn("swap executed below profit threshold, recorded balances unchanged",
			"input", cfg.InputAsset.Hex(), "output", cfg.OutputAsset.Hex(),
			"amount_in", tradeAmount.Dec(), "amount_out", amountOut.Dec(),
			"profit", profit.Dec(), "threshold", intOrZero(bounds.ProfitThreshold).Dec())
		return nil, v.reject("profit", fmt.Errorf("%w: %s < %s", ErrProfitBelowThreshold,
			profit.Dec(), intOrZero(bounds.ProfitThreshold).Dec()))
	}

	if err := st.debit(cfg.InputAsset, tradeAmount); err != nil {
		return nil, err
	}
	if err := st.credit(cfg.OutputAsset, amountOut); err != nil {
		return nil, err
	}
	result.Phase = PhaseSettled
	v.log.Info("trade executed",
		"input", cfg.InputAsset.Hex(), "output", cfg.OutputAsset.Hex(),
		"amount_in", tradeAmount.Dec(), "amount_out", amountOut.Dec(), "profit", profit.Dec())
	return []Event{tradeExecutedEvent(cfg.InputAsset, cfg.OutputAsset, tradeAmount, amountOut, profit)}, nil
}

// tradeSize is min(requested, floor(balance*percent/100)).
func tradeSize(requested, balance *uint256.Int, percent uint64) *uint256.Int {
	share, overflow := new(uint256.Int).MulDivOverflow(balance, uint256.NewInt(percent), hundred)
	if overflow {
		return requested.Clone()
	}
	if requested.Lt(share) {
		return requested.Clone()
	}
	return share
}

// LastTrade returns the outcome of the most recent ExecuteTrade call.
func (v *Vault) LastTrade() (TradeResult, bool) {
	v.tradeMu.RLock()
	defer v.tradeMu.RUnlock()
	if v.lastTrade == nil {
		return TradeResult{}, false
	}
	return *v.lastTrade, true
}

// EstimateProfit quotes the live trade config without changing state. The
// quote is not binding: the price may move before execution.
func (v *Vault) EstimateProfit(ctx context.Context) (*ProfitEstimate, error) {
	st := v.current()
	if st.trade == nil {
		return nil, ErrNoTradeConfig
	}
	cfg := st.trade
	amountOut, err := v.venue.QuoteExactInputSingle(ctx, chain.QuoteParams{
		TokenIn:           cfg.InputAsset,
		TokenOut:          cfg.OutputAsset,
		Fee:               cfg.FeeTier,
		AmountIn:          intOrZero(cfg.InputAmount),
		SqrtPriceLimitX96: new(uint256.Int),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: quote: %w", ErrVenueCallFailed, err)
	}
	amountOut = intOrZero(amountOut)
	minOut, _ := new(uint256.Int).MulDivOverflow(amountOut,
		uint256.NewInt(10_000-st.bounds.SlippageTolerance), uint256.NewInt(10_000))
	return &ProfitEstimate{
		AmountIn:         intOrZero(cfg.InputAmount).Clone(),
		AmountOut:        amountOut.Clone(),
		MinAcceptableOut: minOut,
	}, nil
}
