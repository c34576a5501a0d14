package vault

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	MaxTradePercent      = 100
	MaxSlippageTolerance = 1000
)

// Bound names accepted by SetBound and reported in vault.bound.set events.
const (
	BoundMinTradeAmount    = "min_trade_amount"
	BoundMaxTradeAmount    = "max_trade_amount"
	BoundTradePercent      = "trade_percent"
	BoundSlippageTolerance = "slippage_tolerance"
	BoundFeePriceCeiling   = "fee_price_ceiling"
	BoundGasLimitCeiling   = "gas_limit_ceiling"
	BoundProfitThreshold   = "profit_threshold"
)

// TradeConfig is the single pending swap. It is replaced wholesale.
type TradeConfig struct {
	InputAsset      common.Address
	OutputAsset     common.Address
	FeeTier         uint32
	InputAmount     *uint256.Int
	MinOutputAmount *uint256.Int
	Deadline        time.Time
}

func (c *TradeConfig) Copy() *TradeConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.InputAmount = cloneInt(c.InputAmount)
	clone.MinOutputAmount = cloneInt(c.MinOutputAmount)
	return &clone
}

// RiskBounds holds the independently mutable trading limits.
// SlippageTolerance is expressed in basis points.
type RiskBounds struct {
	MinTradeAmount    *uint256.Int
	MaxTradeAmount    *uint256.Int
	TradePercent      uint64
	SlippageTolerance uint64
	FeePriceCeiling   *uint256.Int
	GasLimitCeiling   uint64
	ProfitThreshold   *uint256.Int
}

// DefaultBounds returns the bounds a freshly created vault starts with.
func DefaultBounds() RiskBounds {
	return RiskBounds{
		MinTradeAmount:    uint256.NewInt(100_000),
		MaxTradeAmount:    uint256.NewInt(10_000_000),
		TradePercent:      50,
		SlippageTolerance: 50,
		FeePriceCeiling:   uint256.NewInt(20_000_000_000),
		GasLimitCeiling:   500_000,
		ProfitThreshold:   uint256.NewInt(10_000),
	}
}

func (b RiskBounds) Copy() RiskBounds {
	b.MinTradeAmount = cloneInt(b.MinTradeAmount)
	b.MaxTradeAmount = cloneInt(b.MaxTradeAmount)
	b.FeePriceCeiling = cloneInt(b.FeePriceCeiling)
	b.ProfitThreshold = cloneInt(b.ProfitThreshold)
	return b
}

// Validate checks the two range-constrained fields.
func (b RiskBounds) Validate() error {
	if b.TradePercent > MaxTradePercent {
		return ErrInvalidPercent
	}
	if b.SlippageTolerance > MaxSlippageTolerance {
		return ErrInvalidTolerance
	}
	return nil
}

// TradePhase tracks the swap executor state machine.
type TradePhase string

const (
	PhaseIdle       TradePhase = "idle"
	PhaseValidating TradePhase = "validating"
	PhaseSwapping   TradePhase = "swapping"
	PhaseSettled    TradePhase = "settled"
	PhaseReverted   TradePhase = "reverted"
)

// TradeResult describes the last ExecuteTrade attempt.
type TradeResult struct {
	Phase       TradePhase
	InputAsset  common.Address
	OutputAsset common.Address
	AmountIn    *uint256.Int
	AmountOut   *uint256.Int
	Profit      *uint256.Int
	Err         string
	At          time.Time
}

// ProfitEstimate is the venue quote for the live trade config.
type ProfitEstimate struct {
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	MinAcceptableOut *uint256.Int
}

func cloneInt(x *uint256.Int) *uint256.Int {
	if x == nil {
		return nil
	}
	return x.Clone()
}

func intOrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
