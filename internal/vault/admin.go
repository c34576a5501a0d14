package vault

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (v *Vault) setBound(ctx context.Context, caller common.Address, name, value string, set func(b *RiskBounds) error) error {
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		if err := set(&st.bounds); err != nil {
			return nil, err
		}
		return []Event{boundSetEvent(name, value)}, nil
	})
}

func (v *Vault) SetMinTradeAmount(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	amount = intOrZero(amount).Clone()
	return v.setBound(ctx, caller, BoundMinTradeAmount, amount.Dec(), func(b *RiskBounds) error {
		b.MinTradeAmount = amount
		return nil
	})
}

func (v *Vault) SetMaxTradeAmount(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	amount = intOrZero(amount).Clone()
	return v.setBound(ctx, caller, BoundMaxTradeAmount, amount.Dec(), func(b *RiskBounds) error {
		b.MaxTradeAmount = amount
		return nil
	})
}

func (v *Vault) SetTradePercent(ctx context.Context, caller common.Address, percent uint64) error {
	return v.setBound(ctx, caller, BoundTradePercent, formatUint(percent), func(b *RiskBounds) error {
		if percent > MaxTradePercent {
			return v.reject("invalid_percent", fmt.Errorf("%w: %d > %d", ErrInvalidPercent, percent, MaxTradePercent))
		}
		b.TradePercent = percent
		return nil
	})
}

func (v *Vault) SetSlippageTolerance(ctx context.Context, caller common.Address, bps uint64) error {
	return v.setBound(ctx, caller, BoundSlippageTolerance, formatUint(bps), func(b *RiskBounds) error {
		if bps > MaxSlippageTolerance {
			return v.reject("invalid_tolerance", fmt.Errorf("%w: %d > %d", ErrInvalidTolerance, bps, MaxSlippageTolerance))
		}
		b.SlippageTolerance = bps
		return nil
	})
}

func (v *Vault) SetFeePriceCeiling(ctx context.Context, caller common.Address, wei *uint256.Int) error {
	wei = intOrZero(wei).Clone()
	return v.setBound(ctx, caller, BoundFeePriceCeiling, wei.Dec(), func(b *RiskBounds) error {
		b.FeePriceCeiling = wei
		return nil
	})
}

func (v *Vault) SetGasLimitCeiling(ctx context.Context, caller common.Address, gas uint64) error {
	return v.setBound(ctx, caller, BoundGasLimitCeiling, formatUint(gas), func(b *RiskBounds) error {
		b.GasLimitCeiling = gas
		return nil
	})
}

func (v *Vault) SetProfitThreshold(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	amount = intOrZero(amount).Clone()
	return v.setBound(ctx, caller, BoundProfitThreshold, amount.Dec(), func(b *RiskBounds) error {
		b.ProfitThreshold = amount
		return nil
	})
}

// SetBound dispatches a textual value to the named setter.
func (v *Vault) SetBound(ctx context.Context, caller common.Address, name, raw string) error {
	raw = strings.TrimSpace(raw)
	switch name {
	case BoundMinTradeAmount, BoundMaxTradeAmount, BoundFeePriceCeiling, BoundProfitThreshold:
		amount, err := uint256.FromDecimal(raw)
		if err != nil {
			return fmt.Errorf("%w: %s amount %q: %w", ErrInvalidBoundValue, name, raw, err)
		}
		switch name {
		case BoundMinTradeAmount:
			return v.SetMinTradeAmount(ctx, caller, amount)
		case BoundMaxTradeAmount:
			return v.SetMaxTradeAmount(ctx, caller, amount)
		case BoundFeePriceCeiling:
			return v.SetFeePriceCeiling(ctx, caller, amount)
		default:
			return v.SetProfitThreshold(ctx, caller, amount)
		}
	case BoundTradePercent, BoundSlippageTolerance, BoundGasLimitCeiling:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s integer %q: %w", ErrInvalidBoundValue, name, raw, err)
		}
		switch name {
		case BoundTradePercent:
			return v.SetTradePercent(ctx, caller, n)
		case BoundSlippageTolerance:
			return v.SetSlippageTolerance(ctx, caller, n)
		default:
			return v.SetGasLimitCeiling(ctx, caller, n)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBound, name)
	}
}

func (v *Vault) Bounds() RiskBounds {
	return v.current().bounds.Copy()
}

// SetAllowedAsset sets or clears one allow-list membership flag.
func (v *Vault) SetAllowedAsset(ctx context.Context, caller, asset common.Address, allowed bool) error {
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		st.setAllowed(asset, allowed)
		return []Event{assetAllowedEvent(asset, allowed)}, nil
	})
}

func (v *Vault) IsAllowed(asset common.Address) bool {
	return v.current().isAllowed(asset)
}

// AllowedAssets lists allow-listed assets in ascending address order.
func (v *Vault) AllowedAssets() []common.Address {
	return append([]common.Address(nil), v.current().allowedIndex...)
}

// SetSweepDestination changes where Sweep sends funds. The zero address is
// refused; until set, sweeps go to the controller.
func (v *Vault) SetSweepDestination(ctx context.Context, caller, destination common.Address) error {
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		if destination == (common.Address{}) {
			return nil, v.reject("invalid_destination", ErrInvalidDestination)
		}
		st.sweepTo = destination
		return []Event{sweepDestinationSetEvent(destination)}, nil
	})
}

func (v *Vault) SweepDestination() common.Address {
	return v.current().sweepDestination()
}
