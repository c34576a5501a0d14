package vault

import (
	"context"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SetTradeConfig replaces the live trade config wholesale.
func (v *Vault) SetTradeConfig(ctx context.Context, caller common.Address, cfg TradeConfig) error {
	next := cfg.Copy()
	next.InputAmount = intOrZero(next.InputAmount)
	next.MinOutputAmount = intOrZero(next.MinOutputAmount)
	next.Deadline = next.Deadline.UTC()
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		st.trade = next
		return []Event{tradeConfigSetEvent(next)}, nil
	})
}

// TradeConfig returns the live config, or false when none has been set.
func (v *Vault) TradeConfig() (TradeConfig, bool) {
	st := v.current()
	if st.trade == nil {
		return TradeConfig{}, false
	}
	return *st.trade.Copy(), true
}

// UpdateBalance overwrites the recorded balance of asset.
func (v *Vault) UpdateBalance(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error {
	amount = intOrZero(amount).Clone()
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		st.setBalance(asset, amount)
		return []Event{balanceUpdatedEvent(asset, amount, "controller")}, nil
	})
}

// SyncBalance sets the recorded balance of asset to the on-chain balance.
func (v *Vault) SyncBalance(ctx context.Context, caller, asset common.Address) (*uint256.Int, error) {
	var synced *uint256.Int
	err := v.guarded(ctx, caller, func(ctx context.Context, st *state) ([]Event, error) {
		balance, err := v.onchainBalance(ctx, asset)
		if err != nil {
			return nil, err
		}
		st.setBalance(asset, balance)
		synced = balance
		return []Event{balanceUpdatedEvent(asset, balance, "chain")}, nil
	})
	if err != nil {
		return nil, err
	}
	return synced, nil
}

// ReceiveNative books an incoming native transfer. It is not controller
// gated and never moves funds.
func (v *Vault) ReceiveNative(ctx context.Context, from common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	amount = amount.Clone()
	ctx, release, err := v.enter(ctx)
	if err != nil {
		return err
	}
	defer release()
	return v.apply(ctx, func(_ context.Context, st *state) ([]Event, error) {
		if err := st.credit(chain.NativeAsset, amount); err != nil {
			return nil, err
		}
		return []Event{nativeReceivedEvent(from, amount)}, nil
	})
}

func (v *Vault) RecordedBalance(asset common.Address) *uint256.Int {
	return v.current().balance(asset)
}

// Balances returns a copy of every non-zero recorded balance.
func (v *Vault) Balances() map[common.Address]*uint256.Int {
	st := v.current()
	out := make(map[common.Address]*uint256.Int, len(st.balances))
	for asset, amount := range st.balances {
		out[asset] = amount.Clone()
	}
	return out
}

// OnchainBalance reads the live balance held by the vault's account.
func (v *Vault) OnchainBalance(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	return v.onchainBalance(ctx, asset)
}

func describeAsset(asset common.Address) string {
	if chain.IsNative(asset) {
		return "native"
	}
	return asset.Hex()
}
