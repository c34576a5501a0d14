package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Withdraw sends amount of asset to the calling controller and debits the
// recorded balance by the same amount.
func (v *Vault) Withdraw(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return v.reject("invalid_amount", ErrInvalidAmount)
	}
	amount = amount.Clone()
	err := v.guarded(ctx, caller, func(ctx context.Context, st *state) ([]Event, error) {
		if err := st.debit(asset, amount); err != nil {
			return nil, v.reject("recorded_balance", err)
		}
		if err := v.assets.Transfer(ctx, asset, caller, amount, v.txOptions(st)); err != nil {
			return nil, fmt.Errorf("%w: withdraw: %w", ErrTransferFailed, err)
		}
		v.log.Info("withdrawn", "asset", describeAsset(asset), "amount", amount.Dec(), "to", caller.Hex())
		return []Event{withdrawnEvent(asset, caller, amount)}, nil
	})
	if err == nil {
		observeOutflow(asset, "withdraw", amount)
	}
	return err
}

// EmergencyWithdraw sends the whole on-chain balance of asset to the calling
// controller and zeroes the recorded balance. It works while stopped.
func (v *Vault) EmergencyWithdraw(ctx context.Context, caller, asset common.Address) (*uint256.Int, error) {
	var sent *uint256.Int
	err := v.guarded(ctx, caller, func(ctx context.Context, st *state) ([]Event, error) {
		balance, err := v.onchainBalance(ctx, asset)
		if err != nil {
			return nil, err
		}
		if !balance.IsZero() {
			if err := v.assets.Transfer(ctx, asset, caller, balance, v.txOptions(st)); err != nil {
				return nil, fmt.Errorf("%w: emergency withdraw: %w", ErrTransferFailed, err)
			}
		}
		st.setBalance(asset, nil)
		sent = balance
		v.log.Warn("emergency withdrawal", "asset", describeAsset(asset), "amount", balance.Dec(), "to", caller.Hex())
		return []Event{emergencyWithdrawnEvent(asset, caller, balance)}, nil
	})
	if err != nil {
		return nil, err
	}
	if !sent.IsZero() {
		observeOutflow(asset, "emergency", sent)
	}
	return sent, nil
}
