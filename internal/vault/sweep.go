package vault

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/tradevault/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Sweep moves the whole on-chain balance of asset to SweepDestination and
// zeroes its recorded balance. It only runs when the controller calls it; no
// other operation sweeps. A zero balance is a no-op without a notification.
func (v *Vault) Sweep(ctx context.Context, caller, asset common.Address) (*uint256.Int, error) {
	swept := new(uint256.Int)
	err := v.guarded(ctx, caller, func(ctx context.Context, st *state) ([]Event, error) {
		balance, err := v.onchainBalance(ctx, asset)
		if err != nil {
			return nil, err
		}
		if balance.IsZero() {
			return nil, nil
		}
		destination := st.sweepDestination()
		if err := v.assets.Transfer(ctx, asset, destination, balance, v.txOptions(st)); err != nil {
			return nil, fmt.Errorf("%w: sweep to %s: %w", ErrTransferFailed, destination.Hex(), err)
		}
		st.setBalance(asset, nil)
		swept = balance
		v.log.Info("funds swept", "asset", describeAsset(asset), "amount", balance.Dec(), "destination", destination.Hex())
		return []Event{fundsSweptEvent(asset, destination, balance)}, nil
	})
	if err != nil {
		return nil, err
	}
	if !swept.IsZero() {
		observeOutflow(asset, "sweep", swept)
	}
	return swept, nil
}

func observeOutflow(asset common.Address, kind string, amount *uint256.Int) {
	metrics.CustodyVolume.WithLabelValues(describeAsset(asset), kind).Add(decimal.NewFromBigInt(amount.ToBig(), 0).InexactFloat64())
}
