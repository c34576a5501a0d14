// Package chain describes the two external collaborators of the vault: the
// swap venue and the per-asset transfer interface.
package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeAsset is the zero address, used for the chain's native coin.
var NativeAsset = common.Address{}

var (
	ErrFeeAboveCeiling = errors.New("fee price above ceiling")
	ErrGasAboveCeiling = errors.New("gas limit above ceiling")
)

func IsNative(asset common.Address) bool {
	return asset == NativeAsset
}

// TxOptions carries the per-transaction ceilings configured on the vault.
// Zero values mean "no ceiling".
type TxOptions struct {
	MaxFeePerGas *uint256.Int
	GasLimit     uint64
}

type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	Recipient         common.Address
	Deadline          time.Time
	AmountIn          *uint256.Int
	AmountOutMinimum  *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
}

type QuoteParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	AmountIn          *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
}

// Venue is the price-setting counterparty. Its pricing is opaque to the vault.
type Venue interface {
	Address() common.Address
	ExactInputSingle(ctx context.Context, params ExactInputSingleParams, opts TxOptions) (*uint256.Int, error)
	QuoteExactInputSingle(ctx context.Context, params QuoteParams) (*uint256.Int, error)
}

// Assets acts on behalf of the vault's own account.
type Assets interface {
	BalanceOf(ctx context.Context, asset, holder common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int, opts TxOptions) error
	Approve(ctx context.Context, asset, spender common.Address, amount *uint256.Int, opts TxOptions) error
}
