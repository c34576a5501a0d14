package sim

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Pricer returns the output amount for a swap of amountIn.
type Pricer func(tokenIn, tokenOut common.Address, fee uint32, amountIn *uint256.Int) (*uint256.Int, error)

var feeDenominator = uint256.NewInt(1_000_000)

// FixedRate prices every pair at num/den, less the pool fee in hundredths of
// a basis point (3000 = 0.3%).
func FixedRate(num, den uint64) Pricer {
	return func(_, _ common.Address, fee uint32, amountIn *uint256.Int) (*uint256.Int, error) {
		if den == 0 {
			return nil, fmt.Errorf("sim: zero rate denominator")
		}
		if uint64(fee) >= feeDenominator.Uint64() {
			return nil, fmt.Errorf("sim: fee tier %d too large", fee)
		}
		gross, overflow := new(uint256.Int).MulDivOverflow(amountIn, uint256.NewInt(num), uint256.NewInt(den))
		if overflow {
			return nil, fmt.Errorf("sim: price overflow")
		}
		net, _ := new(uint256.Int).MulDivOverflow(gross, uint256.NewInt(feeDenominator.Uint64()-uint64(fee)), feeDenominator)
		return net, nil
	}
}

// Venue swaps against its own inventory held in the ledger. The payer is the
// swap recipient, which is how the vault calls it.
type Venue struct {
	ledger *Ledger
	addr   common.Address
	pricer Pricer
}

var _ chain.Venue = (*Venue)(nil)

func NewVenue(ledger *Ledger, addr common.Address, pricer Pricer) *Venue {
	if pricer == nil {
		pricer = FixedRate(1, 1)
	}
	return &Venue{ledger: ledger, addr: addr, pricer: pricer}
}

func (v *Venue) Address() common.Address { return v.addr }

func (v *Venue) ExactInputSingle(_ context.Context, p chain.ExactInputSingleParams, _ chain.TxOptions) (*uint256.Int, error) {
	if p.AmountIn == nil || p.AmountIn.IsZero() {
		return nil, fmt.Errorf("sim: zero amount in")
	}
	amountOut, err := v.pricer(p.TokenIn, p.TokenOut, p.Fee, p.AmountIn)
	if err != nil {
		return nil, err
	}
	if p.AmountOutMinimum != nil && amountOut.Lt(p.AmountOutMinimum) {
		return nil, fmt.Errorf("sim: too little received: %s < %s", amountOut.Dec(), p.AmountOutMinimum.Dec())
	}

	l := v.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if inventory := l.get(p.TokenOut, v.addr); inventory.Lt(amountOut) {
		return nil, fmt.Errorf("sim: venue inventory %s below %s", inventory.Dec(), amountOut.Dec())
	}
	if err := l.pullLocked(p.TokenIn, p.Recipient, v.addr, p.AmountIn); err != nil {
		return nil, err
	}
	if err := l.move(p.TokenOut, v.addr, p.Recipient, amountOut); err != nil {
		return nil, err
	}
	return amountOut, nil
}

func (v *Venue) QuoteExactInputSingle(_ context.Context, p chain.QuoteParams) (*uint256.Int, error) {
	if p.AmountIn == nil {
		return new(uint256.Int), nil
	}
	return v.pricer(p.TokenIn, p.TokenOut, p.Fee, p.AmountIn)
}
