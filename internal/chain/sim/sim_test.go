package sim

import (
	"context"
	"testing"
	"time"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	pool  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	weth  = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

func TestLedger_SendMovesBalance(t *testing.T) {
	l := NewLedger()
	l.Mint(usdc, alice, uint256.NewInt(100))

	require.NoError(t, l.Send(context.Background(), usdc, alice, bob, uint256.NewInt(30)))
	assert.Equal(t, uint64(70), l.BalanceOf(usdc, alice).Uint64())
	assert.Equal(t, uint64(30), l.BalanceOf(usdc, bob).Uint64())

	err := l.Send(context.Background(), usdc, alice, bob, uint256.NewInt(71))
	assert.Error(t, err)
	assert.Equal(t, uint64(70), l.BalanceOf(usdc, alice).Uint64())
}

func TestLedger_BalanceOfReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Mint(usdc, alice, uint256.NewInt(10))

	got := l.BalanceOf(usdc, alice)
	got.SetUint64(999)
	assert.Equal(t, uint64(10), l.BalanceOf(usdc, alice).Uint64())
}

func TestLedger_NativeReceiverNotified(t *testing.T) {
	l := NewLedger()
	l.Mint(chain.NativeAsset, alice, uint256.NewInt(50))

	var gotFrom common.Address
	var gotAmount uint64
	l.OnNativeReceived(bob, func(_ context.Context, from common.Address, amount *uint256.Int) error {
		gotFrom = from
		gotAmount = amount.Uint64()
		// The ledger lock is released before the callback runs.
		_ = l.BalanceOf(chain.NativeAsset, bob)
		return nil
	})

	require.NoError(t, l.Send(context.Background(), chain.NativeAsset, alice, bob, uint256.NewInt(20)))
	assert.Equal(t, alice, gotFrom)
	assert.Equal(t, uint64(20), gotAmount)

	gotAmount = 0
	l.Mint(usdc, alice, uint256.NewInt(5))
	require.NoError(t, l.Send(context.Background(), usdc, alice, bob, uint256.NewInt(5)))
	assert.Zero(t, gotAmount, "token transfers do not trigger the native receiver")

	l.OnNativeReceived(bob, nil)
	require.NoError(t, l.Send(context.Background(), chain.NativeAsset, alice, bob, uint256.NewInt(1)))
	assert.Zero(t, gotAmount)
}

func TestAccount_ImplementsAssets(t *testing.T) {
	l := NewLedger()
	l.Mint(usdc, alice, uint256.NewInt(100))
	acct := l.Account(alice)
	ctx := context.Background()

	bal, err := acct.BalanceOf(ctx, usdc, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal.Uint64())

	require.NoError(t, acct.Transfer(ctx, usdc, bob, uint256.NewInt(40), chain.TxOptions{}))
	assert.Equal(t, uint64(40), l.BalanceOf(usdc, bob).Uint64())

	require.NoError(t, acct.Approve(ctx, usdc, pool, uint256.NewInt(25), chain.TxOptions{}))
	assert.Equal(t, uint64(25), l.Allowance(usdc, alice, pool).Uint64())

	require.NoError(t, acct.Approve(ctx, chain.NativeAsset, pool, uint256.NewInt(25), chain.TxOptions{}))
	assert.True(t, l.Allowance(chain.NativeAsset, alice, pool).IsZero())
	assert.Equal(t, alice, acct.Address())
}

func TestFixedRate(t *testing.T) {
	price := FixedRate(2, 1)

	out, err := price(usdc, weth, 0, uint256.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), out.Uint64())

	out, err = price(usdc, weth, 3000, uint256.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1994), out.Uint64())

	_, err = FixedRate(1, 0)(usdc, weth, 0, uint256.NewInt(1))
	assert.Error(t, err)
	_, err = price(usdc, weth, 1_000_000, uint256.NewInt(1))
	assert.Error(t, err)
}

func newPool(t *testing.T, rate Pricer) (*Ledger, *Venue) {
	t.Helper()
	l := NewLedger()
	l.Mint(usdc, alice, uint256.NewInt(1000))
	l.Mint(weth, pool, uint256.NewInt(5000))
	return l, NewVenue(l, pool, rate)
}

func TestVenue_ExactInputSingle(t *testing.T) {
	l, v := newPool(t, FixedRate(3, 1))
	ctx := context.Background()
	require.NoError(t, l.Account(alice).Approve(ctx, usdc, pool, uint256.NewInt(500), chain.TxOptions{}))

	out, err := v.ExactInputSingle(ctx, chain.ExactInputSingleParams{
		TokenIn:          usdc,
		TokenOut:         weth,
		Recipient:        alice,
		Deadline:         time.Now(),
		AmountIn:         uint256.NewInt(400),
		AmountOutMinimum: uint256.NewInt(1200),
	}, chain.TxOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), out.Uint64())

	assert.Equal(t, uint64(600), l.BalanceOf(usdc, alice).Uint64())
	assert.Equal(t, uint64(1200), l.BalanceOf(weth, alice).Uint64())
	assert.Equal(t, uint64(400), l.BalanceOf(usdc, pool).Uint64())
	assert.Equal(t, uint64(3800), l.BalanceOf(weth, pool).Uint64())
	assert.Equal(t, uint64(100), l.Allowance(usdc, alice, pool).Uint64())
	assert.Equal(t, pool, v.Address())
}

func TestVenue_ExactInputSingleRejections(t *testing.T) {
	ctx := context.Background()
	params := chain.ExactInputSingleParams{
		TokenIn:   usdc,
		TokenOut:  weth,
		Recipient: alice,
		AmountIn:  uint256.NewInt(100),
	}

	t.Run("zero amount", func(t *testing.T) {
		_, v := newPool(t, FixedRate(1, 1))
		p := params
		p.AmountIn = new(uint256.Int)
		_, err := v.ExactInputSingle(ctx, p, chain.TxOptions{})
		assert.Error(t, err)
	})

	t.Run("below minimum", func(t *testing.T) {
		l, v := newPool(t, FixedRate(1, 1))
		require.NoError(t, l.Account(alice).Approve(ctx, usdc, pool, uint256.NewInt(100), chain.TxOptions{}))
		p := params
		p.AmountOutMinimum = uint256.NewInt(101)
		_, err := v.ExactInputSingle(ctx, p, chain.TxOptions{})
		assert.Error(t, err)
		assert.Equal(t, uint64(1000), l.BalanceOf(usdc, alice).Uint64())
	})

	t.Run("no allowance", func(t *testing.T) {
		l, v := newPool(t, FixedRate(1, 1))
		_, err := v.ExactInputSingle(ctx, params, chain.TxOptions{})
		assert.Error(t, err)
		assert.Equal(t, uint64(1000), l.BalanceOf(usdc, alice).Uint64())
	})

	t.Run("thin inventory", func(t *testing.T) {
		l, v := newPool(t, FixedRate(100, 1))
		require.NoError(t, l.Account(alice).Approve(ctx, usdc, pool, uint256.NewInt(100), chain.TxOptions{}))
		_, err := v.ExactInputSingle(ctx, params, chain.TxOptions{})
		assert.Error(t, err)
		assert.Equal(t, uint64(1000), l.BalanceOf(usdc, alice).Uint64())
		assert.Equal(t, uint64(5000), l.BalanceOf(weth, pool).Uint64())
	})
}

func TestVenue_NativeInputNeedsNoAllowance(t *testing.T) {
	l, v := newPool(t, FixedRate(1, 1))
	l.Mint(chain.NativeAsset, alice, uint256.NewInt(10))

	out, err := v.ExactInputSingle(context.Background(), chain.ExactInputSingleParams{
		TokenIn:   chain.NativeAsset,
		TokenOut:  weth,
		Recipient: alice,
		AmountIn:  uint256.NewInt(10),
	}, chain.TxOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), out.Uint64())
	assert.True(t, l.BalanceOf(chain.NativeAsset, alice).IsZero())
}

func TestVenue_Quote(t *testing.T) {
	_, v := newPool(t, FixedRate(5, 2))
	out, err := v.QuoteExactInputSingle(context.Background(), chain.QuoteParams{
		TokenIn:  usdc,
		TokenOut: weth,
		AmountIn: uint256.NewInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(25), out.Uint64())

	out, err = v.QuoteExactInputSingle(context.Background(), chain.QuoteParams{TokenIn: usdc, TokenOut: weth})
	require.NoError(t, err)
	assert.True(t, out.IsZero())
}
