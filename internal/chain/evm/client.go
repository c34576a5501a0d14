// Package evm is the on-chain backend: ERC-20 custody and a Uniswap V3 style
// router, driven through go-ethereum with EIP-1559 transactions signed by the
// vault wallet.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/manager"
	"github.com/GoPolymarket/tradevault/internal/pkg/logger"
	"github.com/GoPolymarket/tradevault/internal/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
)

// Backend is the subset of ethclient.Client used by Client.
type Backend interface {
	manager.NonceSource
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Options struct {
	ChainID *big.Int
	Router  common.Address
	Quoter  common.Address
	// DeadlineGrace is added to the swap deadline so that a transaction
	// mined a few blocks later is still accepted by the router.
	DeadlineGrace time.Duration
	PollInterval  time.Duration
}

// Client implements chain.Assets and chain.Venue against a live node.
type Client struct {
	backend Backend
	wallet  *signer.Wallet
	nonces  *manager.NonceManager
	opts    Options
}

var (
	_ chain.Assets = (*Client)(nil)
	_ chain.Venue  = (*Client)(nil)
)

func NewClient(backend Backend, wallet *signer.Wallet, opts Options) (*Client, error) {
	if backend == nil || wallet == nil {
		return nil, fmt.Errorf("evm: backend and wallet are required")
	}
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("evm: chain id is required")
	}
	if opts.Router == (common.Address{}) || opts.Quoter == (common.Address{}) {
		return nil, fmt.Errorf("evm: router and quoter addresses are required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.DeadlineGrace < 0 {
		opts.DeadlineGrace = 0
	}
	return &Client{
		backend: backend,
		wallet:  wallet,
		nonces:  manager.NewNonceManager(backend),
		opts:    opts,
	}, nil
}

// Dial connects to rpcURL and builds a Client on top of it.
func Dial(ctx context.Context, rpcURL string, wallet *signer.Wallet, opts Options) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to eth client: %w", err)
	}
	if opts.ChainID == nil {
		id, err := eth.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chain id: %w", err)
		}
		opts.ChainID = id
	}
	return NewClient(eth, wallet, opts)
}

func (c *Client) Address() common.Address { return c.opts.Router }

// Caller exposes read-only contract calls on the underlying node.
func (c *Client) Caller() ethereum.ContractCaller { return c.backend }

func (c *Client) BalanceOf(ctx context.Context, asset, holder common.Address) (*uint256.Int, error) {
	if chain.IsNative(asset) {
		bal, err := c.backend.BalanceAt(ctx, holder, nil)
		if err != nil {
			return nil, err
		}
		return toUint256(bal)
	}
	data, err := erc20ABI.Pack("balanceOf", holder)
	if err != nil {
		return nil, err
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	var bal *big.Int
	if err := erc20ABI.UnpackIntoInterface(&bal, "balanceOf", raw); err != nil {
		return nil, fmt.Errorf("balanceOf decode failed: %w", err)
	}
	return toUint256(bal)
}

func (c *Client) Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int, opts chain.TxOptions) error {
	if chain.IsNative(asset) {
		_, err := c.send(ctx, to, nil, amount.ToBig(), opts)
		return err
	}
	data, err := erc20ABI.Pack("transfer", to, amount.ToBig())
	if err != nil {
		return err
	}
	_, err = c.send(ctx, asset, data, nil, opts)
	return err
}

func (c *Client) Approve(ctx context.Context, asset, spender common.Address, amount *uint256.Int, opts chain.TxOptions) error {
	if chain.IsNative(asset) {
		return nil
	}
	data, err := erc20ABI.Pack("approve", spender, amount.ToBig())
	if err != nil {
		return err
	}
	_, err = c.send(ctx, asset, data, nil, opts)
	return err
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// ExactInputSingle simulates the swap with eth_call to learn amountOut, then
// broadcasts it and waits for a successful receipt.
func (c *Client) ExactInputSingle(ctx context.Context, p chain.ExactInputSingleParams, opts chain.TxOptions) (*uint256.Int, error) {
	deadline := p.Deadline.Add(c.opts.DeadlineGrace).Unix()
	data, err := routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           p.TokenIn,
		TokenOut:          p.TokenOut,
		Fee:               new(big.Int).SetUint64(uint64(p.Fee)),
		Recipient:         p.Recipient,
		Deadline:          big.NewInt(deadline),
		AmountIn:          bigOrZero(p.AmountIn),
		AmountOutMinimum:  bigOrZero(p.AmountOutMinimum),
		SqrtPriceLimitX96: bigOrZero(p.SqrtPriceLimitX96),
	})
	if err != nil {
		return nil, err
	}
	router := c.opts.Router
	var value *big.Int
	if chain.IsNative(p.TokenIn) {
		value = bigOrZero(p.AmountIn)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From:  c.wallet.Address(),
		To:    &router,
		Data:  data,
		Value: value,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("swap simulation failed: %w", err)
	}
	out, err := routerABI.Unpack("exactInputSingle", raw)
	if err != nil || len(out) == 0 {
		return nil, fmt.Errorf("swap simulation decode failed: %v", err)
	}
	amountOut, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("swap simulation returned %T", out[0])
	}
	if _, err := c.send(ctx, router, data, value, opts); err != nil {
		return nil, err
	}
	return toUint256(amountOut)
}

func (c *Client) QuoteExactInputSingle(ctx context.Context, p chain.QuoteParams) (*uint256.Int, error) {
	data, err := quoterABI.Pack("quoteExactInputSingle",
		p.TokenIn, p.TokenOut, new(big.Int).SetUint64(uint64(p.Fee)),
		bigOrZero(p.AmountIn), bigOrZero(p.SqrtPriceLimitX96))
	if err != nil {
		return nil, err
	}
	quoter := c.opts.Quoter
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("quote call failed: %w", err)
	}
	var amountOut *big.Int
	if err := quoterABI.UnpackIntoInterface(&amountOut, "quoteExactInputSingle", raw); err != nil {
		return nil, fmt.Errorf("quote decode failed: %w", err)
	}
	return toUint256(amountOut)
}

// send builds, signs and broadcasts a dynamic-fee transaction and waits for
// it to be mined. The fee cap and gas limit never exceed the ceilings in opts.
func (c *Client) send(ctx context.Context, to common.Address, data []byte, value *big.Int, opts chain.TxOptions) (*types.Receipt, error) {
	from := c.wallet.Address()
	if value == nil {
		value = new(big.Int)
	}

	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch head: %w", err)
	}
	baseFee := new(big.Int)
	if head.BaseFee != nil {
		baseFee.Set(head.BaseFee)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	if opts.MaxFeePerGas != nil && !opts.MaxFeePerGas.IsZero() {
		ceiling := opts.MaxFeePerGas.ToBig()
		if new(big.Int).Add(baseFee, tip).Cmp(ceiling) > 0 {
			return nil, fmt.Errorf("%w: base %s + tip %s > %s", chain.ErrFeeAboveCeiling, baseFee, tip, ceiling)
		}
		if feeCap.Cmp(ceiling) > 0 {
			feeCap = ceiling
		}
	}

	estimate, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data, Value: value})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas := estimate + estimate/5
	if opts.GasLimit > 0 {
		if estimate > opts.GasLimit {
			return nil, fmt.Errorf("%w: estimate %d > %d", chain.ErrGasAboveCeiling, estimate, opts.GasLimit)
		}
		if gas > opts.GasLimit {
			gas = opts.GasLimit
		}
	}

	nonce, err := c.nonces.Next(ctx, from)
	if err != nil {
		return nil, err
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.opts.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := c.wallet.SignTx(tx, c.opts.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "nonce too low") {
			_ = c.nonces.Reset(ctx, from)
		}
		return nil, fmt.Errorf("failed to send tx: %w", err)
	}
	c.nonces.Increment(from)
	logger.Info("tx sent", "hash", signed.Hash().Hex(), "to", to.Hex(), "nonce", nonce, "gas", gas)

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("tx %s reverted", signed.Hash().Hex())
	}
	return receipt, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			logger.Warn("receipt lookup failed", "hash", hash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", v)
	}
	return out, nil
}

func bigOrZero(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
