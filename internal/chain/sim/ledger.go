// Package sim is an in-memory paper chain: a multi-asset balance ledger and a
// constant-rate swap venue. It backs local runs and tests.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeReceiver is invoked after a native transfer credits a registered holder.
type NativeReceiver func(ctx context.Context, from common.Address, amount *uint256.Int) error

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type Ledger struct {
	mu         sync.Mutex
	balances   map[common.Address]map[common.Address]*uint256.Int
	allowances map[common.Address]map[allowanceKey]*uint256.Int
	receivers  map[common.Address]NativeReceiver
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[allowanceKey]*uint256.Int),
		receivers:  make(map[common.Address]NativeReceiver),
	}
}

// Mint credits holder out of thin air. Used to fund accounts.
func (l *Ledger) Mint(asset, holder common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(asset, holder, amount)
}

func (l *Ledger) BalanceOf(asset, holder common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(asset, holder)
}

func (l *Ledger) Allowance(asset, owner, spender common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if byKey, ok := l.allowances[asset]; ok {
		if amount, ok := byKey[allowanceKey{owner, spender}]; ok {
			return amount.Clone()
		}
	}
	return new(uint256.Int)
}

// OnNativeReceived registers fn to be called whenever holder receives native coin.
func (l *Ledger) OnNativeReceived(holder common.Address, fn NativeReceiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fn == nil {
		delete(l.receivers, holder)
		return
	}
	l.receivers[holder] = fn
}

// Send moves amount from one holder to another, notifying native receivers.
func (l *Ledger) Send(ctx context.Context, asset, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	if err := l.move(asset, from, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	receiver := l.receivers[to]
	l.mu.Unlock()

	if chain.IsNative(asset) && receiver != nil {
		return receiver(ctx, from, amount.Clone())
	}
	return nil
}

// Account returns a chain.Assets acting on behalf of holder.
func (l *Ledger) Account(holder common.Address) *Account {
	return &Account{ledger: l, holder: holder}
}

func (l *Ledger) approve(asset, owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byKey, ok := l.allowances[asset]
	if !ok {
		byKey = make(map[allowanceKey]*uint256.Int)
		l.allowances[asset] = byKey
	}
	byKey[allowanceKey{owner, spender}] = amount.Clone()
}

// pullLocked moves amount from owner to spender against an allowance.
// Callers hold l.mu.
func (l *Ledger) pullLocked(asset, owner, spender common.Address, amount *uint256.Int) error {
	if !chain.IsNative(asset) {
		key := allowanceKey{owner, spender}
		allowed := new(uint256.Int)
		if byKey, ok := l.allowances[asset]; ok && byKey[key] != nil {
			allowed = byKey[key]
		}
		if allowed.Lt(amount) {
			return fmt.Errorf("sim: allowance %s below %s", allowed.Dec(), amount.Dec())
		}
		if err := l.move(asset, owner, spender, amount); err != nil {
			return err
		}
		l.allowances[asset][key] = new(uint256.Int).Sub(allowed, amount)
		return nil
	}
	return l.move(asset, owner, spender, amount)
}

func (l *Ledger) get(asset, holder common.Address) *uint256.Int {
	if byHolder, ok := l.balances[asset]; ok {
		if amount, ok := byHolder[holder]; ok {
			return amount.Clone()
		}
	}
	return new(uint256.Int)
}

func (l *Ledger) add(asset, holder common.Address, amount *uint256.Int) {
	l.set(asset, holder, new(uint256.Int).Add(l.get(asset, holder), amount))
}

func (l *Ledger) set(asset, holder common.Address, amount *uint256.Int) {
	byHolder, ok := l.balances[asset]
	if !ok {
		byHolder = make(map[common.Address]*uint256.Int)
		l.balances[asset] = byHolder
	}
	byHolder[holder] = amount
}

func (l *Ledger) move(asset, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("sim: nil amount")
	}
	balance := l.get(asset, from)
	if balance.Lt(amount) {
		return fmt.Errorf("sim: %s holds %s of %s, needs %s", from.Hex(), balance.Dec(), asset.Hex(), amount.Dec())
	}
	l.set(asset, from, new(uint256.Int).Sub(balance, amount))
	l.add(asset, to, amount)
	return nil
}

// Account implements chain.Assets for a single holder.
type Account struct {
	ledger *Ledger
	holder common.Address
}

var _ chain.Assets = (*Account)(nil)

func (a *Account) Address() common.Address { return a.holder }

func (a *Account) BalanceOf(_ context.Context, asset, holder common.Address) (*uint256.Int, error) {
	return a.ledger.BalanceOf(asset, holder), nil
}

func (a *Account) Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int, _ chain.TxOptions) error {
	return a.ledger.Send(ctx, asset, a.holder, to, amount)
}

func (a *Account) Approve(_ context.Context, asset, spender common.Address, amount *uint256.Int, _ chain.TxOptions) error {
	if chain.IsNative(asset) {
		return nil
	}
	a.ledger.approve(asset, a.holder, spender, amount)
	return nil
}
