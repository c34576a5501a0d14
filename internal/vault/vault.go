// Package vault implements the custody and trade-execution core: a single
// controller, an allow-list of tradable assets, one pending trade config, a
// set of risk bounds and the recorded per-asset balances.
//
// Every mutating operation runs on a clone of the state. The clone replaces
// the live state only after it has been persisted, so a failed operation
// never leaves a partial change behind.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/pkg/logger"
	"github.com/GoPolymarket/tradevault/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateStore persists committed snapshots.
type StateStore interface {
	Save(ctx context.Context, snap *Snapshot) error
}

type Config struct {
	// Self is the account holding the vault's assets.
	Self       common.Address
	Controller common.Address
	Bounds     RiskBounds
}

type Option func(*Vault)

func WithStore(store StateStore) Option {
	return func(v *Vault) { v.store = store }
}

func WithEmitter(emitter Emitter) Option {
	return func(v *Vault) {
		if emitter != nil {
			v.emitter = emitter
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(v *Vault) {
		if clock != nil {
			v.clock = clock
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.log = l
		}
	}
}

type Vault struct {
	mu   sync.Mutex
	busy atomic.Bool

	stateMu sync.RWMutex
	st      *state

	tradeMu   sync.RWMutex
	lastTrade *TradeResult

	self    common.Address
	assets  chain.Assets
	venue   chain.Venue
	store   StateStore
	emitter Emitter
	clock   func() time.Time
	log     *slog.Logger
}

// New creates a vault. The controller defaults to Self when unset.
func New(cfg Config, assets chain.Assets, venue chain.Venue, opts ...Option) (*Vault, error) {
	if assets == nil || venue == nil {
		return nil, fmt.Errorf("vault: assets and venue are required")
	}
	if cfg.Self == (common.Address{}) {
		return nil, fmt.Errorf("vault: self address is required")
	}
	controller := cfg.Controller
	if controller == (common.Address{}) {
		controller = cfg.Self
	}
	bounds := cfg.Bounds
	if bounds.MinTradeAmount == nil && bounds.MaxTradeAmount == nil {
		bounds = DefaultBounds()
	}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	v := &Vault{
		st:      newState(controller, bounds),
		self:    cfg.Self,
		assets:  assets,
		venue:   venue,
		emitter: noopEmitter{},
		clock:   time.Now,
		log:     logger.With("component", "vault"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Restore replaces the live state with a previously persisted snapshot.
// It is meant to run once at startup, before any operation.
func (v *Vault) Restore(snap *Snapshot) error {
	st, err := stateFromSnapshot(snap)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stateMu.Lock()
	v.st = st
	v.stateMu.Unlock()
	v.log.Info("state restored", "controller", st.controller.Hex(), "seq", st.seq)
	return nil
}

func (v *Vault) Self() common.Address { return v.self }

func (v *Vault) current() *state {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.st
}

type mutation func(ctx context.Context, st *state) ([]Event, error)

// guarded runs fn under the reentry lock after checking the access guard.
func (v *Vault) guarded(ctx context.Context, caller common.Address, fn mutation) error {
	ctx, release, err := v.enter(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := v.authorize(v.current(), caller); err != nil {
		return err
	}
	return v.apply(ctx, fn)
}

// apply must be called with the reentry lock held.
func (v *Vault) apply(ctx context.Context, fn mutation) error {
	next := v.current().clone()
	events, err := fn(ctx, next)
	if err != nil {
		return err
	}
	return v.commit(ctx, next, events)
}

func (v *Vault) commit(ctx context.Context, next *state, events []Event) error {
	now := v.clock().UTC()
	for i := range events {
		next.seq++
		events[i].Seq = next.seq
		events[i].CreatedAt = now
	}
	if v.store != nil {
		if err := v.store.Save(ctx, next.snapshot()); err != nil {
			logger.LogError(ctx, err, "vault state persist failed")
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	v.stateMu.Lock()
	v.st = next
	v.stateMu.Unlock()

	for _, e := range events {
		metrics.EventsTotal.WithLabelValues(e.Type).Inc()
		v.emitter.Emit(e)
	}
	return nil
}

func (v *Vault) reject(reason string, err error) error {
	metrics.RiskRejects.WithLabelValues(reason).Inc()
	return err
}

func (v *Vault) txOptions(st *state) chain.TxOptions {
	return chain.TxOptions{
		MaxFeePerGas: cloneInt(st.bounds.FeePriceCeiling),
		GasLimit:     st.bounds.GasLimitCeiling,
	}
}

func (v *Vault) onchainBalance(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	balance, err := v.assets.BalanceOf(ctx, asset, v.self)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", asset.Hex(), err)
	}
	if balance == nil {
		return new(uint256.Int), nil
	}
	return balance, nil
}

// Start marks the vault as running. It moves no funds.
func (v *Vault) Start(ctx context.Context, caller common.Address) error {
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		st.running = true
		return []Event{startedEvent(caller)}, nil
	})
}

func (v *Vault) Stop(ctx context.Context, caller common.Address) error {
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		st.running = false
		return []Event{stoppedEvent(caller)}, nil
	})
}

// Status is a point-in-time summary for the read surface.
type Status struct {
	Self             common.Address
	Controller       common.Address
	Running          bool
	Lock             LockState
	SweepDestination common.Address
	Seq              uint64
}

func (v *Vault) Status() Status {
	st := v.current()
	return Status{
		Self:             v.self,
		Controller:       st.controller,
		Running:          st.running,
		Lock:             v.LockState(),
		SweepDestination: st.sweepDestination(),
		Seq:              st.seq,
	}
}

func (v *Vault) Controller() common.Address { return v.current().controller }

func (v *Vault) Running() bool { return v.current().running }

// Snapshot returns the serialisable form of the live state.
func (v *Vault) Snapshot() *Snapshot { return v.current().snapshot() }
