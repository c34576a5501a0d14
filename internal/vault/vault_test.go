package vault

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/chain/sim"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	selfAddr   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	controller = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	stranger   = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	usdc       = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	weth       = common.HexToAddress("0x00000000000000000000000000000000000000e5")

	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type memStore struct {
	mu    sync.Mutex
	saved []*Snapshot
	err   error
}

func (s *memStore) Save(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, snap)
	return nil
}

type fixture struct {
	vault  *Vault
	ledger *sim.Ledger
	events *eventRecorder
	store  *memStore
}

func newFixture(t *testing.T, assets func(chain.Assets) chain.Assets) *fixture {
	t.Helper()
	ledger := sim.NewLedger()
	ledger.Mint(usdc, selfAddr, uint256.NewInt(1_000_000))
	ledger.Mint(weth, poolAddr, uint256.NewInt(100_000_000))
	venue := sim.NewVenue(ledger, poolAddr, sim.FixedRate(2, 1))

	var acct chain.Assets = ledger.Account(selfAddr)
	if assets != nil {
		acct = assets(acct)
	}
	events := &eventRecorder{}
	store := &memStore{}
	v, err := New(Config{Self: selfAddr, Controller: controller}, acct, venue,
		WithStore(store),
		WithEmitter(events),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	return &fixture{vault: v, ledger: ledger, events: events, store: store}
}

func TestNew_Defaults(t *testing.T) {
	ledger := sim.NewLedger()
	venue := sim.NewVenue(ledger, poolAddr, nil)

	v, err := New(Config{Self: selfAddr}, ledger.Account(selfAddr), venue)
	require.NoError(t, err)
	assert.Equal(t, selfAddr, v.Controller(), "controller defaults to self")
	assert.False(t, v.Running())
	assert.Equal(t, DefaultBounds(), v.Bounds())
	assert.Equal(t, LockIdle, v.LockState())

	_, err = New(Config{}, ledger.Account(selfAddr), venue)
	assert.Error(t, err)
	_, err = New(Config{Self: selfAddr}, nil, venue)
	assert.Error(t, err)

	bad := DefaultBounds()
	bad.TradePercent = 101
	_, err = New(Config{Self: selfAddr, Bounds: bad}, ledger.Account(selfAddr), venue)
	assert.ErrorIs(t, err, ErrInvalidPercent)
}

func TestVault_MutatorsRejectStrangers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	v := f.vault
	one := uint256.NewInt(1)

	ops := map[string]func() error{
		"start":          func() error { return v.Start(ctx, stranger) },
		"stop":           func() error { return v.Stop(ctx, stranger) },
		"trade config":   func() error { return v.SetTradeConfig(ctx, stranger, TradeConfig{}) },
		"min trade":      func() error { return v.SetMinTradeAmount(ctx, stranger, one) },
		"max trade":      func() error { return v.SetMaxTradeAmount(ctx, stranger, one) },
		"trade percent":  func() error { return v.SetTradePercent(ctx, stranger, 10) },
		"slippage":       func() error { return v.SetSlippageTolerance(ctx, stranger, 10) },
		"fee ceiling":    func() error { return v.SetFeePriceCeiling(ctx, stranger, one) },
		"gas ceiling":    func() error { return v.SetGasLimitCeiling(ctx, stranger, 1) },
		"profit":         func() error { return v.SetProfitThreshold(ctx, stranger, one) },
		"allow":          func() error { return v.SetAllowedAsset(ctx, stranger, usdc, true) },
		"update balance": func() error { return v.UpdateBalance(ctx, stranger, usdc, one) },
		"controller":     func() error { return v.TransferController(ctx, stranger, stranger) },
		"sweep dest":     func() error { return v.SetSweepDestination(ctx, stranger, stranger) },
		"withdraw":       func() error { return v.Withdraw(ctx, stranger, usdc, one) },
		"execute":        func() error { _, err := v.ExecuteTrade(ctx, stranger); return err },
		"sync":           func() error { _, err := v.SyncBalance(ctx, stranger, usdc); return err },
		"sweep":          func() error { _, err := v.Sweep(ctx, stranger, usdc); return err },
		"emergency":      func() error { _, err := v.EmergencyWithdraw(ctx, stranger, usdc); return err },
		"bound by name":  func() error { return v.SetBound(ctx, stranger, BoundTradePercent, "10") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, op(), ErrUnauthorized)
		})
	}
	assert.Empty(t, f.events.types())
	assert.Empty(t, f.store.saved)
	assert.Equal(t, uint64(1_000_000), f.ledger.BalanceOf(usdc, selfAddr).Uint64())
}

func TestVault_StartStop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.vault.Start(ctx, controller))
	assert.True(t, f.vault.Running())
	require.NoError(t, f.vault.Stop(ctx, controller))
	assert.False(t, f.vault.Running())

	assert.Equal(t, []string{EventTypeStarted, EventTypeStopped}, f.events.types())
	assert.Equal(t, uint64(1_000_000), f.ledger.BalanceOf(usdc, selfAddr).Uint64(), "start moves no funds")
	assert.Len(t, f.store.saved, 2)
	assert.Equal(t, uint64(2), f.vault.Status().Seq)
}

func TestVault_EventSequence(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.vault.SetAllowedAsset(ctx, controller, usdc, true))
	require.NoError(t, f.vault.SetTradePercent(ctx, controller, 20))

	require.Len(t, f.events.events, 2)
	for i, e := range f.events.events {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.Equal(t, testNow, e.CreatedAt)
		assert.NotEmpty(t, e.ID)
	}
	assert.Equal(t, map[string]string{"name": BoundTradePercent, "value": "20"}, f.events.last().Attributes)
}

func TestVault_TransferController(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	next := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	assert.ErrorIs(t, f.vault.TransferController(ctx, controller, common.Address{}), ErrInvalidController)
	assert.Equal(t, controller, f.vault.Controller())

	require.NoError(t, f.vault.TransferController(ctx, controller, next))
	assert.Equal(t, next, f.vault.Controller())
	assert.ErrorIs(t, f.vault.Start(ctx, controller), ErrUnauthorized)
	require.NoError(t, f.vault.Start(ctx, next))

	e := f.events.events[0]
	assert.Equal(t, EventTypeControllerChanged, e.Type)
	assert.Equal(t, controller.Hex(), e.Attributes["previous"])
	assert.Equal(t, next.Hex(), e.Attributes["next"])
}

func TestVault_PersistFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.vault.UpdateBalance(ctx, controller, usdc, uint256.NewInt(500)))
	before := f.vault.Snapshot()

	f.store.err = errors.New("disk full")
	err := f.vault.UpdateBalance(ctx, controller, usdc, uint256.NewInt(900))
	assert.ErrorIs(t, err, ErrPersist)
	err = f.vault.SetAllowedAsset(ctx, controller, weth, true)
	assert.ErrorIs(t, err, ErrPersist)

	assert.Equal(t, before, f.vault.Snapshot())
	assert.Equal(t, uint64(500), f.vault.RecordedBalance(usdc).Uint64())
	assert.False(t, f.vault.IsAllowed(weth))
	assert.Len(t, f.events.events, 1)
}

type hookAssets struct {
	chain.Assets
	onTransfer func(ctx context.Context)
}

func (h *hookAssets) Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int, opts chain.TxOptions) error {
	if h.onTransfer != nil {
		h.onTransfer(ctx)
	}
	return h.Assets.Transfer(ctx, asset, to, amount, opts)
}

func TestVault_ReentrantCallRejected(t *testing.T) {
	hook := &hookAssets{}
	f := newFixture(t, func(a chain.Assets) chain.Assets {
		hook.Assets = a
		return hook
	})
	ctx := context.Background()
	require.NoError(t, f.vault.UpdateBalance(ctx, controller, usdc, uint256.NewInt(1000)))

	var innerErrs []error
	var lockDuring LockState
	hook.onTransfer = func(ctx context.Context) {
		lockDuring = f.vault.LockState()
		innerErrs = append(innerErrs,
			f.vault.Withdraw(ctx, controller, usdc, uint256.NewInt(1)),
			f.vault.ReceiveNative(ctx, stranger, uint256.NewInt(1)),
			f.vault.Start(ctx, controller),
		)
	}

	require.NoError(t, f.vault.Withdraw(ctx, controller, usdc, uint256.NewInt(100)))
	require.Len(t, innerErrs, 3)
	for _, err := range innerErrs {
		assert.ErrorIs(t, err, ErrReentrantCall)
	}
	assert.Equal(t, LockBusy, lockDuring)
	assert.Equal(t, LockIdle, f.vault.LockState())
	assert.Equal(t, uint64(900), f.vault.RecordedBalance(usdc).Uint64())
	assert.False(t, f.vault.Running())
}

func TestVault_ConcurrentMutationsSerialise(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.vault.ReceiveNative(ctx, stranger, uint256.NewInt(5))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(100), f.vault.RecordedBalance(chain.NativeAsset).Uint64())
	assert.Equal(t, uint64(20), f.vault.Status().Seq)
}

func TestVault_SnapshotRestore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	v := f.vault
	dest := common.HexToAddress("0x00000000000000000000000000000000000000de")

	require.NoError(t, v.SetAllowedAsset(ctx, controller, weth, true))
	require.NoError(t, v.SetAllowedAsset(ctx, controller, usdc, true))
	require.NoError(t, v.SetTradePercent(ctx, controller, 75))
	require.NoError(t, v.SetProfitThreshold(ctx, controller, uint256.NewInt(42)))
	require.NoError(t, v.UpdateBalance(ctx, controller, usdc, uint256.NewInt(123)))
	require.NoError(t, v.SetSweepDestination(ctx, controller, dest))
	require.NoError(t, v.SetTradeConfig(ctx, controller, TradeConfig{
		InputAsset:  usdc,
		OutputAsset: weth,
		FeeTier:     3000,
		InputAmount: uint256.NewInt(200_000),
		Deadline:    testNow.Add(time.Hour),
	}))
	require.NoError(t, v.Start(ctx, controller))

	snap := v.Snapshot()
	assert.Equal(t, snap, f.store.saved[len(f.store.saved)-1])

	restored := newFixture(t, nil).vault
	require.NoError(t, restored.Restore(snap))

	assert.Equal(t, v.Controller(), restored.Controller())
	assert.True(t, restored.Running())
	assert.Equal(t, v.Bounds(), restored.Bounds())
	assert.Equal(t, []common.Address{usdc, weth}, restored.AllowedAssets())
	assert.Equal(t, uint64(123), restored.RecordedBalance(usdc).Uint64())
	assert.Equal(t, dest, restored.SweepDestination())
	cfg, ok := restored.TradeConfig()
	require.True(t, ok)
	assert.Equal(t, uint32(3000), cfg.FeeTier)
	assert.Equal(t, testNow.Add(time.Hour), cfg.Deadline)
	assert.Equal(t, v.Status().Seq, restored.Status().Seq)

	assert.Error(t, restored.Restore(nil))
	assert.Error(t, restored.Restore(&Snapshot{Controller: "nope"}))
}
