package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// LockState reports whether a guarded operation is in flight.
type LockState string

const (
	LockIdle LockState = "idle"
	LockBusy LockState = "busy"
)

type inFlightKey struct{}

// enter serialises guarded operations. A call whose context descends from an
// in-flight operation of the same vault is rejected instead of deadlocking.
func (v *Vault) enter(ctx context.Context) (context.Context, func(), error) {
	if owner, _ := ctx.Value(inFlightKey{}).(*Vault); owner == v {
		return ctx, func() {}, v.reject("reentrant", ErrReentrantCall)
	}
	v.mu.Lock()
	v.busy.Store(true)
	release := func() {
		v.busy.Store(false)
		v.mu.Unlock()
	}
	return context.WithValue(ctx, inFlightKey{}, v), release, nil
}

func (v *Vault) LockState() LockState {
	if v.busy.Load() {
		return LockBusy
	}
	return LockIdle
}

func (v *Vault) authorize(st *state, caller common.Address) error {
	if caller != st.controller {
		return v.reject("unauthorized", ErrUnauthorized)
	}
	return nil
}

// TransferController hands control to next. The zero address is refused.
func (v *Vault) TransferController(ctx context.Context, caller, next common.Address) error {
	return v.guarded(ctx, caller, func(_ context.Context, st *state) ([]Event, error) {
		if next == (common.Address{}) {
			return nil, v.reject("invalid_controller", ErrInvalidController)
		}
		previous := st.controller
		st.controller = next
		return []Event{controllerChangedEvent(previous, next)}, nil
	})
}
