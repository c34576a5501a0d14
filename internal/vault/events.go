package vault

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

const (
	EventTypeStarted             = "vault.started"
	EventTypeStopped             = "vault.stopped"
	EventTypeTradeConfigSet      = "vault.trade.config.set"
	EventTypeBoundSet            = "vault.bound.set"
	EventTypeAssetAllowed        = "vault.asset.allowed"
	EventTypeTradeExecuted       = "vault.trade.executed"
	EventTypeWithdrawn           = "vault.withdrawn"
	EventTypeEmergencyWithdrawn  = "vault.emergency.withdrawn"
	EventTypeFundsSwept          = "vault.funds.swept"
	EventTypeControllerChanged   = "vault.controller.changed"
	EventTypeBalanceUpdated      = "vault.balance.updated"
	EventTypeNativeReceived      = "vault.native.received"
	EventTypeSweepDestinationSet = "vault.sweep.destination.set"
)

// Event is a notification emitted once per committed state change.
type Event struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Emitter receives committed notifications. Implementations must not block.
type Emitter interface {
	Emit(Event)
}

type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

func newEvent(eventType string, attrs map[string]string) Event {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Attributes: attrs,
	}
}

func startedEvent(caller common.Address) Event {
	return newEvent(EventTypeStarted, map[string]string{"caller": caller.Hex()})
}

func stoppedEvent(caller common.Address) Event {
	return newEvent(EventTypeStopped, map[string]string{"caller": caller.Hex()})
}

func tradeConfigSetEvent(cfg *TradeConfig) Event {
	return newEvent(EventTypeTradeConfigSet, map[string]string{
		"input_asset":       cfg.InputAsset.Hex(),
		"output_asset":      cfg.OutputAsset.Hex(),
		"fee_tier":          strconv.FormatUint(uint64(cfg.FeeTier), 10),
		"input_amount":      intOrZero(cfg.InputAmount).Dec(),
		"min_output_amount": intOrZero(cfg.MinOutputAmount).Dec(),
		"deadline":          strconv.FormatInt(cfg.Deadline.Unix(), 10),
	})
}

func boundSetEvent(name, value string) Event {
	return newEvent(EventTypeBoundSet, map[string]string{"name": name, "value": value})
}

func assetAllowedEvent(asset common.Address, allowed bool) Event {
	return newEvent(EventTypeAssetAllowed, map[string]string{
		"asset":   asset.Hex(),
		"allowed": strconv.FormatBool(allowed),
	})
}

func tradeExecutedEvent(in, out common.Address, amountIn, amountOut, profit *uint256.Int) Event {
	return newEvent(EventTypeTradeExecuted, map[string]string{
		"input_asset":  in.Hex(),
		"output_asset": out.Hex(),
		"amount_in":    amountIn.Dec(),
		"amount_out":   amountOut.Dec(),
		"profit":       profit.Dec(),
	})
}

func withdrawnEvent(asset, to common.Address, amount *uint256.Int) Event {
	return newEvent(EventTypeWithdrawn, map[string]string{
		"asset":  asset.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	})
}

func emergencyWithdrawnEvent(asset, to common.Address, amount *uint256.Int) Event {
	return newEvent(EventTypeEmergencyWithdrawn, map[string]string{
		"asset":  asset.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	})
}

func fundsSweptEvent(asset, destination common.Address, amount *uint256.Int) Event {
	return newEvent(EventTypeFundsSwept, map[string]string{
		"asset":       asset.Hex(),
		"destination": destination.Hex(),
		"amount":      amount.Dec(),
	})
}

func controllerChangedEvent(previous, next common.Address) Event {
	return newEvent(EventTypeControllerChanged, map[string]string{
		"previous": previous.Hex(),
		"next":     next.Hex(),
	})
}

func balanceUpdatedEvent(asset common.Address, amount *uint256.Int, source string) Event {
	return newEvent(EventTypeBalanceUpdated, map[string]string{
		"asset":  asset.Hex(),
		"amount": amount.Dec(),
		"source": source,
	})
}

func nativeReceivedEvent(from common.Address, amount *uint256.Int) Event {
	return newEvent(EventTypeNativeReceived, map[string]string{
		"from":   from.Hex(),
		"amount": amount.Dec(),
	})
}

func sweepDestinationSetEvent(destination common.Address) Event {
	return newEvent(EventTypeSweepDestinationSet, map[string]string{"destination": destination.Hex()})
}
