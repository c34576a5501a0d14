package vault

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// state is the full owned state of one vault. Mutations always happen on a
// clone which replaces the live state only after it has been persisted.
type state struct {
	controller   common.Address
	running      bool
	bounds       RiskBounds
	allowed      map[common.Address]struct{}
	allowedIndex []common.Address // ascending
	trade        *TradeConfig
	balances     map[common.Address]*uint256.Int
	sweepTo      common.Address
	seq          uint64
}

func newState(controller common.Address, bounds RiskBounds) *state {
	return &state{
		controller: controller,
		bounds:     bounds.Copy(),
		allowed:    make(map[common.Address]struct{}),
		balances:   make(map[common.Address]*uint256.Int),
	}
}

func (s *state) clone() *state {
	next := &state{
		controller:   s.controller,
		running:      s.running,
		bounds:       s.bounds.Copy(),
		allowed:      make(map[common.Address]struct{}, len(s.allowed)),
		allowedIndex: append([]common.Address(nil), s.allowedIndex...),
		trade:        s.trade.Copy(),
		balances:     make(map[common.Address]*uint256.Int, len(s.balances)),
		sweepTo:      s.sweepTo,
		seq:          s.seq,
	}
	for asset := range s.allowed {
		next.allowed[asset] = struct{}{}
	}
	for asset, amount := range s.balances {
		next.balances[asset] = amount.Clone()
	}
	return next
}

func (s *state) isAllowed(asset common.Address) bool {
	_, ok := s.allowed[asset]
	return ok
}

// setAllowed toggles membership and keeps allowedIndex sorted.
func (s *state) setAllowed(asset common.Address, allowed bool) {
	i := sort.Search(len(s.allowedIndex), func(i int) bool {
		return bytes.Compare(s.allowedIndex[i].Bytes(), asset.Bytes()) >= 0
	})
	present := i < len(s.allowedIndex) && s.allowedIndex[i] == asset
	switch {
	case allowed && !present:
		s.allowedIndex = append(s.allowedIndex, common.Address{})
		copy(s.allowedIndex[i+1:], s.allowedIndex[i:])
		s.allowedIndex[i] = asset
		s.allowed[asset] = struct{}{}
	case !allowed && present:
		s.allowedIndex = append(s.allowedIndex[:i], s.allowedIndex[i+1:]...)
		delete(s.allowed, asset)
	}
}

func (s *state) balance(asset common.Address) *uint256.Int {
	if amount, ok := s.balances[asset]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

func (s *state) setBalance(asset common.Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		delete(s.balances, asset)
		return
	}
	s.balances[asset] = amount.Clone()
}

func (s *state) credit(asset common.Address, amount *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(s.balance(asset), amount)
	if overflow {
		return fmt.Errorf("recorded balance of %s overflows", asset.Hex())
	}
	s.setBalance(asset, sum)
	return nil
}

func (s *state) debit(asset common.Address, amount *uint256.Int) error {
	current := s.balance(asset)
	if current.Lt(amount) {
		return fmt.Errorf("%w: recorded %s, requested %s", ErrInsufficientRecordedBalance, current.Dec(), amount.Dec())
	}
	s.setBalance(asset, new(uint256.Int).Sub(current, amount))
	return nil
}

func (s *state) sweepDestination() common.Address {
	if s.sweepTo == (common.Address{}) {
		return s.controller
	}
	return s.sweepTo
}

// Snapshot is the serialisable form of the vault state. Amounts are decimal
// strings so that every backend stores them losslessly.
type Snapshot struct {
	Controller       string            `json:"controller"`
	Running          bool              `json:"running"`
	Bounds           SnapshotBounds    `json:"bounds"`
	Allowed          []string          `json:"allowed"`
	Trade            *SnapshotTrade    `json:"trade,omitempty"`
	Balances         map[string]string `json:"balances"`
	SweepDestination string            `json:"sweep_destination,omitempty"`
	Seq              uint64            `json:"seq"`
}

type SnapshotBounds struct {
	MinTradeAmount    string `json:"min_trade_amount"`
	MaxTradeAmount    string `json:"max_trade_amount"`
	TradePercent      uint64 `json:"trade_percent"`
	SlippageTolerance uint64 `json:"slippage_tolerance"`
	FeePriceCeiling   string `json:"fee_price_ceiling"`
	GasLimitCeiling   uint64 `json:"gas_limit_ceiling"`
	ProfitThreshold   string `json:"profit_threshold"`
}

type SnapshotTrade struct {
	InputAsset      string `json:"input_asset"`
	OutputAsset     string `json:"output_asset"`
	FeeTier         uint32 `json:"fee_tier"`
	InputAmount     string `json:"input_amount"`
	MinOutputAmount string `json:"min_output_amount"`
	Deadline        int64  `json:"deadline"`
}

func (s *state) snapshot() *Snapshot {
	snap := &Snapshot{
		Controller: s.controller.Hex(),
		Running:    s.running,
		Bounds: SnapshotBounds{
			MinTradeAmount:    intOrZero(s.bounds.MinTradeAmount).Dec(),
			MaxTradeAmount:    intOrZero(s.bounds.MaxTradeAmount).Dec(),
			TradePercent:      s.bounds.TradePercent,
			SlippageTolerance: s.bounds.SlippageTolerance,
			FeePriceCeiling:   intOrZero(s.bounds.FeePriceCeiling).Dec(),
			GasLimitCeiling:   s.bounds.GasLimitCeiling,
			ProfitThreshold:   intOrZero(s.bounds.ProfitThreshold).Dec(),
		},
		Allowed:  make([]string, 0, len(s.allowedIndex)),
		Balances: make(map[string]string, len(s.balances)),
		Seq:      s.seq,
	}
	for _, asset := range s.allowedIndex {
		snap.Allowed = append(snap.Allowed, asset.Hex())
	}
	for asset, amount := range s.balances {
		snap.Balances[asset.Hex()] = amount.Dec()
	}
	if s.sweepTo != (common.Address{}) {
		snap.SweepDestination = s.sweepTo.Hex()
	}
	if s.trade != nil {
		snap.Trade = &SnapshotTrade{
			InputAsset:      s.trade.InputAsset.Hex(),
			OutputAsset:     s.trade.OutputAsset.Hex(),
			FeeTier:         s.trade.FeeTier,
			InputAmount:     intOrZero(s.trade.InputAmount).Dec(),
			MinOutputAmount: intOrZero(s.trade.MinOutputAmount).Dec(),
			Deadline:        s.trade.Deadline.Unix(),
		}
	}
	return snap
}

func stateFromSnapshot(snap *Snapshot) (*state, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	if !common.IsHexAddress(snap.Controller) {
		return nil, fmt.Errorf("snapshot: invalid controller %q", snap.Controller)
	}
	bounds := RiskBounds{
		TradePercent:      snap.Bounds.TradePercent,
		SlippageTolerance: snap.Bounds.SlippageTolerance,
		GasLimitCeiling:   snap.Bounds.GasLimitCeiling,
	}
	var err error
	if bounds.MinTradeAmount, err = parseAmount("min_trade_amount", snap.Bounds.MinTradeAmount); err != nil {
		return nil, err
	}
	if bounds.MaxTradeAmount, err = parseAmount("max_trade_amount", snap.Bounds.MaxTradeAmount); err != nil {
		return nil, err
	}
	if bounds.FeePriceCeiling, err = parseAmount("fee_price_ceiling", snap.Bounds.FeePriceCeiling); err != nil {
		return nil, err
	}
	if bounds.ProfitThreshold, err = parseAmount("profit_threshold", snap.Bounds.ProfitThreshold); err != nil {
		return nil, err
	}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	st := newState(common.HexToAddress(snap.Controller), bounds)
	st.running = snap.Running
	st.seq = snap.Seq
	for _, raw := range snap.Allowed {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("snapshot: invalid allowed asset %q", raw)
		}
		st.setAllowed(common.HexToAddress(raw), true)
	}
	for raw, value := range snap.Balances {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("snapshot: invalid balance asset %q", raw)
		}
		amount, err := parseAmount("balance", value)
		if err != nil {
			return nil, err
		}
		st.setBalance(common.HexToAddress(raw), amount)
	}
	if snap.SweepDestination != "" {
		st.sweepTo = common.HexToAddress(snap.SweepDestination)
	}
	if snap.Trade != nil {
		trade := &TradeConfig{
			InputAsset:  common.HexToAddress(snap.Trade.InputAsset),
			OutputAsset: common.HexToAddress(snap.Trade.OutputAsset),
			FeeTier:     snap.Trade.FeeTier,
			Deadline:    time.Unix(snap.Trade.Deadline, 0).UTC(),
		}
		if trade.InputAmount, err = parseAmount("input_amount", snap.Trade.InputAmount); err != nil {
			return nil, err
		}
		if trade.MinOutputAmount, err = parseAmount("min_output_amount", snap.Trade.MinOutputAmount); err != nil {
			return nil, err
		}
		st.trade = trade
	}
	return st, nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	if raw == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot: invalid %s %q: %w", field, raw, err)
	}
	return amount, nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
