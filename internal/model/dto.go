package model

// Amounts travel as decimal strings so that 256-bit values survive JSON.

type TradeConfigRequest struct {
	InputAsset      string `json:"input_asset" binding:"required"`
	OutputAsset     string `json:"output_asset" binding:"required"`
	FeeTier         uint32 `json:"fee_tier"`
	InputAmount     string `json:"input_amount" binding:"required"`
	MinOutputAmount string `json:"min_output_amount"`
	Deadline        int64  `json:"deadline" binding:"required"` // unix seconds
}

type TradeConfigResponse struct {
	InputAsset      string `json:"input_asset"`
	OutputAsset     string `json:"output_asset"`
	FeeTier         uint32 `json:"fee_tier"`
	InputAmount     string `json:"input_amount"`
	MinOutputAmount string `json:"min_output_amount"`
	Deadline        int64  `json:"deadline"`
}

type BoundRequest struct {
	Value string `json:"value" binding:"required"`
}

type BoundsResponse struct {
	MinTradeAmount    string `json:"min_trade_amount"`
	MaxTradeAmount    string `json:"max_trade_amount"`
	TradePercent      uint64 `json:"trade_percent"`
	SlippageTolerance uint64 `json:"slippage_tolerance"`
	FeePriceCeiling   string `json:"fee_price_ceiling"`
	GasLimitCeiling   uint64 `json:"gas_limit_ceiling"`
	ProfitThreshold   string `json:"profit_threshold"`
}

type AllowAssetRequest struct {
	Asset   string `json:"asset" binding:"required"`
	Allowed *bool  `json:"allowed" binding:"required"`
}

type AssetAllowedResponse struct {
	Asset   string `json:"asset"`
	Allowed bool   `json:"allowed"`
}

type WithdrawRequest struct {
	Asset  string `json:"asset"` // empty means native
	Amount string `json:"amount,omitempty"`
}

type BalanceRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type AddressRequest struct {
	Address string `json:"address" binding:"required"`
}

type BalanceEntry struct {
	Asset    string `json:"asset"`
	Recorded string `json:"recorded"`
	Onchain  string `json:"onchain,omitempty"`
}

type AmountResponse struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type TradeResultResponse struct {
	Phase       string `json:"phase"`
	InputAsset  string `json:"input_asset"`
	OutputAsset string `json:"output_asset"`
	AmountIn    string `json:"amount_in,omitempty"`
	AmountOut   string `json:"amount_out,omitempty"`
	Profit      string `json:"profit,omitempty"`
	Error       string `json:"error,omitempty"`
	At          int64  `json:"at"`
}

type EstimateResponse struct {
	AmountIn         string `json:"amount_in"`
	AmountOut        string `json:"amount_out"`
	MinAcceptableOut string `json:"min_acceptable_out"`
}

type StatusResponse struct {
	Self             string `json:"self"`
	Controller       string `json:"controller"`
	Running          bool   `json:"running"`
	Lock             string `json:"lock"`
	SweepDestination string `json:"sweep_destination"`
	Seq              uint64 `json:"seq"`
}
