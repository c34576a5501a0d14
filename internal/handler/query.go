package handler

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradevault/internal/vault"
	"github.com/gin-gonic/gin"
)

func (h *VaultHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

func (h *VaultHandler) Bounds(c *gin.Context) {
	c.JSON(http.StatusOK, boundsResponse(h.v.Bounds()))
}

func (h *VaultHandler) GetTradeConfig(c *gin.Context) {
	cfg, ok := h.v.TradeConfig()
	if !ok {
		_ = c.Error(apperrors.NewNotFound("no trade config set"))
		return
	}
	c.JSON(http.StatusOK, tradeConfigResponse(cfg))
}

func (h *VaultHandler) LastTrade(c *gin.Context) {
	result, ok := h.v.LastTrade()
	if !ok {
		_ = c.Error(apperrors.NewNotFound("no trade attempted yet"))
		return
	}
	c.JSON(http.StatusOK, tradeResultResponse(result))
}

func (h *VaultHandler) EstimateProfit(c *gin.Context) {
	estimate, err := h.v.EstimateProfit(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.EstimateResponse{
		AmountIn:         decimalOrZero(estimate.AmountIn),
		AmountOut:        decimalOrZero(estimate.AmountOut),
		MinAcceptableOut: decimalOrZero(estimate.MinAcceptableOut),
	})
}

func (h *VaultHandler) AllowedAssets(c *gin.Context) {
	assets := h.v.AllowedAssets()
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Hex())
	}
	c.JSON(http.StatusOK, out)
}

func (h *VaultHandler) IsAllowed(c *gin.Context) {
	asset, err := parseAsset(c.Param("asset"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.AssetAllowedResponse{Asset: asset.Hex(), Allowed: h.v.IsAllowed(asset)})
}

// Balances lists recorded balances. With ?onchain=true each entry also
// carries the live on-chain balance.
func (h *VaultHandler) Balances(c *gin.Context) {
	withOnchain, _ := strconv.ParseBool(c.Query("onchain"))
	recorded := h.v.Balances()
	entries := make([]model.BalanceEntry, 0, len(recorded))
	for asset, amount := range recorded {
		entry := model.BalanceEntry{Asset: asset.Hex(), Recorded: amount.Dec()}
		if withOnchain {
			onchain, err := h.v.OnchainBalance(c.Request.Context(), asset)
			if err != nil {
				_ = c.Error(apperrors.New(apperrors.ErrUpstream, err.Error(), err))
				return
			}
			entry.Onchain = onchain.Dec()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Asset < entries[j].Asset })
	c.JSON(http.StatusOK, entries)
}

func (h *VaultHandler) status() model.StatusResponse {
	st := h.v.Status()
	return model.StatusResponse{
		Self:             st.Self.Hex(),
		Controller:       st.Controller.Hex(),
		Running:          st.Running,
		Lock:             string(st.Lock),
		SweepDestination: st.SweepDestination.Hex(),
		Seq:              st.Seq,
	}
}

func boundsResponse(b vault.RiskBounds) model.BoundsResponse {
	return model.BoundsResponse{
		MinTradeAmount:    decimalOrZero(b.MinTradeAmount),
		MaxTradeAmount:    decimalOrZero(b.MaxTradeAmount),
		TradePercent:      b.TradePercent,
		SlippageTolerance: b.SlippageTolerance,
		FeePriceCeiling:   decimalOrZero(b.FeePriceCeiling),
		GasLimitCeiling:   b.GasLimitCeiling,
		ProfitThreshold:   decimalOrZero(b.ProfitThreshold),
	}
}

func tradeConfigResponse(cfg vault.TradeConfig) model.TradeConfigResponse {
	return model.TradeConfigResponse{
		InputAsset:      cfg.InputAsset.Hex(),
		OutputAsset:     cfg.OutputAsset.Hex(),
		FeeTier:         cfg.FeeTier,
		InputAmount:     decimalOrZero(cfg.InputAmount),
		MinOutputAmount: decimalOrZero(cfg.MinOutputAmount),
		Deadline:        cfg.Deadline.Unix(),
	}
}

func tradeResultResponse(r vault.TradeResult) model.TradeResultResponse {
	return model.TradeResultResponse{
		Phase:       string(r.Phase),
		InputAsset:  r.InputAsset.Hex(),
		OutputAsset: r.OutputAsset.Hex(),
		AmountIn:    decimalOrEmpty(r.AmountIn),
		AmountOut:   decimalOrEmpty(r.AmountOut),
		Profit:      decimalOrEmpty(r.Profit),
		Error:       r.Err,
		At:          r.At.Unix(),
	}
}
