package handler

import (
	"net/http"
	"time"

	"github.com/GoPolymarket/tradevault/internal/middleware"
	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/vault"
	"github.com/gin-gonic/gin"
)

// VaultHandler exposes the controller operations and read views of a vault.
type VaultHandler struct {
	v *vault.Vault
}

func NewVaultHandler(v *vault.Vault) *VaultHandler {
	return &VaultHandler{v: v}
}

func (h *VaultHandler) Start(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	if err := h.v.Start(c.Request.Context(), caller); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.status())
}

func (h *VaultHandler) Stop(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	if err := h.v.Stop(c.Request.Context(), caller); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.status())
}

func (h *VaultHandler) SetTradeConfig(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.TradeConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := parseAsset(req.InputAsset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	out, err := parseAsset(req.OutputAsset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	amountIn, err := parseAmount("input_amount", req.InputAmount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	minOut, err := parseAmount("min_output_amount", req.MinOutputAmount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	cfg := vault.TradeConfig{
		InputAsset:      in,
		OutputAsset:     out,
		FeeTier:         req.FeeTier,
		InputAmount:     amountIn,
		MinOutputAmount: minOut,
		Deadline:        time.Unix(req.Deadline, 0).UTC(),
	}
	if err := h.v.SetTradeConfig(c.Request.Context(), caller, cfg); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tradeConfigResponse(cfg))
}

func (h *VaultHandler) ExecuteTrade(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	result, err := h.v.ExecuteTrade(c.Request.Context(), caller)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "amount_in", decimalOrEmpty(result.AmountIn))
	middleware.AddAuditContext(c, "amount_out", decimalOrEmpty(result.AmountOut))
	c.JSON(http.StatusOK, tradeResultResponse(*result))
}

func (h *VaultHandler) SetBound(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.BoundRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.v.SetBound(c.Request.Context(), caller, c.Param("name"), req.Value); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, boundsResponse(h.v.Bounds()))
}

func (h *VaultHandler) SetAllowedAsset(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.AllowAssetRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.v.SetAllowedAsset(c.Request.Context(), caller, asset, *req.Allowed); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.AssetAllowedResponse{Asset: asset.Hex(), Allowed: h.v.IsAllowed(asset)})
}

func (h *VaultHandler) Withdraw(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.v.Withdraw(c.Request.Context(), caller, asset, amount); err != nil {
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "asset", asset.Hex())
	middleware.AddAuditContext(c, "amount", amount.Dec())
	c.JSON(http.StatusOK, model.AmountResponse{Asset: asset.Hex(), Amount: amount.Dec()})
}

func (h *VaultHandler) EmergencyWithdraw(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	amount, err := h.v.EmergencyWithdraw(c.Request.Context(), caller, asset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "asset", asset.Hex())
	middleware.AddAuditContext(c, "amount", amount.Dec())
	c.JSON(http.StatusOK, model.AmountResponse{Asset: asset.Hex(), Amount: amount.Dec()})
}

func (h *VaultHandler) UpdateBalance(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	asset, err := parseAsset(c.Param("asset"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req model.BalanceRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.v.UpdateBalance(c.Request.Context(), caller, asset, amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.AmountResponse{Asset: asset.Hex(), Amount: h.v.RecordedBalance(asset).Dec()})
}

func (h *VaultHandler) SyncBalance(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	asset, err := parseAsset(c.Param("asset"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	amount, err := h.v.SyncBalance(c.Request.Context(), caller, asset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.AmountResponse{Asset: asset.Hex(), Amount: amount.Dec()})
}

func (h *VaultHandler) Sweep(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	asset, err := parseAsset(c.Param("asset"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	amount, err := h.v.Sweep(c.Request.Context(), caller, asset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "destination", h.v.SweepDestination().Hex())
	c.JSON(http.StatusOK, model.AmountResponse{Asset: asset.Hex(), Amount: amount.Dec()})
}

func (h *VaultHandler) SetSweepDestination(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	destination, err := parseAddress("destination", req.Address)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.v.SetSweepDestination(c.Request.Context(), caller, destination); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.status())
}

func (h *VaultHandler) TransferController(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	next, err := parseAddress("controller", req.Address)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.v.TransferController(c.Request.Context(), caller, next); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.status())
}
