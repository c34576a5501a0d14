package handler

import (
	"net/http"
	"time"

	"github.com/GoPolymarket/tradevault/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	Vault  *VaultHandler
	Events *EventHandler

	SignatureWindow    time.Duration
	Now                func() time.Time
	ContractSignatures middleware.ContractSignatureVerifier
	Limiter            *middleware.CallerLimiter
	IdempotencyStore   middleware.IdempotencyStore
	ReadOnly           bool
}

func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(nil))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tradevault"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(middleware.ReadOnlyMiddleware(opts.ReadOnly))

	reads := v1.Group("")
	{
		reads.GET("/status", opts.Vault.Status)
		reads.GET("/bounds", opts.Vault.Bounds)
		reads.GET("/trade/config", opts.Vault.GetTradeConfig)
		reads.GET("/trade/last", opts.Vault.LastTrade)
		reads.GET("/trade/estimate", opts.Vault.EstimateProfit)
		reads.GET("/assets/allowed", opts.Vault.AllowedAssets)
		reads.GET("/assets/allowed/:asset", opts.Vault.IsAllowed)
		reads.GET("/balances", opts.Vault.Balances)
		if opts.Events != nil {
			reads.GET("/events", opts.Events.List)
			reads.GET("/events/stream", opts.Events.Stream)
		}
	}

	control := v1.Group("")
	control.Use(middleware.CallerAuthMiddleware(opts.SignatureWindow, opts.Now, opts.ContractSignatures))
	control.Use(middleware.RateLimitMiddleware(opts.Limiter))
	control.Use(middleware.IdempotencyMiddleware(opts.IdempotencyStore))
	{
		control.POST("/start", opts.Vault.Start)
		control.POST("/stop", opts.Vault.Stop)
		control.POST("/trade/config", opts.Vault.SetTradeConfig)
		control.POST("/trade/execute", opts.Vault.ExecuteTrade)
		control.POST("/bounds/:name", opts.Vault.SetBound)
		control.POST("/assets/allowed", opts.Vault.SetAllowedAsset)
		control.POST("/withdraw", opts.Vault.Withdraw)
		control.POST("/withdraw/emergency", opts.Vault.EmergencyWithdraw)
		control.POST("/balances/:asset", opts.Vault.UpdateBalance)
		control.POST("/balances/:asset/sync", opts.Vault.SyncBalance)
		control.POST("/sweep/destination", opts.Vault.SetSweepDestination)
		control.POST("/sweep/:asset", opts.Vault.Sweep)
		control.POST("/controller", opts.Vault.TransferController)
	}

	return r
}
