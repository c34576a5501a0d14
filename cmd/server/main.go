package main

import (
	"context"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/chain/evm"
	"github.com/GoPolymarket/tradevault/internal/chain/sim"
	"github.com/GoPolymarket/tradevault/internal/config"
	"github.com/GoPolymarket/tradevault/internal/handler"
	"github.com/GoPolymarket/tradevault/internal/middleware"
	"github.com/GoPolymarket/tradevault/internal/pkg/logger"
	"github.com/GoPolymarket/tradevault/internal/repository"
	"github.com/GoPolymarket/tradevault/internal/service"
	"github.com/GoPolymarket/tradevault/internal/signer"
	"github.com/GoPolymarket/tradevault/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// stateStore is what the vault persists to and what startup restores from.
type stateStore interface {
	vault.StateStore
	Load(ctx context.Context) (*vault.Snapshot, error)
}

type expiringStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

type chainBackend struct {
	self      common.Address
	assets    chain.Assets
	venue     chain.Venue
	ledger    *sim.Ledger
	contracts middleware.ContractSignatureVerifier
}

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize Persistence (Postgres > Redis > Memory)
	var (
		store     stateStore
		eventRepo service.EventRepo
		idemStore middleware.IdempotencyStore
	)
	idemTTL := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("connected to PostgreSQL")
			store = repository.NewPostgresStateStore(db)
			eventRepo = repository.NewPostgresEventRepo(db)
			idemStore = repository.NewPostgresIdempotencyStore(db)
		} else {
			logger.Error("failed to connect to DB, falling back", "error", err)
		}
	}
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to Redis")
			if store == nil {
				store = repository.NewRedisStateStore(redisClient, cfg.Redis.SnapshotKey)
			}
			if eventRepo == nil {
				eventRepo = repository.NewRedisEventRepo(redisClient, cfg.Redis.EventListKey, cfg.Redis.EventListMax)
			}
			// Redis TTLs suit idempotency keys better than a SQL table.
			idemStore = repository.NewRedisIdempotencyStore(redisClient, idemTTL)
		} else {
			logger.Error("failed to connect to Redis, falling back to memory", "error", err)
			redisClient = nil
		}
	}
	if store == nil {
		logger.Warn("no durable state store configured, vault state is in-memory only")
		store = service.NewMemoryStateStore()
	}
	if idemStore == nil {
		idemStore = middleware.NewInMemIdempotencyStore(idemTTL)
	}
	if cleaner, ok := idemStore.(expiringStore); ok {
		go runCleanup(ctx, cleaner, time.Hour, idemTTL)
	}

	// 3. Initialize Chain
	backend, err := newChainBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize chain backend: %v", err)
	}

	// 4. Initialize Core Services
	hub := service.NewEventHub()
	eventSvc, err := service.NewEventService(service.EventServiceOptions{
		BufferSize:  cfg.Events.BufferSize,
		HistorySize: cfg.Events.HistorySize,
		LogDir:      "./logs",
	}, eventRepo, hub)
	if err != nil {
		log.Fatalf("Failed to initialize event service: %v", err)
	}
	retention := time.Duration(cfg.Database.EventRetentionDays) * 24 * time.Hour
	go eventSvc.RunRetention(ctx, time.Hour, retention)

	bounds, err := cfg.Vault.Bounds()
	if err != nil {
		log.Fatalf("Invalid vault bounds: %v", err)
	}
	var controller common.Address
	if cfg.Vault.Controller != "" {
		controller = common.HexToAddress(cfg.Vault.Controller)
	}
	v, err := vault.New(vault.Config{
		Self:       backend.self,
		Controller: controller,
		Bounds:     bounds,
	}, backend.assets, backend.venue,
		vault.WithStore(store),
		vault.WithEmitter(eventSvc),
	)
	if err != nil {
		log.Fatalf("Failed to initialize vault: %v", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load vault state: %v", err)
	}
	if snap != nil {
		if err := v.Restore(snap); err != nil {
			log.Fatalf("Failed to restore vault state: %v", err)
		}
	} else if cfg.Vault.SweepDestination != "" {
		dest := common.HexToAddress(cfg.Vault.SweepDestination)
		if err := v.SetSweepDestination(ctx, v.Controller(), dest); err != nil {
			log.Fatalf("Failed to set sweep destination: %v", err)
		}
	}
	if backend.ledger != nil {
		backend.ledger.OnNativeReceived(backend.self, v.ReceiveNative)
	}

	// 5. Setup Router
	gin.SetMode(gin.ReleaseMode)
	r := handler.NewRouter(handler.RouterOptions{
		Vault:            handler.NewVaultHandler(v),
		Events:           handler.NewEventHandler(eventSvc, hub),
		SignatureWindow:    time.Duration(cfg.Auth.SignatureWindowSeconds) * time.Second,
		ContractSignatures: backend.contracts,
		Limiter:            middleware.NewCallerLimiter(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst),
		IdempotencyStore:   idemStore,
		ReadOnly:           cfg.Server.ReadOnly,
	})

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("tradevault started",
			"port", cfg.Server.Port,
			"chain_mode", cfg.Chain.Mode,
			"self", backend.self.Hex(),
			"controller", v.Controller().Hex(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	hub.Close()
	eventSvc.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server exiting")
}

func newChainBackend(ctx context.Context, cfg *config.Config) (*chainBackend, error) {
	switch cfg.Chain.Mode {
	case config.ChainModeEVM:
		wallet, err := signer.NewWallet(cfg.Chain.PrivateKey)
		if err != nil {
			return nil, err
		}
		opts := evm.Options{
			Router:        common.HexToAddress(cfg.Chain.Router),
			Quoter:        common.HexToAddress(cfg.Chain.Quoter),
			DeadlineGrace: time.Duration(cfg.Chain.DeadlineGraceSeconds) * time.Second,
			PollInterval:  time.Duration(cfg.Chain.PollIntervalMs) * time.Millisecond,
		}
		if cfg.Chain.ChainID > 0 {
			opts.ChainID = big.NewInt(cfg.Chain.ChainID)
		}
		client, err := evm.Dial(ctx, cfg.Chain.RPCURL, wallet, opts)
		if err != nil {
			return nil, err
		}
		backend := &chainBackend{self: wallet.Address(), assets: client, venue: client}
		if cfg.Auth.ContractSignatures {
			backend.contracts = service.NewEIP1271Verifier(client.Caller(), time.Minute, 5*time.Second, 2)
		}
		return backend, nil
	default:
		self := common.HexToAddress(cfg.Vault.Sim.Self)
		venueAddr := common.HexToAddress(cfg.Vault.Sim.Venue)
		ledger := sim.NewLedger()
		funding, err := config.ParseHoldings("vault.sim.funding", cfg.Vault.Sim.Funding)
		if err != nil {
			return nil, err
		}
		for asset, amount := range funding {
			ledger.Mint(asset, self, amount)
		}
		inventory, err := config.ParseHoldings("vault.sim.inventory", cfg.Vault.Sim.Inventory)
		if err != nil {
			return nil, err
		}
		for asset, amount := range inventory {
			ledger.Mint(asset, venueAddr, amount)
		}
		venue := sim.NewVenue(ledger, venueAddr, sim.FixedRate(cfg.Vault.Sim.RateNum, cfg.Vault.Sim.RateDen))
		logger.Info("using simulated chain", "self", self.Hex(), "venue", venueAddr.Hex())
		return &chainBackend{self: self, assets: ledger.Account(self), venue: venue, ledger: ledger}, nil
	}
}

func runCleanup(ctx context.Context, store expiringStore, every, olderThan time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx, olderThan); err != nil {
				logger.Warn("idempotency cleanup failed", "error", err)
			}
		}
	}
}
