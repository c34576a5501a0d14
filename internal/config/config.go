package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/GoPolymarket/tradevault/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	ChainModeSim = "sim"
	ChainModeEVM = "evm"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Events   EventsConfig   `mapstructure:"events"`
}

type ServerConfig struct {
	Port                   string `mapstructure:"port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	// ReadOnly rejects control requests except stop and emergency withdraw.
	ReadOnly               bool   `mapstructure:"read_only"`
}

type AuthConfig struct {
	// SignatureWindowSeconds bounds the clock skew accepted on signed requests.
	SignatureWindowSeconds int     `mapstructure:"signature_window_seconds"`
	RateLimitRPS           float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst         int     `mapstructure:"rate_limit_burst"`
	// ContractSignatures accepts EIP-1271 signatures from contract wallets.
	// Only effective in evm mode.
	ContractSignatures     bool    `mapstructure:"contract_signatures"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	EventRetentionDays int    `mapstructure:"event_retention_days"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	SnapshotKey           string `mapstructure:"snapshot_key"`
	EventListKey          string `mapstructure:"event_list_key"`
	EventListMax          int    `mapstructure:"event_list_max"`
}

type ChainConfig struct {
	Mode                 string `mapstructure:"mode"`
	RPCURL               string `mapstructure:"rpc_url"`
	ChainID              int64  `mapstructure:"chain_id"`
	PrivateKey           string `mapstructure:"private_key"`
	Router               string `mapstructure:"router"`
	Quoter               string `mapstructure:"quoter"`
	DeadlineGraceSeconds int    `mapstructure:"deadline_grace_seconds"`
	PollIntervalMs       int    `mapstructure:"poll_interval_ms"`
}

type VaultConfig struct {
	Controller          string    `mapstructure:"controller"`
	SweepDestination    string    `mapstructure:"sweep_destination"`
	MinTradeAmount      string    `mapstructure:"min_trade_amount"`
	MaxTradeAmount      string    `mapstructure:"max_trade_amount"`
	TradePercent        uint64    `mapstructure:"trade_percent"`
	SlippageToleranceBP uint64    `mapstructure:"slippage_tolerance_bps"`
	FeePriceCeilingGwei string    `mapstructure:"fee_price_ceiling_gwei"`
	GasLimitCeiling     uint64    `mapstructure:"gas_limit_ceiling"`
	ProfitThreshold     string    `mapstructure:"profit_threshold"`
	Sim                 SimConfig `mapstructure:"sim"`
}

// SimConfig seeds the in-memory chain used when chain.mode is "sim".
type SimConfig struct {
	Self    string            `mapstructure:"self"`
	Venue   string            `mapstructure:"venue"`
	RateNum uint64            `mapstructure:"rate_num"`
	RateDen uint64            `mapstructure:"rate_den"`
	Funding map[string]string `mapstructure:"funding"`
	// Inventory is minted to the venue, keyed by asset.
	Inventory map[string]string `mapstructure:"inventory"`
}

type EventsConfig struct {
	BufferSize  int `mapstructure:"buffer_size"`
	HistorySize int `mapstructure:"history_size"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// Environment variables support
	// e.g. TRADEVAULT_CHAIN_RPC_URL
	v.SetEnvPrefix("tradevault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.read_only", false)
	v.SetDefault("auth.signature_window_seconds", 300)
	v.SetDefault("auth.rate_limit_rps", 5)
	v.SetDefault("auth.rate_limit_burst", 10)
	v.SetDefault("auth.contract_signatures", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.event_retention_days", 30)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("redis.snapshot_key", "tradevault:state")
	v.SetDefault("redis.event_list_key", "tradevault:events")
	v.SetDefault("redis.event_list_max", 10000)
	v.SetDefault("chain.mode", ChainModeSim)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.router", "")
	v.SetDefault("chain.quoter", "")
	v.SetDefault("chain.deadline_grace_seconds", 120)
	v.SetDefault("chain.poll_interval_ms", 2000)
	v.SetDefault("vault.controller", "")
	v.SetDefault("vault.sweep_destination", "")
	v.SetDefault("vault.min_trade_amount", "100000")
	v.SetDefault("vault.max_trade_amount", "10000000")
	v.SetDefault("vault.trade_percent", 50)
	v.SetDefault("vault.slippage_tolerance_bps", 50)
	v.SetDefault("vault.fee_price_ceiling_gwei", "20")
	v.SetDefault("vault.gas_limit_ceiling", 500000)
	v.SetDefault("vault.profit_threshold", "10000")
	v.SetDefault("vault.sim.self", "0x00000000000000000000000000000000000000a0")
	v.SetDefault("vault.sim.venue", "0x00000000000000000000000000000000000000b0")
	v.SetDefault("vault.sim.rate_num", 1)
	v.SetDefault("vault.sim.rate_den", 1)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.history_size", 1000)
}

func (c *Config) Validate() error {
	switch c.Chain.Mode {
	case ChainModeSim:
	case ChainModeEVM:
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("chain.rpc_url is required in evm mode")
		}
		if c.Chain.PrivateKey == "" {
			return fmt.Errorf("chain.private_key is required in evm mode")
		}
		for name, addr := range map[string]string{"chain.router": c.Chain.Router, "chain.quoter": c.Chain.Quoter} {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("%s must be a hex address, got %q", name, addr)
			}
		}
	default:
		return fmt.Errorf("unknown chain.mode %q", c.Chain.Mode)
	}
	for name, addr := range map[string]string{
		"vault.controller":        c.Vault.Controller,
		"vault.sweep_destination": c.Vault.SweepDestination,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s must be a hex address, got %q", name, addr)
		}
	}
	if _, err := c.Vault.Bounds(); err != nil {
		return err
	}
	if c.Chain.Mode == ChainModeSim {
		if _, err := ParseHoldings("vault.sim.funding", c.Vault.Sim.Funding); err != nil {
			return err
		}
		if _, err := ParseHoldings("vault.sim.inventory", c.Vault.Sim.Inventory); err != nil {
			return err
		}
		for name, addr := range map[string]string{"vault.sim.self": c.Vault.Sim.Self, "vault.sim.venue": c.Vault.Sim.Venue} {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("%s must be a hex address, got %q", name, addr)
			}
		}
	}
	return nil
}

// Bounds converts the configured limits into the vault's initial risk bounds.
func (c VaultConfig) Bounds() (vault.RiskBounds, error) {
	var b vault.RiskBounds
	var err error
	if b.MinTradeAmount, err = parseUint256("vault.min_trade_amount", c.MinTradeAmount); err != nil {
		return b, err
	}
	if b.MaxTradeAmount, err = parseUint256("vault.max_trade_amount", c.MaxTradeAmount); err != nil {
		return b, err
	}
	if b.ProfitThreshold, err = parseUint256("vault.profit_threshold", c.ProfitThreshold); err != nil {
		return b, err
	}
	if b.FeePriceCeiling, err = GweiToWei(c.FeePriceCeilingGwei); err != nil {
		return b, fmt.Errorf("vault.fee_price_ceiling_gwei: %w", err)
	}
	b.TradePercent = c.TradePercent
	b.SlippageTolerance = c.SlippageToleranceBP
	b.GasLimitCeiling = c.GasLimitCeiling
	if err := b.Validate(); err != nil {
		return b, fmt.Errorf("vault bounds: %w", err)
	}
	return b, nil
}

// GweiToWei parses a decimal gwei amount such as "1.5" into wei.
func GweiToWei(raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(uint256.Int), nil
	}
	gwei, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	if gwei.IsNegative() {
		return nil, fmt.Errorf("negative fee ceiling %s", raw)
	}
	wei := gwei.Shift(9)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("fee ceiling %s has sub-wei precision", raw)
	}
	out, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("fee ceiling %s overflows", raw)
	}
	return out, nil
}

// ParseHoldings converts an asset -> amount map from config. The key
// "native" (or the zero address) is the chain's native coin.
func ParseHoldings(field string, raw map[string]string) (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int, len(raw))
	for key, value := range raw {
		key = strings.TrimSpace(key)
		var asset common.Address
		switch {
		case strings.EqualFold(key, "native"):
		case common.IsHexAddress(key):
			asset = common.HexToAddress(key)
		default:
			return nil, fmt.Errorf("%s: invalid asset %q", field, key)
		}
		amount, err := parseUint256(field+"."+key, value)
		if err != nil {
			return nil, err
		}
		out[asset] = amount
	}
	return out, nil
}

func parseUint256(field, raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(uint256.Int), nil
	}
	out, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid amount %q: %w", field, raw, err)
	}
	return out, nil
}
