package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ChainConfig struct {
	Network           string  `yaml:"network"`
	RPCHTTP           string  `yaml:"rpc_http"`
	ChainID           int64   `yaml:"chain_id"`
	Multicall         string  `yaml:"multicall"`
	MaxRetries        uint    `yaml:"max_retries"`
	RetryMaxElapsedMs int     `yaml:"retry_max_elapsed_ms"`
	RequestsPerSecond int     `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	FallbackTipGwei   float64 `yaml:"fallback_tip_gwei"`
}

type EstimatorConfig struct {
	DebounceMs         int     `yaml:"debounce_ms"`
	VenueTimeoutMs     int     `yaml:"venue_timeout_ms"`
	RoundTimeoutMs     int     `yaml:"round_timeout_ms"`
	SwapRatioThreshold float64 `yaml:"swap_ratio_threshold"`
	DefaultTolerance   float64 `yaml:"default_tolerance"`

	VaultBaseGas     uint64 `yaml:"vault_base_gas"`
	VaultRebaseGas   uint64 `yaml:"vault_rebase_gas"`
	VaultAllocateGas uint64 `yaml:"vault_allocate_gas"`
	CurveApproveGas  uint64 `yaml:"curve_approve_gas"`

	GasBufferBps uint64 `yaml:"gas_buffer_bps"`

	// Venues ограничивает набор площадок; пусто - все площадки продукта.
	Venues []string `yaml:"venues"`
}

type PriceConfig struct {
	Source     string   `yaml:"source"` // chainlink | mexc | stream | univ3 | static
	Fallbacks  []string `yaml:"fallbacks"`
	StaticUSD  float64  `yaml:"static_usd"`
	CacheTTLMs int      `yaml:"cache_ttl_ms"`
	MaxAgeSec  int      `yaml:"max_age_sec"`

	MEXC struct {
		RestURL string `yaml:"rest_url"`
		Symbol  string `yaml:"symbol"`
	} `yaml:"mexc"`

	Stream struct {
		WsURL  string `yaml:"ws_url"`
		Symbol string `yaml:"symbol"`
	} `yaml:"stream"`

	// спот из пула WETH/<Quote> Uniswap V3
	UniV3 struct {
		Quote    string   `yaml:"quote"`
		FeeTiers []uint32 `yaml:"fee_tiers"`
	} `yaml:"univ3"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Stream    string `yaml:"stream"`
	ActiveKey string `yaml:"active_key"`
	LatestNS  string `yaml:"latest_ns"`
	StreamMax int64  `yaml:"stream_max"`
}

// RiskConfig: 0 - проверка выключена.
type RiskConfig struct {
	MaxGasUSD         float64 `yaml:"max_gas_usd"`
	MaxEffectivePrice float64 `yaml:"max_effective_price"`
}

type APIConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	SessionTTLSec  int    `yaml:"session_ttl_sec"`
	ClientRPS      int    `yaml:"client_rps"`
	ClientBurst    int    `yaml:"client_burst"`
	RequestTimeout int    `yaml:"request_timeout_ms"`
}

type Config struct {
	Product  string `yaml:"product"` // oeth | ousd
	LogLevel string `yaml:"log_level"`

	Chain     ChainConfig     `yaml:"chain"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Price     PriceConfig     `yaml:"price"`
	Redis     RedisConfig     `yaml:"redis"`
	Risk      RiskConfig      `yaml:"risk"`
	API       APIConfig       `yaml:"api"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
}

// Load читает yaml, подтягивает .env и ESTIMATOR_* переменные, заполняет дефолты.
// Пустой path - только env и дефолты.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	setStr(&c.Product, "ESTIMATOR_PRODUCT")
	setStr(&c.LogLevel, "ESTIMATOR_LOG_LEVEL")
	setStr(&c.Chain.RPCHTTP, "ESTIMATOR_RPC_HTTP")
	setStr(&c.Chain.Multicall, "ESTIMATOR_MULTICALL")
	setStr(&c.Redis.Addr, "ESTIMATOR_REDIS_ADDR")
	setStr(&c.Redis.Password, "ESTIMATOR_REDIS_PASSWORD")
	setStr(&c.API.ListenAddr, "ESTIMATOR_API_ADDR")
	setStr(&c.Metrics.ListenAddr, "ESTIMATOR_METRICS_ADDR")
	setStr(&c.Price.Source, "ESTIMATOR_PRICE_SOURCE")
	if v := os.Getenv("ESTIMATOR_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Chain.ChainID = id
		}
	}
	if v := os.Getenv("ESTIMATOR_REDIS_ENABLED"); v != "" {
		c.Redis.Enabled, _ = strconv.ParseBool(v)
	}
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Product == "" {
		c.Product = "oeth"
	}
	c.Product = strings.ToLower(c.Product)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Chain.Network == "" {
		c.Chain.Network = "mainnet"
	}
	if c.Chain.ChainID == 0 {
		c.Chain.ChainID = 1
	}
	if c.Chain.Multicall == "" {
		c.Chain.Multicall = "0x5BA1e12693Dc8F9c48aAD8770482f4739bEeD696" // Multicall2 mainnet
	}
	if c.Chain.MaxRetries == 0 {
		c.Chain.MaxRetries = 3
	}
	if c.Chain.RetryMaxElapsedMs == 0 {
		c.Chain.RetryMaxElapsedMs = 5000
	}
	if c.Chain.RequestsPerSecond == 0 {
		c.Chain.RequestsPerSecond = 25
	}
	if c.Chain.Burst == 0 {
		c.Chain.Burst = 50
	}
	if c.Chain.FallbackTipGwei == 0 {
		c.Chain.FallbackTipGwei = 1
	}

	e := &c.Estimator
	if e.DebounceMs == 0 {
		e.DebounceMs = 1000
	}
	if e.VenueTimeoutMs == 0 {
		e.VenueTimeoutMs = 8000
	}
	if e.RoundTimeoutMs == 0 {
		e.RoundTimeoutMs = 15000
	}
	if e.SwapRatioThreshold == 0 {
		e.SwapRatioThreshold = 1.2
	}
	if e.DefaultTolerance == 0 {
		e.DefaultTolerance = 0.001
	}
	if e.VaultBaseGas == 0 {
		e.VaultBaseGas = 220000
	}
	if e.VaultRebaseGas == 0 {
		e.VaultRebaseGas = 510000
	}
	if e.VaultAllocateGas == 0 {
		e.VaultAllocateGas = 2900000
	}
	if e.CurveApproveGas == 0 {
		e.CurveApproveGas = 350000
	}
	if e.GasBufferBps == 0 {
		e.GasBufferBps = 1000
	}

	// источник цены ETH/USD; для OUSD актив всегда $1, ETH нужен только для газа
	if c.Price.Source == "" {
		c.Price.Source = "chainlink"
	}
	if c.Price.StaticUSD == 0 {
		c.Price.StaticUSD = 1
	}
	if c.Price.CacheTTLMs == 0 {
		c.Price.CacheTTLMs = 10000
	}
	if c.Price.MaxAgeSec == 0 {
		c.Price.MaxAgeSec = 3600
	}
	if c.Price.MEXC.RestURL == "" {
		c.Price.MEXC.RestURL = "https://api.mexc.com"
	}
	if c.Price.MEXC.Symbol == "" {
		c.Price.MEXC.Symbol = "ETHUSDT"
	}
	if c.Price.Stream.WsURL == "" {
		c.Price.Stream.WsURL = "wss://stream.binance.com:9443/ws"
	}
	if c.Price.Stream.Symbol == "" {
		c.Price.Stream.Symbol = "ETHUSDT"
	}
	if c.Price.UniV3.Quote == "" {
		c.Price.UniV3.Quote = "USDC"
	}
	if len(c.Price.UniV3.FeeTiers) == 0 {
		c.Price.UniV3.FeeTiers = []uint32{500, 3000}
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "estimate:stream"
	}
	if c.Redis.ActiveKey == "" {
		c.Redis.ActiveKey = "estimate:active"
	}
	if c.Redis.LatestNS == "" {
		c.Redis.LatestNS = "estimate:latest:"
	}
	if c.Redis.StreamMax == 0 {
		c.Redis.StreamMax = 10000
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.SessionTTLSec == 0 {
		c.API.SessionTTLSec = 900
	}
	if c.API.ClientRPS == 0 {
		c.API.ClientRPS = 5
	}
	if c.API.ClientBurst == 0 {
		c.API.ClientBurst = 10
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = 20000
	}
}

func (c *Config) Validate() error {
	switch c.Product {
	case "oeth", "ousd":
	default:
		return fmt.Errorf("unknown product %q", c.Product)
	}
	if c.Estimator.SwapRatioThreshold <= 1 {
		return fmt.Errorf("swap_ratio_threshold must be > 1, got %v", c.Estimator.SwapRatioThreshold)
	}
	if c.Risk.MaxGasUSD < 0 || c.Risk.MaxEffectivePrice < 0 {
		return fmt.Errorf("risk limits must be >= 0")
	}
	if c.Estimator.DefaultTolerance < 0 || c.Estimator.DefaultTolerance >= 1 {
		return fmt.Errorf("default_tolerance must be in [0,1), got %v", c.Estimator.DefaultTolerance)
	}
	return nil
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Estimator.DebounceMs) * time.Millisecond
}
func (c *Config) VenueTimeout() time.Duration {
	return time.Duration(c.Estimator.VenueTimeoutMs) * time.Millisecond
}
func (c *Config) RoundTimeout() time.Duration {
	return time.Duration(c.Estimator.RoundTimeoutMs) * time.Millisecond
}
func (c *Config) PriceCacheTTL() time.Duration {
	return time.Duration(c.Price.CacheTTLMs) * time.Millisecond
}
func (c *Config) PriceMaxAge() time.Duration {
	return time.Duration(c.Price.MaxAgeSec) * time.Second
}
func (c *Config) RetryMaxElapsed() time.Duration {
	return time.Duration(c.Chain.RetryMaxElapsedMs) * time.Millisecond
}
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.API.SessionTTLSec) * time.Second
}
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Millisecond
}
