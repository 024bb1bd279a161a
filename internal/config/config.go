package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the environment-sourced configuration surface. Required
// values are checked once by Validate at startup; individual requests
// never fail on missing configuration.
type Config struct {
	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	// Ledger account provider
	LedgerRPCURL     string
	LedgerAccount    string
	LedgerPrivateKey string

	// Lightning leg
	LightningNetwork string // mainnet, testnet or regtest

	// Swap-execution provider
	ExecutorBaseURL string
	ExecutorAPIKey  string

	// Pricing guard: maximum acceptable fee/price deviation in parts-per-million
	MaxPriceDeviationPPM int64

	// Timeouts
	RequestTimeout time.Duration // per upstream HTTP/RPC call
	AwaitTimeout   time.Duration // counterparty settlement wait bound

	// Admission rate limiting (fixed window)
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Redis (optional, best-effort swap history)
	RedisAddr string
}

func Load() *Config {
	return &Config{
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		LedgerRPCURL:     getEnv("LEDGER_RPC_URL", ""),
		LedgerAccount:    getEnv("LEDGER_ACCOUNT_ADDRESS", ""),
		LedgerPrivateKey: getEnv("LEDGER_PRIVATE_KEY", ""),

		LightningNetwork: getEnv("LIGHTNING_NETWORK", "mainnet"),

		ExecutorBaseURL: getEnv("SWAP_EXECUTOR_URL", ""),
		ExecutorAPIKey:  getEnv("SWAP_EXECUTOR_API_KEY", ""),

		MaxPriceDeviationPPM: int64(getIntEnv("MAX_PRICE_DEVIATION_PPM", 20000)), // 2%

		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		AwaitTimeout:   getDurationEnv("AWAIT_TIMEOUT", 30*time.Minute),

		RateLimitWindow: getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:    getIntEnv("RATE_LIMIT_MAX", 100),

		RedisAddr: getEnv("REDIS_ADDR", ""),
	}
}

// Validate fails startup when required values are missing or nonsensical.
func (c *Config) Validate() error {
	if c.LedgerRPCURL == "" {
		return fmt.Errorf("LEDGER_RPC_URL is required")
	}
	if c.LedgerAccount == "" {
		return fmt.Errorf("LEDGER_ACCOUNT_ADDRESS is required")
	}
	if c.LedgerPrivateKey == "" {
		return fmt.Errorf("LEDGER_PRIVATE_KEY is required")
	}
	if c.ExecutorBaseURL == "" {
		return fmt.Errorf("SWAP_EXECUTOR_URL is required")
	}
	switch c.LightningNetwork {
	case "mainnet", "testnet", "regtest":
	default:
		return fmt.Errorf("LIGHTNING_NETWORK must be mainnet, testnet or regtest, got %q", c.LightningNetwork)
	}
	if c.MaxPriceDeviationPPM <= 0 || c.MaxPriceDeviationPPM >= 1_000_000 {
		return fmt.Errorf("MAX_PRICE_DEVIATION_PPM must be in (0, 1000000), got %d", c.MaxPriceDeviationPPM)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimitMax)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.AwaitTimeout <= 0 {
		return fmt.Errorf("AWAIT_TIMEOUT must be positive, got %s", c.AwaitTimeout)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
