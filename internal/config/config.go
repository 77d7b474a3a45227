/**
 * @description
 * This file is responsible for managing the gas station API's configuration.
 * It loads environment variables from a .env file and the system environment,
 * making them available to the rest of the application in a structured format.
 *
 * Key features:
 * - Structured Config: Defines a `Config` struct to hold all configuration parameters.
 * - .env Loading: Uses the `godotenv` library to load variables from a `.env.local` file,
 *   which is ideal for local development.
 * - Validation: Missing critical variables are a startup error. The process must not
 *   come up half-configured, since it would then sponsor transactions it cannot account for.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxConfigCacheTTL bounds how stale the gas station configuration may be.
const MaxConfigCacheTTL = 60 * time.Second

// Fee payer modes.
const (
	FeePayerModeLocal  = "local"
	FeePayerModeRemote = "remote"
)

// Config holds all configuration for the gas station API.
// Values are read from environment variables or a .env file.
type Config struct {
	Port  string
	Stage string

	// DatabaseURL may be empty for local development, in which case an
	// in-memory quota store is used.
	DatabaseURL string
	RedisURL    string

	AuthIssuerURL string

	ChainRPCURL      string
	ChainID          int64
	ForwarderAddress string
	MarketAPIURL     string

	FeePayerMode        string
	RemoteSignerAddress string
	FeePayerSecretARN   string
	FeePayerPrivateKey  string

	ConfigCacheTTL  time.Duration
	PreparedTxTTL   time.Duration
	FinalityTimeout time.Duration
	DefaultGasLimit uint64

	RateLimitRPS   int
	RateLimitBurst int

	AllowedOrigins []string
}

/**
 * @description
 * LoadConfig reads configuration from environment variables and/or a .env.local file
 * located in the specified path.
 *
 * @param path The path to the directory containing the .env.local file.
 * @returns A Config struct populated with the loaded values, or an error if loading fails.
 *
 * @notes
 * - It first attempts to load from a .env.local file, then .env. If neither exists, it
 *   proceeds assuming environment variables are set directly.
 * - The fee payer key itself is not validated here; the signer constructor owns that.
 */
func LoadConfig(path string) (config Config, err error) {
	envLocalPath := filepath.Join(path, ".env.local")
	envPath := filepath.Join(path, ".env")
	if err := godotenv.Load(envLocalPath); err != nil {
		_ = godotenv.Load(envPath)
	}

	config.Port = getEnv("PORT", "8080")
	config.Stage = getEnv("STAGE", "development")
	config.DatabaseURL = os.Getenv("DATABASE_URL")
	config.RedisURL = os.Getenv("REDIS_URL")
	config.AuthIssuerURL = os.Getenv("AUTH_ISSUER_URL")
	config.ChainRPCURL = os.Getenv("CHAIN_RPC_URL")
	config.ForwarderAddress = os.Getenv("SPONSOR_FORWARDER_ADDRESS")
	config.MarketAPIURL = os.Getenv("MARKET_API_URL")
	config.FeePayerMode = strings.ToLower(getEnv("FEE_PAYER_MODE", FeePayerModeLocal))
	config.RemoteSignerAddress = os.Getenv("REMOTE_SIGNER_ADDRESS")
	config.FeePayerSecretARN = os.Getenv("FEE_PAYER_SECRET_ARN")
	config.FeePayerPrivateKey = os.Getenv("FEE_PAYER_PRIVATE_KEY")
	config.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"))

	if config.ChainID, err = getInt64("CHAIN_ID", 0); err != nil {
		return Config{}, err
	}
	if config.ConfigCacheTTL, err = getDuration("CONFIG_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if config.PreparedTxTTL, err = getDuration("PREPARED_TX_TTL", 2*time.Minute); err != nil {
		return Config{}, err
	}
	if config.FinalityTimeout, err = getDuration("FINALITY_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	gasLimit, err := getInt64("DEFAULT_GAS_LIMIT", 300_000)
	if err != nil {
		return Config{}, err
	}
	config.DefaultGasLimit = uint64(gasLimit)
	rps, err := getInt64("RATE_LIMIT_RPS", 5)
	if err != nil {
		return Config{}, err
	}
	burst, err := getInt64("RATE_LIMIT_BURST", 10)
	if err != nil {
		return Config{}, err
	}
	config.RateLimitRPS, config.RateLimitBurst = int(rps), int(burst)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks that all critical values are present and within bounds.
func (c Config) Validate() error {
	if c.AuthIssuerURL == "" {
		return errors.New("AUTH_ISSUER_URL is not set")
	}
	if c.ChainRPCURL == "" {
		return errors.New("CHAIN_RPC_URL is not set")
	}
	if c.ChainID <= 0 {
		return errors.New("CHAIN_ID must be a positive integer")
	}
	if c.ForwarderAddress == "" {
		return errors.New("SPONSOR_FORWARDER_ADDRESS is not set")
	}
	if c.MarketAPIURL == "" {
		return errors.New("MARKET_API_URL is not set")
	}
	switch c.FeePayerMode {
	case FeePayerModeLocal:
	case FeePayerModeRemote:
		if c.RemoteSignerAddress == "" {
			return errors.New("REMOTE_SIGNER_ADDRESS is required when FEE_PAYER_MODE=remote")
		}
	default:
		return fmt.Errorf("FEE_PAYER_MODE must be %q or %q, got %q", FeePayerModeLocal, FeePayerModeRemote, c.FeePayerMode)
	}
	if c.ConfigCacheTTL <= 0 || c.ConfigCacheTTL > MaxConfigCacheTTL {
		return fmt.Errorf("CONFIG_CACHE_TTL must be in (0, %s], got %s", MaxConfigCacheTTL, c.ConfigCacheTTL)
	}
	if c.PreparedTxTTL <= 0 {
		return errors.New("PREPARED_TX_TTL must be positive")
	}
	if c.FinalityTimeout <= 0 {
		return errors.New("FINALITY_TIMEOUT must be positive")
	}
	if c.DefaultGasLimit == 0 {
		return errors.New("DEFAULT_GAS_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
