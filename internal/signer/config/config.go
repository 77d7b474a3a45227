/**
 * @description
 * This file is responsible for managing the configuration for the remote-signer service.
 * It loads environment variables from a .env file and the system environment.
 *
 * Key features:
 * - Structured Config: Defines a `Config` struct to hold all configuration parameters.
 * - .env Loading: Uses the `godotenv` library to load variables from a `.env.local` file
 *   for easy local development.
 * - Validation: The service refuses to start without a key source.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the remote-signer application.
type Config struct {
	Port  string
	Stage string
	// FeePayerSecretARN names the Secrets Manager secret holding the key.
	FeePayerSecretARN string
	// FeePayerPrivateKey is the fallback when no ARN is set or the fetch fails.
	FeePayerPrivateKey string
}

/**
 * @description
 * LoadConfig reads configuration from environment variables and/or a .env.local file.
 *
 * @param path The path to the directory containing the .env.local file.
 * @returns An error if neither FEE_PAYER_SECRET_ARN nor FEE_PAYER_PRIVATE_KEY is set.
 */
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load(filepath.Join(path, ".env.local"))

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8081"
	}
	config.Stage = os.Getenv("STAGE")
	if config.Stage == "" {
		config.Stage = "development"
	}

	config.FeePayerSecretARN = os.Getenv("FEE_PAYER_SECRET_ARN")
	config.FeePayerPrivateKey = os.Getenv("FEE_PAYER_PRIVATE_KEY")
	if config.FeePayerSecretARN == "" && config.FeePayerPrivateKey == "" {
		return Config{}, errors.New("FEE_PAYER_SECRET_ARN or FEE_PAYER_PRIVATE_KEY must be set")
	}

	return
}
