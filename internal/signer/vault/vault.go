/**
 * @description
 * This file defines where the fee payer's private key comes from. The `Vault`
 * interface decouples signing from the secret store so both binaries (the API in
 * local mode and the remote signer) load the key the same way.
 *
 * Key features:
 * - SecretsManagerVault: reads the key from AWS Secrets Manager by ARN and falls back
 *   to a key supplied through the environment when no ARN is configured or the fetch fails.
 * - StaticVault: returns a key given at construction. For local development only.
 *
 * @notes
 * - A secret stored as a single-key JSON object (`{"private_key":"0x..."}`) is unwrapped.
 * - The key is read once at startup. A missing key is a configuration error and the
 *   caller is expected to exit.
 */

package vault

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
)

// ErrKeyNotFound is returned when no source yields a fee payer key.
var ErrKeyNotFound = errors.New("fee payer key not found")

// Vault defines the interface for a secret store.
type Vault interface {
	// FeePayerKey returns the fee payer's hex-encoded private key.
	FeePayerKey(ctx context.Context) (string, error)
}

// StaticVault is a Vault holding a key given at construction.
type StaticVault struct {
	privateKey string
}

/**
 * @description
 * NewStaticVault creates a vault around a key taken from the environment.
 *
 * @param privateKey The hex-encoded key.
 * @param logger A structured logger.
 * @returns An error if the provided private key is empty.
 */
func NewStaticVault(privateKey string, logger *zap.Logger) (*StaticVault, error) {
	if strings.TrimSpace(privateKey) == "" {
		return nil, ErrKeyNotFound
	}
	logger.Warn("fee payer key loaded from environment. THIS IS NOT FOR PRODUCTION USE.")
	return &StaticVault{privateKey: privateKey}, nil
}

func (v *StaticVault) FeePayerKey(ctx context.Context) (string, error) {
	return v.privateKey, nil
}

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerVault reads the key from AWS Secrets Manager.
type SecretsManagerVault struct {
	client    SecretsAPI
	secretARN string
	fallback  string
	logger    *zap.Logger
}

// NewSecretsManagerVault wraps an existing Secrets Manager client.
func NewSecretsManagerVault(client SecretsAPI, secretARN, fallback string, logger *zap.Logger) *SecretsManagerVault {
	return &SecretsManagerVault{
		client:    client,
		secretARN: secretARN,
		fallback:  fallback,
		logger:    logger,
	}
}

/**
 * @description
 * NewSecretsManagerVaultFromEnv builds a Secrets Manager client from the default AWS
 * configuration chain (environment, shared config, IAM role).
 */
func NewSecretsManagerVaultFromEnv(ctx context.Context, secretARN, fallback string, logger *zap.Logger) (*SecretsManagerVault, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewSecretsManagerVault(secretsmanager.NewFromConfig(cfg), secretARN, fallback, logger), nil
}

func (v *SecretsManagerVault) FeePayerKey(ctx context.Context) (string, error) {
	if v.secretARN != "" {
		out, err := v.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(v.secretARN),
		})
		if err == nil && out.SecretString != nil && *out.SecretString != "" {
			v.logger.Info("fee payer key fetched from secrets manager", zap.String("secret_arn", v.secretARN))
			return unwrapSecret(*out.SecretString), nil
		}
		v.logger.Warn("failed to fetch fee payer key from secrets manager, falling back to environment",
			zap.String("secret_arn", v.secretARN),
			zap.Error(err))
	}

	if strings.TrimSpace(v.fallback) != "" {
		v.logger.Warn("using fee payer key from environment")
		return v.fallback, nil
	}
	return "", ErrKeyNotFound
}

// New picks the vault for the configured key source. An ARN selects Secrets
// Manager with privateKey as its fallback; otherwise the key is used directly.
func New(ctx context.Context, secretARN, privateKey string, logger *zap.Logger) (Vault, error) {
	if secretARN == "" {
		return NewStaticVault(privateKey, logger)
	}
	return NewSecretsManagerVaultFromEnv(ctx, secretARN, privateKey, logger)
}

// unwrapSecret returns the only value of a single-key JSON object, or s unchanged.
func unwrapSecret(s string) string {
	var obj map[string]string
	if err := json.Unmarshal([]byte(s), &obj); err == nil && len(obj) == 1 {
		for _, v := range obj {
			return v
		}
	}
	return strings.TrimSpace(s)
}

var (
	_ Vault = (*StaticVault)(nil)
	_ Vault = (*SecretsManagerVault)(nil)
)
