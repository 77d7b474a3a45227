package feepayer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/poly-pro/gas-station/internal/chain"
	"go.uber.org/zap"
)

// LocalSigner signs with an in-process key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  *zap.Logger
}

/**
 * @description
 * NewLocalSigner parses a hex-encoded secp256k1 key. The "0x" prefix is optional.
 *
 * @param privateKeyHex The fee payer key.
 * @param logger A structured logger.
 * @returns ErrInvalidKey when the key is empty or malformed.
 */
func NewLocalSigner(privateKeyHex string, logger *zap.Logger) (*LocalSigner, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		// the parse error can echo key material, so it is not wrapped
		return nil, fmt.Errorf("%w: not a valid secp256k1 key", ErrInvalidKey)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	logger.Info("fee payer signer ready", zap.String("fee_payer", address.Hex()))
	return &LocalSigner{key: key, address: address, logger: logger}, nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// Cosign signs the transaction's EIP-712 digest.
func (s *LocalSigner) Cosign(ctx context.Context, tx chain.SponsoredTransaction) (Authorization, error) {
	if err := tx.Validate(); err != nil {
		return Authorization{}, err
	}
	if tx.FeePayer != s.address {
		return Authorization{}, fmt.Errorf("%w: got %s", ErrFeePayerMismatch, tx.FeePayer.Hex())
	}

	digest, err := tx.Digest()
	if err != nil {
		return Authorization{}, err
	}
	sig, err := chain.SignDigest(digest, s.key)
	if err != nil {
		s.logger.Error("failed to sign sponsored transaction digest", zap.Error(err))
		return Authorization{}, fmt.Errorf("failed to sign digest: %w", err)
	}

	s.logger.Debug("co-signed sponsored transaction",
		zap.String("sender", tx.Sender.Hex()),
		zap.Uint64("nonce", tx.Nonce))
	return Authorization{
		FeePayer:  s.address,
		Signature: sig,
		Digest:    common.BytesToHash(digest),
	}, nil
}

var _ Signer = (*LocalSigner)(nil)
