/**
 * @description
 * This package is the FeePayerSigner: the single sponsor identity that co-signs
 * sponsored transactions as fee payer. The rest of the service only sees the
 * `Signer` interface; the key itself never leaves the implementation.
 *
 * Key features:
 * - LocalSigner: holds the key in-process. Construction fails on an absent or
 *   malformed key, which callers treat as fatal.
 * - RemoteSigner: forwards co-signing to the isolated remote signer over gRPC and
 *   verifies that the returned signature recovers to the advertised address.
 *
 * @notes
 * - A transaction whose FeePayer field names a different account is refused, so a
 *   caller cannot obtain a signature that the forwarder would charge elsewhere.
 */

package feepayer

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/poly-pro/gas-station/internal/chain"
)

var (
	// ErrInvalidKey is returned when the configured key cannot be parsed.
	ErrInvalidKey = errors.New("invalid fee payer private key")
	// ErrFeePayerMismatch is returned when a transaction names another fee payer.
	ErrFeePayerMismatch = errors.New("transaction fee payer does not match signer")
)

// Authorization is the fee payer's co-signature over a sponsored transaction.
type Authorization struct {
	FeePayer  common.Address `json:"feePayer"`
	Signature hexutil.Bytes  `json:"signature"`
	Digest    common.Hash    `json:"digest"`
}

// Signer co-signs sponsored transactions as fee payer.
type Signer interface {
	Address() common.Address
	Cosign(ctx context.Context, tx chain.SponsoredTransaction) (Authorization, error)
}
