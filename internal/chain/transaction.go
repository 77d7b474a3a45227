/**
 * @description
 * This file defines the sponsored transaction model and its EIP-712 encoding.
 * A sponsored transaction is a call the user wants executed at `Target`, relayed
 * through a forwarder contract which charges network fees to `FeePayer`. Both the
 * user and the fee payer sign the same EIP-712 digest; the forwarder accepts the
 * call only when both signatures recover to the addresses named in the message.
 *
 * Key features:
 * - EIP-712 Domain: `{name: "GasStation", version: "1", chainId, verifyingContract: forwarder}`.
 * - Typed message: `SponsoredCall`, covering every field, so neither signer can be
 *   replayed onto a different call, nonce, fee ceiling or expiry.
 * - Signature helpers: signing and recovery use go-ethereum's crypto package with
 *   V normalised to 27/28.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/signer/core/apitypes: EIP-712 hashing.
 * - github.com/ethereum/go-ethereum/crypto: Keccak256, Sign, SigToPub.
 */

package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "GasStation"
	DomainVersion = "1"
	PrimaryType   = "SponsoredCall"
)

var (
	// ErrInvalidSignature is returned when a signature is malformed or unrecoverable.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidTransaction is returned when a transaction is missing required fields.
	ErrInvalidTransaction = errors.New("invalid sponsored transaction")
)

// SponsoredTypes describes the SponsoredCall message.
var SponsoredTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "sender", Type: "address"},
		{Name: "feePayer", Type: "address"},
		{Name: "target", Type: "address"},
		{Name: "data", Type: "bytes"},
		{Name: "nonce", Type: "uint256"},
		{Name: "gasLimit", Type: "uint256"},
		{Name: "maxGasPrice", Type: "uint256"},
		{Name: "expiresAt", Type: "uint256"},
	},
}

// SponsoredTransaction is an unsigned call requiring both user and fee-payer signatures.
type SponsoredTransaction struct {
	ChainID     int64          `json:"chainId"`
	Forwarder   common.Address `json:"forwarder"`
	Sender      common.Address `json:"sender"`
	FeePayer    common.Address `json:"feePayer"`
	Target      common.Address `json:"target"`
	CallData    hexutil.Bytes  `json:"callData"`
	Nonce       uint64         `json:"nonce"`
	GasLimit    uint64         `json:"gasLimit"`
	MaxGasPrice *hexutil.Big   `json:"maxGasPrice"`
	// ExpiresAt is a unix timestamp after which the forwarder rejects the call.
	ExpiresAt int64 `json:"expiresAt"`
}

// SignedTransaction carries both signatures over the same digest.
type SignedTransaction struct {
	Transaction       SponsoredTransaction `json:"transaction"`
	UserSignature     hexutil.Bytes        `json:"userSignature"`
	FeePayerSignature hexutil.Bytes        `json:"feePayerSignature"`
}

// Validate checks that every field the forwarder requires is present.
func (tx SponsoredTransaction) Validate() error {
	var zero common.Address
	switch {
	case tx.ChainID <= 0:
		return fmt.Errorf("%w: chain id is required", ErrInvalidTransaction)
	case tx.Forwarder == zero:
		return fmt.Errorf("%w: forwarder is required", ErrInvalidTransaction)
	case tx.Sender == zero:
		return fmt.Errorf("%w: sender is required", ErrInvalidTransaction)
	case tx.FeePayer == zero:
		return fmt.Errorf("%w: fee payer is required", ErrInvalidTransaction)
	case tx.Target == zero:
		return fmt.Errorf("%w: target is required", ErrInvalidTransaction)
	case tx.GasLimit == 0:
		return fmt.Errorf("%w: gas limit is required", ErrInvalidTransaction)
	case tx.MaxGasPrice == nil || tx.MaxGasPrice.ToInt().Sign() <= 0:
		return fmt.Errorf("%w: max gas price is required", ErrInvalidTransaction)
	}
	return nil
}

// MaxFee is the most the fee payer can be charged: GasLimit * MaxGasPrice.
func (tx SponsoredTransaction) MaxFee() *big.Int {
	if tx.MaxGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(tx.GasLimit), tx.MaxGasPrice.ToInt())
}

// TypedData returns the EIP-712 payload both parties sign.
func (tx SponsoredTransaction) TypedData() apitypes.TypedData {
	maxGasPrice := "0"
	if tx.MaxGasPrice != nil {
		maxGasPrice = tx.MaxGasPrice.ToInt().String()
	}
	return apitypes.TypedData{
		Types:       SponsoredTypes,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           math.NewHexOrDecimal256(tx.ChainID),
			VerifyingContract: tx.Forwarder.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sender":      tx.Sender.Hex(),
			"feePayer":    tx.FeePayer.Hex(),
			"target":      tx.Target.Hex(),
			"data":        hexutil.Encode(tx.CallData),
			"nonce":       strconv.FormatUint(tx.Nonce, 10),
			"gasLimit":    strconv.FormatUint(tx.GasLimit, 10),
			"maxGasPrice": maxGasPrice,
			"expiresAt":   strconv.FormatInt(tx.ExpiresAt, 10),
		},
	}
}

// Digest returns keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
func (tx SponsoredTransaction) Digest() ([]byte, error) {
	return TypedDataDigest(tx.TypedData())
}

// TypedDataDigest hashes an arbitrary EIP-712 payload.
func TypedDataDigest(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash EIP712 domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash EIP712 message: %w", err)
	}

	prefixedData := []byte{0x19, 0x01}
	prefixedData = append(prefixedData, domainSeparator...)
	prefixedData = append(prefixedData, messageHash...)
	return crypto.Keccak256(prefixedData), nil
}

// SignDigest signs a 32-byte digest and returns a 65-byte [R || S || V] signature with V in {27, 28}.
func SignDigest(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}
	normalised := make([]byte, len(sig))
	copy(normalised, sig)
	if normalised[64] >= 27 {
		normalised[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalised)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySigner reports whether sig over the transaction digest was produced by want.
func (tx SponsoredTransaction) VerifySigner(sig []byte, want common.Address) error {
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	got, err := RecoverSigner(digest, sig)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: signed by %s, expected %s", ErrInvalidSignature, got.Hex(), want.Hex())
	}
	return nil
}
