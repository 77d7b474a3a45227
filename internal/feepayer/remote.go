package feepayer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/poly-pro/gas-station/internal/signer/signerrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"go.uber.org/zap"
)

/**
 * @description
 * RemoteSigner delegates co-signing to the remote signer service.
 *
 * @notes
 * - The connection is insecure for local development. In production the signer sits
 *   on a private network and this MUST be configured with TLS credentials.
 */
type RemoteSigner struct {
	conn    *grpc.ClientConn
	client  signerrpc.FeePayerClient
	address common.Address
	logger  *zap.Logger
}

// DialRemoteSigner connects to the signer at address and fetches its fee payer
// address once. Failure to reach the signer at startup is returned as an error.
func DialRemoteSigner(ctx context.Context, address string, logger *zap.Logger, opts ...grpc.DialOption) (*RemoteSigner, error) {
	logger.Info("connecting to remote signer service", zap.String("address", address))

	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote signer: %w", err)
	}

	s, err := NewRemoteSigner(ctx, conn, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// NewRemoteSigner builds a RemoteSigner over an existing connection.
func NewRemoteSigner(ctx context.Context, cc grpc.ClientConnInterface, logger *zap.Logger) (*RemoteSigner, error) {
	client := signerrpc.NewFeePayerClient(cc)
	resp, err := client.Address(ctx, &signerrpc.AddressRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fee payer address: %w", err)
	}
	if !common.IsHexAddress(resp.Address) {
		return nil, fmt.Errorf("remote signer returned malformed address %q", resp.Address)
	}
	return &RemoteSigner{
		client:  client,
		address: common.HexToAddress(resp.Address),
		logger:  logger,
	}, nil
}

func (s *RemoteSigner) Address() common.Address {
	return s.address
}

func (s *RemoteSigner) Cosign(ctx context.Context, tx chain.SponsoredTransaction) (Authorization, error) {
	if tx.FeePayer != s.address {
		return Authorization{}, fmt.Errorf("%w: got %s", ErrFeePayerMismatch, tx.FeePayer.Hex())
	}

	resp, err := s.client.Cosign(ctx, &signerrpc.CosignRequest{Transaction: tx})
	if err != nil {
		s.logger.Error("remote signer returned an error", zap.Error(err), zap.String("sender", tx.Sender.Hex()))
		return Authorization{}, err
	}

	sig, err := hexutil.Decode(resp.Signature)
	if err != nil {
		return Authorization{}, fmt.Errorf("%w: %v", chain.ErrInvalidSignature, err)
	}
	// the remote side is trusted with the key, not with returning the right signature
	if err := tx.VerifySigner(sig, s.address); err != nil {
		return Authorization{}, err
	}
	digest, err := tx.Digest()
	if err != nil {
		return Authorization{}, err
	}

	return Authorization{
		FeePayer:  s.address,
		Signature: sig,
		Digest:    common.BytesToHash(digest),
	}, nil
}

// Close terminates the connection. It is a no-op for signers built with NewRemoteSigner.
func (s *RemoteSigner) Close() error {
	if s.conn == nil {
		return nil
	}
	s.logger.Info("closing connection to remote signer service")
	return s.conn.Close()
}

var _ Signer = (*RemoteSigner)(nil)
