/**
 * @description
 * This file implements the gRPC server for the remote fee payer signer.
 * It validates incoming co-sign requests, signs with the fee payer key and maps
 * failures onto gRPC status codes.
 *
 * Key features:
 * - gRPC Service Implementation: Implements `signerrpc.FeePayerServer`.
 * - Dependency Injection: The server holds the logger and a `feepayer.Signer`,
 *   so it is testable without a network.
 * - Error Handling: `InvalidArgument` for malformed transactions, `PermissionDenied`
 *   for transactions naming another fee payer, `Internal` otherwise.
 */

package server

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/poly-pro/gas-station/internal/feepayer"
	"github.com/poly-pro/gas-station/internal/signer/signerrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server implements the gRPC FeePayer service.
type Server struct {
	signerrpc.UnimplementedFeePayerServer
	logger *zap.Logger
	signer feepayer.Signer
}

/**
 * @description
 * NewGRPCServer creates a new instance of the gRPC server.
 *
 * @param logger A structured logger.
 * @param s The fee payer signer holding the key.
 */
func NewGRPCServer(logger *zap.Logger, s feepayer.Signer) *Server {
	return &Server{
		logger: logger,
		signer: s,
	}
}

/**
 * @description
 * Cosign is the RPC handler for co-signing a sponsored transaction.
 *
 * @param ctx The context of the gRPC request.
 * @param req The transaction to co-sign.
 * @returns The fee payer signature and the digest it covers.
 */
func (s *Server) Cosign(ctx context.Context, req *signerrpc.CosignRequest) (*signerrpc.CosignResponse, error) {
	tx := req.Transaction
	s.logger.Info("received cosign request",
		zap.String("sender", tx.Sender.Hex()),
		zap.Uint64("nonce", tx.Nonce))

	auth, err := s.signer.Cosign(ctx, tx)
	switch {
	case err == nil:
	case errors.Is(err, chain.ErrInvalidTransaction):
		s.logger.Warn("cosign request rejected: invalid transaction", zap.Error(err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, feepayer.ErrFeePayerMismatch):
		s.logger.Warn("cosign request rejected: fee payer mismatch", zap.Error(err))
		return nil, status.Error(codes.PermissionDenied, err.Error())
	default:
		s.logger.Error("failed to cosign transaction", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to sign payload")
	}

	return &signerrpc.CosignResponse{
		FeePayer:  auth.FeePayer.Hex(),
		Signature: hexutil.Encode(auth.Signature),
		Digest:    auth.Digest.Hex(),
	}, nil
}

// Address returns the fee payer address.
func (s *Server) Address(ctx context.Context, _ *signerrpc.AddressRequest) (*signerrpc.AddressResponse, error) {
	return &signerrpc.AddressResponse{Address: s.signer.Address().Hex()}, nil
}
