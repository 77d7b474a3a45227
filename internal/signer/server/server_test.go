package server

import (
	"context"
	"math/big"
	"net"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/poly-pro/gas-station/internal/feepayer"
	"github.com/poly-pro/gas-station/internal/signer/signerrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func startSigner(t *testing.T) (*feepayer.LocalSigner, *grpc.ClientConn) {
	t.Helper()
	local, err := feepayer.NewLocalSigner(testKey, zap.NewNop())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	signerrpc.RegisterFeePayerServer(s, NewGRPCServer(zap.NewNop(), local))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return local, conn
}

func transaction(feePayer common.Address) chain.SponsoredTransaction {
	return chain.SponsoredTransaction{
		ChainID:     137,
		Forwarder:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Sender:      common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		FeePayer:    feePayer,
		Target:      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		CallData:    []byte{0x01, 0x02},
		Nonce:       4,
		GasLimit:    250_000,
		MaxGasPrice: (*hexutil.Big)(big.NewInt(40_000_000_000)),
		ExpiresAt:   1_773_500_000,
	}
}

func TestRemoteSigner_RoundTrip(t *testing.T) {
	local, conn := startSigner(t)
	ctx := context.Background()

	remote, err := feepayer.NewRemoteSigner(ctx, conn, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, local.Address(), remote.Address())

	tx := transaction(remote.Address())
	auth, err := remote.Cosign(ctx, tx)
	require.NoError(t, err)
	assert.NoError(t, tx.VerifySigner(auth.Signature, local.Address()))

	want, err := local.Cosign(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, want.Digest, auth.Digest)
}

func TestServer_StatusCodes(t *testing.T) {
	local, conn := startSigner(t)
	client := signerrpc.NewFeePayerClient(conn)
	ctx := context.Background()

	other := transaction(common.HexToAddress("0x00000000000000000000000000000000000000fe"))
	_, err := client.Cosign(ctx, &signerrpc.CosignRequest{Transaction: other})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	invalid := transaction(local.Address())
	invalid.MaxGasPrice = nil
	_, err = client.Cosign(ctx, &signerrpc.CosignRequest{Transaction: invalid})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := client.Address(ctx, &signerrpc.AddressRequest{})
	require.NoError(t, err)
	assert.Equal(t, local.Address().Hex(), resp.Address)
}
