package feepayer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// well-known test key; address 0x2c7536E3605D9C16a7a3D7b1898e529396a65c23
const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func sponsoredTx(feePayer common.Address) chain.SponsoredTransaction {
	return chain.SponsoredTransaction{
		ChainID:     137,
		Forwarder:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Sender:      common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		FeePayer:    feePayer,
		Target:      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		CallData:    []byte{0xde, 0xad},
		Nonce:       1,
		GasLimit:    300_000,
		MaxGasPrice: (*hexutil.Big)(big.NewInt(30_000_000_000)),
		ExpiresAt:   1_773_500_000,
	}
}

func TestNewLocalSigner(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "prefixed", key: testKey},
		{name: "unprefixed", key: testKey[2:]},
		{name: "empty", key: "", wantErr: true},
		{name: "whitespace", key: "   ", wantErr: true},
		{name: "not hex", key: "0xnothex", wantErr: true},
		{name: "short", key: "0x1234", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewLocalSigner(tt.key, zap.NewNop())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), s.Address())
		})
	}
}

func TestLocalSigner_Cosign(t *testing.T) {
	s, err := NewLocalSigner(testKey, zap.NewNop())
	require.NoError(t, err)

	tx := sponsoredTx(s.Address())
	auth, err := s.Cosign(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), auth.FeePayer)
	assert.NoError(t, tx.VerifySigner(auth.Signature, s.Address()))

	digest, err := tx.Digest()
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(digest), auth.Digest)
}

func TestLocalSigner_CosignRefusesOtherFeePayer(t *testing.T) {
	s, err := NewLocalSigner(testKey, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Cosign(context.Background(), sponsoredTx(common.HexToAddress("0x00000000000000000000000000000000000000fe")))
	assert.ErrorIs(t, err, ErrFeePayerMismatch)
}

func TestLocalSigner_CosignRejectsInvalidTransaction(t *testing.T) {
	s, err := NewLocalSigner(testKey, zap.NewNop())
	require.NoError(t, err)

	tx := sponsoredTx(s.Address())
	tx.GasLimit = 0
	_, err = s.Cosign(context.Background(), tx)
	assert.ErrorIs(t, err, chain.ErrInvalidTransaction)
}
