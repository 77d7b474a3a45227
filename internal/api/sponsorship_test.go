package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/poly-pro/gas-station/internal/auth"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/poly-pro/gas-station/internal/config"
	"github.com/poly-pro/gas-station/internal/feepayer"
	"github.com/poly-pro/gas-station/internal/market"
	"github.com/poly-pro/gas-station/internal/mocks"
	"github.com/poly-pro/gas-station/internal/quota"
	"github.com/poly-pro/gas-station/internal/services"
	"github.com/poly-pro/gas-station/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	testWalletHeader = "X-Test-Wallet"
	feePayerKey      = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

var (
	forwarder     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	marketAddress = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeAuth trusts a test header instead of a JWT.
func fakeAuth(c *gin.Context) {
	address := c.GetHeader(testWalletHeader)
	if address == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error"})
		return
	}
	c.Set(string(auth.WalletAddressKey), strings.ToLower(address))
	c.Next()
}

type apiFixture struct {
	server  *Server
	store   *quota.MemoryStore
	chain   *mocks.MockClient
	markets *mocks.MockProvider
	userKey *ecdsa.PrivateKey
	user    common.Address
}

func newAPIFixture(t *testing.T, rps int) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	signer, err := feepayer.NewLocalSigner(feePayerKey, zap.NewNop())
	require.NoError(t, err)
	userKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	f := &apiFixture{
		store:   quota.NewMemoryStore(),
		chain:   mocks.NewMockClient(ctrl),
		markets: mocks.NewMockProvider(ctrl),
		userKey: userKey,
		user:    crypto.PubkeyToAddress(userKey.PublicKey),
	}
	f.store.SetConfig(quota.GasStationConfig{
		FeePayerAddress:      signer.Address().Hex(),
		DefaultDailyLimit:    50_000_000_000_000_000,
		MaxGasPerTransaction: 20_000_000_000_000_000,
		Enabled:              true,
	})

	quotas := services.NewQuotaService(f.store, quota.NewConfigCache(f.store, nil, time.Minute, zap.NewNop()), zap.NewNop())
	sponsorships := services.NewSponsorshipService(quotas, f.markets, f.chain, signer, nil, services.SponsorshipConfig{
		ChainID:         137,
		Forwarder:       forwarder,
		DefaultGasLimit: 300_000,
		PreparedTxTTL:   2 * time.Minute,
		FinalityTimeout: time.Second,
	}, zap.NewNop())
	hub := websocket.NewHub(ctx, zap.NewNop(), nil, services.EventChannelPrefix)
	go hub.Run()

	f.server = NewServer(ctx, config.Config{RateLimitRPS: rps, RateLimitBurst: rps}, Dependencies{
		Quotas:       quotas,
		Sponsorships: sponsorships,
		Hub:          hub,
		Auth:         fakeAuth,
	}, zap.NewNop())
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testWalletHeader, f.user.Hex())
	w := httptest.NewRecorder()
	f.server.Router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) market(status market.Status) {
	f.markets.EXPECT().GetMarket(gomock.Any(), "m-1").Return(market.Market{
		ID: "m-1", Address: marketAddress.Hex(), Status: status, GasSponsorshipEnabled: true,
	}, nil)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, 10)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.server.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(CorrelationIDHeader))
}

func TestGetQuota(t *testing.T) {
	f := newAPIFixture(t, 10)
	w := f.do(t, http.MethodGet, "/api/v1/sponsorship/quota", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Quota   services.QuotaStatus `json:"quota"`
			Display map[string]string    `json:"display"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, int64(50_000_000_000_000_000), body.Data.Quota.DailyLimit)
	assert.True(t, body.Data.Quota.WouldApproveDefaultTx)
	assert.Equal(t, "0.05", body.Data.Display["dailyLimit"])
}

func TestPrepare_Validation(t *testing.T) {
	f := newAPIFixture(t, 10)
	tests := []struct {
		name string
		body gin.H
	}{
		{name: "missing option", body: gin.H{"marketId": "m-1", "amount": "10"}},
		{name: "fractional amount", body: gin.H{"marketId": "m-1", "optionIndex": 0, "amount": "1.5"}},
		{name: "negative amount", body: gin.H{"marketId": "m-1", "optionIndex": 0, "amount": "-3"}},
		{name: "bad market ref", body: gin.H{"marketId": "../etc", "optionIndex": 0, "amount": "10"}},
		{name: "bad market address", body: gin.H{"marketId": "m-1", "marketAddress": "0x12", "optionIndex": 0, "amount": "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/sponsorship/prepare", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestPrepare_Denied(t *testing.T) {
	f := newAPIFixture(t, 10)
	f.market(market.StatusPending)

	w := f.do(t, http.MethodPost, "/api/v1/sponsorship/prepare", gin.H{"marketId": "m-1", "optionIndex": 1, "amount": "1000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"denied"`, jsonField(t, w, "status"))
	assert.JSONEq(t, `"MarketNotActive"`, jsonField(t, w, "reason"))
}

func TestPrepare_MarketNotFound(t *testing.T) {
	f := newAPIFixture(t, 10)
	f.markets.EXPECT().GetMarket(gomock.Any(), "m-1").Return(market.Market{}, market.ErrMarketNotFound)

	w := f.do(t, http.MethodPost, "/api/v1/sponsorship/prepare", gin.H{"marketId": "m-1", "optionIndex": 1, "amount": "1000"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrepareAndSubmit(t *testing.T) {
	f := newAPIFixture(t, 10)
	f.market(market.StatusActive)
	f.chain.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(30_000_000_000), nil)
	f.chain.EXPECT().PendingNonce(gomock.Any(), forwarder, f.user).Return(uint64(2), nil)

	w := f.do(t, http.MethodPost, "/api/v1/sponsorship/prepare", gin.H{
		"marketId":      "m-1",
		"marketAddress": marketAddress.Hex(),
		"optionIndex":   1,
		"amount":        "2500000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var prepared struct {
		Status string                       `json:"status"`
		Data   services.PreparedSponsorship `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prepared))
	require.Equal(t, "success", prepared.Status)
	tx := prepared.Data.Transaction
	assert.Equal(t, f.user, tx.Sender)

	digest, err := tx.Digest()
	require.NoError(t, err)
	userSig, err := chain.SignDigest(digest, f.userKey)
	require.NoError(t, err)

	hash := common.HexToHash("0xabc123")
	f.market(market.StatusActive)
	f.chain.EXPECT().SubmitSponsored(gomock.Any(), gomock.Any()).Return(hash, nil)
	f.chain.EXPECT().WaitForFinality(gomock.Any(), hash).Return(chain.Receipt{
		TxHash: hash, Status: 1, GasUsed: 100_000, EffectiveGasPrice: big.NewInt(30_000_000_000), BlockNumber: 10, BlockTime: time.Now(),
	}, nil)

	w = f.do(t, http.MethodPost, "/api/v1/sponsorship/submit", gin.H{
		"transaction":       tx,
		"feePayerSignature": prepared.Data.FeePayerSignature,
		"userSignature":     hexutil.Bytes(userSig),
		"marketId":          "m-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var submitted struct {
		Status string `json:"status"`
		Data   struct {
			TotalFee        int64  `json:"totalFee"`
			TotalFeeDisplay string `json:"totalFeeDisplay"`
			Recorded        bool   `json:"recorded"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	assert.Equal(t, "success", submitted.Status)
	assert.Equal(t, int64(3_000_000_000_000_000), submitted.Data.TotalFee)
	assert.Equal(t, "0.003", submitted.Data.TotalFeeDisplay)
	assert.True(t, submitted.Data.Recorded)
}

func TestSubmit_Errors(t *testing.T) {
	f := newAPIFixture(t, 10)
	signer, err := feepayer.NewLocalSigner(feePayerKey, zap.NewNop())
	require.NoError(t, err)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := chain.SponsoredTransaction{
		ChainID:     137,
		Forwarder:   forwarder,
		Sender:      crypto.PubkeyToAddress(other.PublicKey),
		FeePayer:    signer.Address(),
		Target:      marketAddress,
		CallData:    []byte{0x01},
		Nonce:       1,
		GasLimit:    300_000,
		MaxGasPrice: (*hexutil.Big)(big.NewInt(1)),
		ExpiresAt:   time.Now().Add(time.Minute).Unix(),
	}
	authz, err := signer.Cosign(context.Background(), tx)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/sponsorship/submit", gin.H{
		"transaction":       tx,
		"feePayerSignature": authz.Signature,
		"userSignature":     hexutil.Bytes(make([]byte, 65)),
		"marketId":          "m-1",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sponsorship/submit", gin.H{"transaction": tx})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the market reference is required
	w = f.do(t, http.MethodPost, "/api/v1/sponsorship/submit", gin.H{
		"transaction":       tx,
		"feePayerSignature": authz.Signature,
		"userSignature":     hexutil.Bytes(make([]byte, 65)),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmit_MarketMustMatchTarget(t *testing.T) {
	f := newAPIFixture(t, 10)
	signer, err := feepayer.NewLocalSigner(feePayerKey, zap.NewNop())
	require.NoError(t, err)

	tx := chain.SponsoredTransaction{
		ChainID:     137,
		Forwarder:   forwarder,
		Sender:      f.user,
		FeePayer:    signer.Address(),
		Target:      marketAddress,
		CallData:    []byte{0x01},
		Nonce:       1,
		GasLimit:    300_000,
		MaxGasPrice: (*hexutil.Big)(big.NewInt(1)),
		ExpiresAt:   time.Now().Add(time.Minute).Unix(),
	}
	authz, err := signer.Cosign(context.Background(), tx)
	require.NoError(t, err)
	digest, err := tx.Digest()
	require.NoError(t, err)
	userSig, err := chain.SignDigest(digest, f.userKey)
	require.NoError(t, err)

	f.markets.EXPECT().GetMarket(gomock.Any(), "m-2").Return(market.Market{
		ID: "m-2", Address: "0x3333333333333333333333333333333333333333", Status: market.StatusActive,
	}, nil)

	w := f.do(t, http.MethodPost, "/api/v1/sponsorship/submit", gin.H{
		"transaction":       tx,
		"feePayerSignature": authz.Signature,
		"userSignature":     hexutil.Bytes(userSig),
		"marketId":          "m-2",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestPrepare_CallerEstimateCannotLowerCheckedFee(t *testing.T) {
	f := newAPIFixture(t, 10)
	f.store.SetDailyQuota(quota.UserDailyQuota{
		UserAddress: strings.ToLower(f.user.Hex()),
		Date:        quota.UsageDate(time.Now()),
		GasUsed:     50_000_000_000_000_000 - 10,
	})
	f.market(market.StatusActive)
	f.chain.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(30_000_000_000), nil)

	w := f.do(t, http.MethodPost, "/api/v1/sponsorship/prepare", gin.H{
		"marketId":         "m-1",
		"optionIndex":      1,
		"amount":           "1000",
		"estimatedGasCost": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"denied"`, jsonField(t, w, "status"))
	assert.JSONEq(t, `"DailyQuotaExceeded"`, jsonField(t, w, "reason"))
}

func TestRateLimit(t *testing.T) {
	f := newAPIFixture(t, 1)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/sponsorship/quota", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/api/v1/sponsorship/quota", nil).Code)
}

func TestUnauthenticated(t *testing.T) {
	f := newAPIFixture(t, 10)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sponsorship/quota", nil)
	w := httptest.NewRecorder()
	f.server.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func jsonField(t *testing.T, w *httptest.ResponseRecorder, key string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return string(m[key])
}
