package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPIClient_GetMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/markets/m-1":
			_, _ = w.Write([]byte(`{"id":"m-1","address":"0x2222222222222222222222222222222222222222","status":"active","gasSponsorshipEnabled":true,"question":"Will it rain?"}`))
		case "/markets/m-2":
			_, _ = w.Write([]byte(`{"address":"0x3333333333333333333333333333333333333333","status":"resolved"}`))
		case "/markets/broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"database unavailable"}`))
		case "/markets/garbled":
			_, _ = w.Write([]byte(`{not json`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", zap.NewNop())
	ctx := context.Background()

	m, err := c.GetMarket(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, m.Active())
	assert.True(t, m.GasSponsorshipEnabled)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", m.Address)

	m, err = c.GetMarket(ctx, "m-2")
	require.NoError(t, err)
	assert.Equal(t, "m-2", m.ID)
	assert.False(t, m.Active())
	assert.False(t, m.GasSponsorshipEnabled)

	_, err = c.GetMarket(ctx, "missing")
	assert.ErrorIs(t, err, ErrMarketNotFound)

	_, err = c.GetMarket(ctx, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.NotErrorIs(t, err, ErrMarketNotFound)

	_, err = c.GetMarket(ctx, "garbled")
	assert.Error(t, err)
}
