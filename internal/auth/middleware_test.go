package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

const issuer = "https://auth.example.com"

var secret = []byte("test-secret")

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	r := gin.New()
	r.GET("/me", Middleware(keyFunc, issuer+"/"), func(c *gin.Context) {
		address, _ := WalletAddress(c)
		c.String(http.StatusOK, address)
	})

	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
		wantBody string
	}{
		{
			name:     "wallet claim",
			header:   "Bearer " + sign(t, jwt.MapClaims{"iss": issuer, "exp": exp, "sub": "user_1", WalletAddressClaim: "0x00000000000000000000000000000000000000A1"}),
			wantCode: http.StatusOK,
			wantBody: "0x00000000000000000000000000000000000000a1",
		},
		{
			name:     "address subject",
			header:   "Bearer " + sign(t, jwt.MapClaims{"iss": issuer, "exp": exp, "sub": "0x00000000000000000000000000000000000000b2"}),
			wantCode: http.StatusOK,
			wantBody: "0x00000000000000000000000000000000000000b2",
		},
		{
			name:     "query token",
			query:    "?token=" + sign(t, jwt.MapClaims{"iss": issuer, "exp": exp, WalletAddressClaim: "0x00000000000000000000000000000000000000c3"}),
			wantCode: http.StatusOK,
			wantBody: "0x00000000000000000000000000000000000000c3",
		},
		{name: "missing", wantCode: http.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", wantCode: http.StatusUnauthorized},
		{
			name:     "wrong issuer",
			header:   "Bearer " + sign(t, jwt.MapClaims{"iss": "https://evil.example.com", "exp": exp, WalletAddressClaim: "0x00000000000000000000000000000000000000a1"}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "expired",
			header:   "Bearer " + sign(t, jwt.MapClaims{"iss": issuer, "exp": time.Now().Add(-time.Hour).Unix(), WalletAddressClaim: "0x00000000000000000000000000000000000000a1"}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "no address",
			header:   "Bearer " + sign(t, jwt.MapClaims{"iss": issuer, "exp": exp, "sub": "user_1"}),
			wantCode: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
