/**
 * @description
 * This file contains the authentication middleware for the Gin server.
 * It validates JSON Web Tokens (JWTs) issued by the site's identity provider and
 * binds each request to the caller's wallet address.
 *
 * Key features:
 * - JWT Validation: Verifies the signature and claims of the token.
 * - JWKS Integration: Uses a JWKS (JSON Web Key Set) client to fetch the issuer's
 *   public keys for signature verification. The key set is cached to avoid
 *   excessive network requests.
 * - Context Injection: Upon successful validation, the caller's wallet address is
 *   injected into the Gin context for use by downstream handlers. Sponsorship is
 *   always charged to this address, never to one named in a request body.
 * - Error Handling: Returns a 401 Unauthorized status with a clear error message
 *   if authentication fails for any reason (e.g., missing token, invalid signature,
 *   expired token).
 *
 * @dependencies
 * - github.com/gin-gonic/gin: The web framework.
 * - github.com/golang-jwt/jwt/v5: For parsing and validating JWTs.
 * - github.com/MicahParks/keyfunc/v2: For fetching and managing the JWKS.
 */

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// GinContextKey is a custom type to avoid key collisions in the Gin context.
type GinContextKey string

const (
	// WalletAddressKey is the key used to store the authenticated wallet address in the Gin context.
	WalletAddressKey GinContextKey = "walletAddress"
	// WalletAddressClaim is the token claim carrying the user's wallet address.
	WalletAddressClaim = "wallet_address"
)

/**
 * @description
 * NewAuthMiddleware creates a Gin middleware that validates the issuer's JWTs.
 *
 * @param issuerURL The URL of the identity provider. This is used to construct the JWKS URL.
 * @returns A gin.HandlerFunc that can be used as middleware.
 * @returns An error if the JWKS key set cannot be initialized.
 *
 * @notes
 * - The function initializes a JWKS client which automatically handles fetching, caching,
 *   and refreshing the issuer's public keys.
 */
func NewAuthMiddleware(issuerURL string) (gin.HandlerFunc, error) {
	// This follows the OpenID Connect discovery standard.
	jwksURL := strings.TrimSuffix(issuerURL, "/") + "/.well-known/jwks.json"

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:            context.Background(),
		RefreshTimeout: time.Hour,
	})
	if err != nil {
		return nil, err
	}
	return Middleware(jwks.Keyfunc, issuerURL), nil
}

// Middleware validates tokens with keyFunc and requires the given issuer.
func Middleware(keyFunc jwt.Keyfunc, issuerURL string) gin.HandlerFunc {
	expectedIssuer := strings.TrimSuffix(issuerURL, "/")

	return func(c *gin.Context) {
		// 1. Get the token from the Authorization header, or the query string for
		// websocket upgrades where browsers cannot set headers.
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Authorization header format must be Bearer {token}"})
			return
		}

		// 2. Parse and validate the token.
		token, err := jwt.Parse(tokenString, keyFunc, jwt.WithIssuer(expectedIssuer), jwt.WithExpirationRequired())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid token: " + err.Error()})
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Token is invalid"})
			return
		}

		// 3. Extract the wallet address. The subject is accepted when it is itself an address.
		address, _ := claims[WalletAddressClaim].(string)
		if address == "" {
			address, _ = claims["sub"].(string)
		}
		if !common.IsHexAddress(address) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Token does not carry a wallet address"})
			return
		}

		// 4. Set the wallet address in the Gin context for downstream handlers.
		c.Set(string(WalletAddressKey), strings.ToLower(common.HexToAddress(address).Hex()))
		c.Next()
	}
}

// WalletAddress returns the authenticated caller's lower-case wallet address.
func WalletAddress(c *gin.Context) (string, bool) {
	v, ok := c.Get(string(WalletAddressKey))
	if !ok {
		return "", false
	}
	address, ok := v.(string)
	return address, ok && address != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
