package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxWallet = "wallet"
)

// ──────────────────────────────────────────────────────────────────────────────
// Session tokens
// ──────────────────────────────────────────────────────────────────────────────

// IssueSessionToken mints a signed session JWT whose subject is the wallet
// address.  Issued once at wallet connect; the frontend presents it on every
// player-scoped call and on the WS upgrade.
func IssueSessionToken(secret []byte, address string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseSessionToken validates a session JWT and returns the wallet address.
func parseSessionToken(secret []byte, tokenString string) (string, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
	if err != nil || !tok.Valid {
		return "", jwt.ErrTokenUnverifiable
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	if _, err := base58.Decode(claims.Subject); err != nil {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// SessionMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// SessionMiddleware validates the Bearer token in the Authorization header.
// On success it stores the wallet address (string) in the gin context.
func SessionMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		address, err := parseSessionToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session token",
			})
			return
		}

		c.Set(CtxWallet, address)
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper — extract wallet address from context (for use in handlers)
// ──────────────────────────────────────────────────────────────────────────────

// GetWallet retrieves the authenticated wallet address from the gin context.
// Returns "" if the middleware was not applied or the value is missing.
func GetWallet(c *gin.Context) string {
	v, exists := c.Get(CtxWallet)
	if !exists {
		return ""
	}
	addr, _ := v.(string)
	return addr
}
