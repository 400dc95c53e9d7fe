package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/collabtext/collabtext/internal/sessions"
	"github.com/collabtext/collabtext/pkg/logger"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// ErrTokenRevoked is returned for tokens found in the logout blacklist.
var ErrTokenRevoked = errors.New("token revoked")

// ChainVerifier tries each verifier in order and returns the first success.
type ChainVerifier []Verifier

func (ch ChainVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	var lastErr error = errors.New("no verifier configured")
	for _, v := range ch {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	var token string
	if n, _ := fmt.Sscanf(header, "Bearer %s", &token); n != 1 || token == "" {
		return "", false
	}
	return token, true
}

// Authenticate verifies raw, rejects blacklisted tokens and returns the claims.
// Shared by the HTTP middleware and the websocket gateway.
func Authenticate(ctx context.Context, ver Verifier, raw string) (map[string]interface{}, error) {
	revoked, err := sessions.IsAccessTokenBlacklisted(ctx, raw)
	if err != nil {
		// redis trouble should not lock everyone out
		logger.Warnf("blacklist lookup failed: %v", err)
	} else if revoked {
		return nil, ErrTokenRevoked
	}

	tok, err := ver.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims, nil
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		token, ok := BearerToken(auth)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		claims, err := Authenticate(c.Request.Context(), ver, token)
		if err != nil {
			if errors.Is(err, ErrTokenRevoked) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		c.Set("claims", claims)
		c.Set("token", token)
		c.Next()
	}
}

// Username picks the principal name out of verified claims: the local
// "username" claim, then OIDC preferred_username, then sub.
func Username(claims map[string]interface{}) string {
	for _, k := range []string{"username", "preferred_username", "sub"} {
		if s, ok := claims[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get("claims")
	if !ok {
		return nil, false
	}
	cm, ok := v.(map[string]interface{})
	return cm, ok
}
