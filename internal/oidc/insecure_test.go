package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/collabtext/collabtext/pkg/middleware"
)

func providerToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	// signed with a key nobody verifies
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unknown-provider-key"))
	require.NoError(t, err)
	return raw
}

func TestInsecureVerifier(t *testing.T) {
	v := NewInsecureVerifier()
	ctx := context.Background()

	tok, err := v.Verify(ctx, providerToken(t, jwt.MapClaims{"sub": "abc", "preferred_username": "kc-alice"}))
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "kc-alice", middleware.Username(claims))

	_, err = v.Verify(ctx, providerToken(t, jwt.MapClaims{"sub": "abc", "exp": time.Now().Add(-time.Minute).Unix()}))
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = v.Verify(ctx, "nodots")
	require.Error(t, err)
}

func TestIssuer(t *testing.T) {
	require.Equal(t, "http://kc:8080/realms/collab", Issuer("http://kc:8080/", "collab"))
}

func TestNewVerifier_Discovery(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/collab/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		issuer := srv.URL + "/realms/collab"
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/protocol/openid-connect/auth",
			"token_endpoint":         issuer + "/protocol/openid-connect/token",
			"jwks_uri":               issuer + "/protocol/openid-connect/certs",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	}))
	defer srv.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Issuer(srv.URL, "collab"), "collab-web")
	require.NoError(t, err)

	// a token not signed by the provider is refused
	_, err = v.Verify(ctx, providerToken(t, jwt.MapClaims{"sub": "abc"}))
	require.Error(t, err)

	_, err = NewVerifier(ctx, Issuer(srv.URL, "missing"), "collab-web")
	require.Error(t, err)
}
