package tokens

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/collabtext/collabtext/internal/config"
	"github.com/collabtext/collabtext/internal/models"
	"github.com/collabtext/collabtext/pkg/middleware"
)

func testUser() *models.User {
	return &models.User{ID: 7, Username: "alice", Role: models.Role{ID: 1, Name: models.DefaultRole}}
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-32-bytes-should-be-long-enough"

	tokenStr, err := GenerateAccessToken(cfg, testUser(), 2*time.Minute)
	require.NoError(t, err)

	c, err := Parse(cfg.JWT.Secret, tokenStr)
	require.NoError(t, err)
	require.Equal(t, "alice", c.Subject)
	require.Equal(t, int64(7), c.UserID)
	require.Equal(t, models.DefaultRole, c.Role)
	require.NotNil(t, c.IssuedAt)
	require.NotNil(t, c.ExpiresAt)
}

func TestGenerateAccessToken_Expiry(t *testing.T) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "another-secret-32-bytes-longgggg"
	tokenStr, err := GenerateAccessToken(cfg, testUser(), -time.Minute)
	require.NoError(t, err)

	_, err = Parse(cfg.JWT.Secret, tokenStr)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.False(t, IsTokenValid(cfg.JWT.Secret, tokenStr, "alice"))
}

func TestIsTokenValid(t *testing.T) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "secret-one-32-bytes-xxxxxxxxxxxxxxxx"
	tokenStr, err := GenerateAccessToken(cfg, testUser(), 2*time.Minute)
	require.NoError(t, err)

	require.True(t, IsTokenValid(cfg.JWT.Secret, tokenStr, "alice"))
	require.False(t, IsTokenValid(cfg.JWT.Secret, tokenStr, "bob"))
	require.False(t, IsTokenValid("different-secret-xxxxxxxxxxxxxxxx", tokenStr, "alice"))
	require.False(t, IsTokenValid(cfg.JWT.Secret, "not.a.jwt", "alice"))
}

// Rejected when alg=none (unsigned token)
func TestParse_AlgNoneRejected(t *testing.T) {
	headerEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"alg":"none"}`))
	payloadEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"sub":"u-none","exp":9999999999}`))
	_, err := Parse("x", headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

// Tampering with payload must fail signature verification
func TestParse_TamperedPayload(t *testing.T) {
	secret := "tamper-test-secret-32-bytes-xxxxxxx"
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	tokenStr, err := GenerateAccessToken(cfg, testUser(), 5*time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payloadBytes, _ := jwt.NewParser().DecodeSegment(parts[1])
	parts[1] = (&jwt.Token{}).EncodeSegment([]byte(strings.Replace(string(payloadBytes), "alice", "mallory", 1)))
	_, err = Parse(secret, strings.Join(parts, "."))
	require.Error(t, err)
}

func TestVerifier_ExposesClaims(t *testing.T) {
	secret := "verifier-secret-32-bytes-xxxxxxxxx"
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	tokenStr, err := GenerateAccessToken(cfg, testUser(), time.Minute)
	require.NoError(t, err)

	var ver middleware.Verifier = NewVerifier(secret)
	tok, err := ver.Verify(context.Background(), tokenStr)
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "alice", middleware.Username(claims))
	require.Equal(t, float64(7), claims["uid"])

	exp, err := ExpiryFromClaims(claims)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	_, err = ver.Verify(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiryFromClaims(t *testing.T) {
	_, err := ExpiryFromClaims(map[string]interface{}{})
	require.Error(t, err)

	got, err := ExpiryFromClaims(map[string]interface{}{"exp": json.Number("100")})
	require.NoError(t, err)
	require.Equal(t, int64(100), got.Unix())

	_, err = ExpiryFromClaims(map[string]interface{}{"exp": "soon"})
	require.Error(t, err)
}
