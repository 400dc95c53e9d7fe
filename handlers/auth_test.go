package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabtext/collabtext/internal/config"
	"github.com/collabtext/collabtext/internal/document/handler"
	"github.com/collabtext/collabtext/internal/models"
	"github.com/collabtext/collabtext/internal/sessions"
	"github.com/collabtext/collabtext/internal/tokens"
	"github.com/collabtext/collabtext/internal/users"
	"github.com/collabtext/collabtext/pkg/middleware"
)

const secret = "handlers-test-secret-0123456789abcdef"

type fakeVerifier map[string]map[string]interface{}

type fakeToken map[string]interface{}

func (f fakeToken) Claims(v interface{}) error {
	b, _ := json.Marshal(map[string]interface{}(f))
	return json.Unmarshal(b, v)
}

func (f fakeVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if c, ok := f[raw]; ok {
		return fakeToken(c), nil
	}
	return nil, tokens.ErrInvalidToken
}

func setup(t *testing.T, extra ...middleware.Verifier) (*gin.Engine, *users.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	cfg.JWT.AccessTokenTTL = time.Hour

	us := users.NewService(users.NewMemoryUserRepository()).WithCost(bcrypt.MinCost)
	h := NewAuthHandler(cfg, us)

	chain := middleware.ChainVerifier{tokens.NewVerifier(secret)}
	chain = append(chain, extra...)

	g := gin.New()
	api := g.Group("/api")
	h.RegisterPublic(api)
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(chain))
	h.RegisterProtected(protected)
	return g, us
}

func send(g *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	tok, ok := middleware.BearerToken(w.Header().Get("Authorization"))
	require.True(t, ok, "missing Authorization header")
	return tok
}

func TestRegistrationIssuesToken(t *testing.T) {
	g, _ := setup(t)

	w := send(g, "POST", "/api/auth/registration", `{"username":"alice","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Authorization", w.Header().Get("Access-Control-Expose-Headers"))
	tok := bearer(t, w)
	assert.True(t, tokens.IsTokenValid(secret, tok, "alice"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password")

	w = send(g, "POST", "/api/auth/registration", `{"username":"alice","password":"other"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = send(g, "POST", "/api/auth/registration", `{"username":"","password":""}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = send(g, "POST", "/api/auth/registration", `not json`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthentication(t *testing.T) {
	g, us := setup(t)
	_, err := us.Register(context.Background(), "bob", "secret")
	require.NoError(t, err)

	w := send(g, "POST", "/api/auth/authentication", `{"username":"bob","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, tokens.IsTokenValid(secret, bearer(t, w), "bob"))

	w = send(g, "POST", "/api/auth/authentication", `{"username":"bob","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Authorization"))

	w = send(g, "POST", "/api/auth/authentication", `{"username":"nobody","password":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidation(t *testing.T) {
	g, us := setup(t)
	ctx := context.Background()
	_, err := us.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = us.Register(ctx, "bob", "pw")
	require.NoError(t, err)

	aliceTok := bearer(t, send(g, "POST", "/api/auth/authentication", `{"username":"alice","password":"pw"}`, ""))
	bobTok := bearer(t, send(g, "POST", "/api/auth/authentication", `{"username":"bob","password":"pw"}`, ""))

	w := send(g, "GET", "/api/auth/validation?token="+aliceTok, "", aliceTok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())

	// another user's token is not valid for alice
	w = send(g, "GET", "/api/auth/validation?token="+bobTok, "", aliceTok)
	assert.Equal(t, "false", w.Body.String())

	w = send(g, "GET", "/api/auth/validation?token=garbage", "", aliceTok)
	assert.Equal(t, "false", w.Body.String())

	w = send(g, "GET", "/api/auth/validation?token="+aliceTok, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutBlacklistsToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	g, us := setup(t)
	_, err = us.Register(context.Background(), "alice", "pw")
	require.NoError(t, err)
	tok := bearer(t, send(g, "POST", "/api/auth/authentication", `{"username":"alice","password":"pw"}`, ""))

	w := send(g, "GET", "/api/userInfo", "", tok)
	require.Equal(t, http.StatusOK, w.Code)

	w = send(g, "POST", "/api/auth/logout", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, m.Exists("blacklist:access:"+tok))
	assert.Greater(t, m.TTL("blacklist:access:"+tok), time.Duration(0))

	w = send(g, "GET", "/api/userInfo", "", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token revoked")
}

func TestUserInfo(t *testing.T) {
	ext := fakeVerifier{"provider-token": {"sub": "f3a1", "preferred_username": "carol"}}
	g, us := setup(t, ext)
	_, err := us.Register(context.Background(), "alice", "pw")
	require.NoError(t, err)
	tok := bearer(t, send(g, "POST", "/api/auth/authentication", `{"username":"alice","password":"pw"}`, ""))

	w := send(g, "GET", "/api/userInfo", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])

	// provider identities are provisioned on first use
	w = send(g, "GET", "/api/userInfo", "", "provider-token")
	require.Equal(t, http.StatusOK, w.Code)
	carol, err := us.GetByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "USER", carol.Role.Name)

	w = send(g, "GET", "/api/userInfo", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserInfo_UnknownLocalUser(t *testing.T) {
	g, _ := setup(t)
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	tok, err := tokens.GenerateAccessToken(cfg, &models.User{ID: 42, Username: "ghost"}, time.Minute)
	require.NoError(t, err)

	w := send(g, "GET", "/api/userInfo", "", tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCurrentUser_NoClaims(t *testing.T) {
	h := NewAuthHandler(&config.Config{}, users.NewService(users.NewMemoryUserRepository()))
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := h.CurrentUser(c)
	require.ErrorIs(t, err, handler.ErrUnauthenticated)
}
