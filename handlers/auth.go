package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collabtext/collabtext/internal/config"
	"github.com/collabtext/collabtext/internal/document/handler"
	"github.com/collabtext/collabtext/internal/models"
	"github.com/collabtext/collabtext/internal/sessions"
	"github.com/collabtext/collabtext/internal/tokens"
	"github.com/collabtext/collabtext/internal/users"
	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/middleware"
)

// Credentials is the body of registration and authentication requests.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg      *config.Config
	usersSvc *users.Service
}

func NewAuthHandler(cfg *config.Config, u *users.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u}
}

// RegisterPublic mounts the endpoints reachable without a token.
func (h *AuthHandler) RegisterPublic(rg gin.IRoutes) {
	rg.POST("/auth/registration", h.Registration)
	rg.POST("/auth/authentication", h.Authentication)
}

// RegisterProtected mounts the endpoints behind AuthMiddleware.
func (h *AuthHandler) RegisterProtected(rg gin.IRoutes) {
	rg.GET("/auth/validation", h.Validation)
	rg.POST("/auth/logout", h.Logout)
	rg.GET("/userInfo", h.UserInfo)
}

func (h *AuthHandler) Registration(c *gin.Context) {
	var req Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid request body"})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) || errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("registration of %q failed: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	h.issue(c, u)
}

func (h *AuthHandler) Authentication(c *gin.Context) {
	var req Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid request body"})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("authentication of %q failed: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}
	h.issue(c, u)
}

// issue signs a token for u and returns it in the Authorization header.
func (h *AuthHandler) issue(c *gin.Context, u *models.User) {
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Errorf("sign token for %q: %v", u.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.Header("Authorization", "Bearer "+access)
	c.Header("Access-Control-Expose-Headers", "Authorization")
	c.JSON(http.StatusOK, u)
}

// Validation answers whether ?token= is a live token for the calling principal.
func (h *AuthHandler) Validation(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	raw := c.Query("token")
	valid := raw != "" && tokens.IsTokenValid(h.cfg.JWT.Secret, raw, middleware.Username(claims))
	if valid {
		if revoked, err := sessions.IsAccessTokenBlacklisted(c.Request.Context(), raw); err == nil && revoked {
			valid = false
		}
	}
	c.JSON(http.StatusOK, valid)
}

// Logout blacklists the presented access token for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	raw := c.GetString("token")
	if !ok || raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	exp, err := tokens.ExpiryFromClaims(claims)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
		return
	}
	if ttl := time.Until(exp); ttl > 0 {
		if err := sessions.BlacklistAccessToken(c.Request.Context(), raw, ttl); err != nil {
			logger.Errorf("blacklist token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) UserInfo(c *gin.Context) {
	u, err := h.CurrentUser(c)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, handler.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			logger.Errorf("user info: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		}
		return
	}
	c.JSON(http.StatusOK, u)
}

// CurrentUser resolves the caller from the claims set by AuthMiddleware. Local
// tokens must name an existing account; provider tokens (no uid claim) are
// provisioned on first use.
func (h *AuthHandler) CurrentUser(c *gin.Context) (*models.User, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return nil, handler.ErrUnauthenticated
	}
	name := middleware.Username(claims)
	if name == "" {
		return nil, handler.ErrUnauthenticated
	}
	if _, local := claims["uid"]; local {
		return h.usersSvc.GetByUsername(c.Request.Context(), name)
	}
	return h.usersSvc.EnsureExternal(c.Request.Context(), name)
}
