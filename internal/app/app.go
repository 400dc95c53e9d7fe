// Package app assembles the collabtext server from configuration: stores,
// relay, presence, verifiers and the HTTP router.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/collabtext/collabtext/handlers"
	"github.com/collabtext/collabtext/internal/config"
	"github.com/collabtext/collabtext/internal/document/handler"
	"github.com/collabtext/collabtext/internal/document/service"
	"github.com/collabtext/collabtext/internal/gateway"
	"github.com/collabtext/collabtext/internal/oidc"
	"github.com/collabtext/collabtext/internal/presence"
	"github.com/collabtext/collabtext/internal/relay"
	"github.com/collabtext/collabtext/internal/sessions"
	"github.com/collabtext/collabtext/internal/tokens"
	"github.com/collabtext/collabtext/internal/users"
	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/middleware"
)

// App holds the long-lived components of a running server.
type App struct {
	cfg     *config.Config
	started time.Time

	Stores   *Stores
	Users    *users.Service
	Docs     service.Service
	Broker   *relay.Broker
	Presence *presence.Tracker
	Verifier middleware.Verifier
	Redis    *redis.Client

	publisher relay.Publisher
	redisRly  *relay.RedisRelay
}

// New connects every configured backend. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, started: time.Now()}

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			if cfg.Relay.Backend == "redis" {
				return nil, fmt.Errorf("redis %s: %w", addr, err)
			}
			logger.Warnf("redis %s unreachable, blacklist and redis rate limiting disabled: %v", addr, err)
			_ = client.Close()
		} else {
			a.Redis = client
			logger.Infof("connected to redis %s", addr)
		}
	}
	sessions.SetBlacklistClient(a.Redis)

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		a.closeRedis()
		return nil, err
	}
	a.Stores = stores

	bodies, err := OpenBodies(ctx, cfg)
	if err != nil {
		_ = stores.Close(ctx)
		a.closeRedis()
		return nil, err
	}

	a.Broker = relay.NewBroker(cfg.Relay.Buffer)
	a.publisher = a.Broker
	if cfg.Relay.Backend == "redis" {
		a.redisRly = relay.NewRedisRelay(a.Redis, cfg.Relay.Channel, a.Broker)
		a.publisher = a.redisRly
	}

	a.Users = users.NewService(stores.Users)
	a.Docs = service.New(stores.Documents, bodies, a.Users, a.publisher)
	a.Presence = presence.NewTracker(a.publisher)
	a.Verifier = buildVerifier(ctx, cfg)
	return a, nil
}

func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	chain := middleware.ChainVerifier{tokens.NewVerifier(cfg.JWT.Secret)}
	if !cfg.Keycloak.Enabled() {
		return chain
	}
	issuer := oidc.Issuer(cfg.Keycloak.URL, cfg.Keycloak.Realm)
	ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
	switch {
	case err == nil:
		logger.Infof("accepting provider tokens from %s", issuer)
		chain = append(chain, ver)
	case cfg.Keycloak.AllowInsecure:
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		chain = append(chain, oidc.NewInsecureVerifier())
	default:
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	return chain
}

// Start launches the presence actor and, for the redis relay, the channel
// listener. Both stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	go a.Presence.Run(ctx)
	if a.redisRly != nil {
		if err := a.redisRly.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer(), "/health", "/metrics"), gin.Recovery())
	r.Use(middleware.CORS(a.cfg.Server.AllowedOrigins))

	if rl := a.cfg.RateLimit; rl.Enabled {
		if rl.UseRedis && a.Redis != nil {
			win := time.Duration(rl.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(a.Redis, rl.RPS, rl.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(rl.RPS, rl.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	gw := gateway.New(a.Broker, a.Verifier, a.Docs, a.Presence, a.Users, gateway.Options{
		ReleaseOnClose: a.cfg.Presence.ReleaseOnClose,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	})
	r.GET("/ws", gw.Handle)

	api := r.Group("/api")
	auth := handlers.NewAuthHandler(a.cfg, a.Users)
	auth.RegisterPublic(api)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(a.Verifier))
	auth.RegisterProtected(protected)
	handler.RegisterDocumentRoutes(protected, a.Docs, auth.CurrentUser, a.Presence)
	return r
}

// ready returns 200 only when the metadata store and, if configured, redis answer.
func (a *App) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := true
	deps := map[string]bool{"store": true}
	if err := a.Stores.Ping(ctx); err != nil {
		logger.Warnf("readiness: store: %v", err)
		deps["store"] = false
		ready = false
	}
	if a.Redis != nil {
		deps["redis"] = a.Redis.Ping(ctx).Err() == nil
		ready = ready && deps["redis"]
	}

	uptime := time.Since(a.started).Round(time.Second).String()
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
}

func (a *App) closeRedis() {
	if a.Redis != nil {
		_ = a.Redis.Close()
		sessions.SetBlacklistClient(nil)
	}
}

// Close releases store and redis connections.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.Stores != nil {
		err = a.Stores.Close(ctx)
	}
	a.closeRedis()
	return err
}
