package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/collabtext/collabtext/internal/document"
	"github.com/collabtext/collabtext/internal/models"
	"github.com/collabtext/collabtext/internal/relay"
	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/metrics"
	"github.com/collabtext/collabtext/pkg/middleware"
)

// Documents is the part of the document service the gateway drives.
type Documents interface {
	UpdateContent(ctx context.Context, upd document.Update) (*document.Update, error)
	Rename(ctx context.Context, req document.RenameRequest) error
}

// Presence is the presence tracker as seen by the gateway.
type Presence interface {
	Add(ctx context.Context, documentID int64, username string) ([]string, error)
	Remove(ctx context.Context, documentID int64, username string) ([]string, error)
}

// UserLookup resolves the user ids carried in presence signals.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type Options struct {
	// ReleaseOnClose removes the presence entries a socket added when it closes.
	ReleaseOnClose bool
	AllowedOrigins []string
}

// Gateway upgrades HTTP requests to websocket sessions and bridges frames to
// the relay, the document service and the presence tracker.
type Gateway struct {
	broker   *relay.Broker
	verifier middleware.Verifier
	docs     Documents
	presence Presence
	users    UserLookup
	opts     Options
	upgrader websocket.Upgrader
}

func New(broker *relay.Broker, ver middleware.Verifier, docs Documents, presence Presence, users UserLookup, opts Options) *Gateway {
	g := &Gateway{broker: broker, verifier: ver, docs: docs, presence: presence, users: users, opts: opts}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range g.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Handle is the gin handler for GET /ws.
func (g *Gateway) Handle(c *gin.Context) {
	g.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP authenticates an optional bearer token from the Authorization
// header or the access_token query parameter, then upgrades. A token that
// fails verification is rejected before the upgrade. Without a token the
// session stays anonymous until a CONNECT frame carries one.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var user string
	raw := r.URL.Query().Get("access_token")
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := middleware.BearerToken(h); ok {
			raw = tok
		}
	}
	if raw != "" {
		name, err := g.authenticate(r.Context(), raw)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		user = name
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("gateway: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := newClient(ctx, g, conn, uuid.NewString(), user)
	metrics.GatewayConnections.Inc()
	go c.writePump()
	c.readPump()
	cancel()
	metrics.GatewayConnections.Dec()
}

func (g *Gateway) authenticate(ctx context.Context, raw string) (string, error) {
	claims, err := middleware.Authenticate(ctx, g.verifier, raw)
	if err != nil {
		return "", err
	}
	name := middleware.Username(claims)
	if name == "" {
		return "", errNoPrincipal
	}
	return name, nil
}
