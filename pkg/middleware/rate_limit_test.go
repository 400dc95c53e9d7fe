package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/collabtext/collabtext/pkg/metrics"
)

func limitedRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func hit(r http.Handler, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitMiddleware_AllowsBurst(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))
	r := limitedRouter(RateLimitMiddleware(10, 2))

	require.Equal(t, http.StatusOK, hit(r, ""))
	require.Equal(t, http.StatusOK, hit(r, ""))
	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddleware_RejectsThenRefills(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory"))
	r := limitedRouter(RateLimitMiddleware(2, 1))

	require.Equal(t, http.StatusOK, hit(r, ""))
	require.Equal(t, http.StatusTooManyRequests, hit(r, ""))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory")))

	time.Sleep(600 * time.Millisecond)
	require.Equal(t, http.StatusOK, hit(r, ""))
}

func TestRateLimitMiddleware_KeysByClient(t *testing.T) {
	r := limitedRouter(RateLimitMiddleware(0.1, 1))
	require.Equal(t, http.StatusOK, hit(r, "10.0.0.1:1000"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "10.0.0.1:1001"))
	require.Equal(t, http.StatusOK, hit(r, "10.0.0.2:1000"))
}

func TestRateLimitMiddleware_KeysByPrincipal(t *testing.T) {
	withUser := func(c *gin.Context) {
		c.Set("claims", map[string]interface{}{"sub": "alice"})
		c.Next()
	}
	r := limitedRouter(withUser, RateLimitMiddleware(0.1, 1))

	// same principal from two addresses shares one bucket
	require.Equal(t, http.StatusOK, hit(r, "10.0.0.1:1000"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "10.0.0.2:1000"))
}
