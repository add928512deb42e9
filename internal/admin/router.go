// Package admin implements the operator-facing API: status, cache
// control, Prometheus exposition, and a live event stream. It is a
// distinct HTTP surface from the proxy's catch-all route and has no
// effect on proxied-request semantics.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/coreproxy/edgeproxy/internal/adminws"
	"github.com/coreproxy/edgeproxy/internal/middleware"
	"github.com/coreproxy/edgeproxy/internal/proxy"
)

// Deps holds the dependencies wired into the admin router.
type Deps struct {
	Log         *logrus.Logger
	Handler     *proxy.Handler
	Hub         *adminws.Hub
	Backends    []string
	CORSOrigins []string
	WriteTokens []string
	Version     string
}

const maxBodySize = 1 << 20 // 1 MB; admin requests carry no large payloads

// adminRateLimit bounds the admin API to a modest per-IP request rate,
// independent of the proxy's own admission control over proxied traffic.
const (
	adminRatePerSecond = 10
	adminRateBurst     = 20
)

// NewRouter builds the admin Gin engine. ctx governs the lifetime of the
// rate limiter's background bucket-eviction goroutine.
func NewRouter(ctx context.Context, deps *Deps) http.Handler {
	r := gin.New()
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(middleware.NewRateLimiter(ctx, adminRatePerSecond, adminRateBurst).Handler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(deps)
	r.GET("/admin/status", h.Status)
	r.POST("/admin/cache/purge", middleware.AdminAuth(deps.WriteTokens, deps.Log), h.PurgeCache)
	r.GET("/admin/events", h.Events)

	return r
}

// RunEventHub starts the admin event hub's broadcast loop and returns when
// ctx is cancelled.
func RunEventHub(ctx context.Context, hub *adminws.Hub) {
	hub.Run(ctx)
}
