package admin

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/coreproxy/edgeproxy/internal/adminws"
)

// Handler serves the admin endpoints.
type Handler struct {
	deps *Deps
}

func NewHandler(deps *Deps) *Handler {
	return &Handler{deps: deps}
}

type statusResponse struct {
	Version      string   `json:"version"`
	Backends     []string `json:"backends"`
	CacheEntries int      `json:"cache_entries"`
	CacheBytes   int64    `json:"cache_bytes"`
}

// Status reports backend configuration and current cache occupancy.
func (h *Handler) Status(c *gin.Context) {
	resp := statusResponse{
		Version:  h.deps.Version,
		Backends: h.deps.Backends,
	}

	if cache := h.deps.Handler.Cache(); cache != nil {
		resp.CacheEntries, resp.CacheBytes = cache.Stats()
	}

	c.JSON(http.StatusOK, resp)
}

// PurgeCache clears the response cache. No-op, reported as such, when
// caching is disabled.
func (h *Handler) PurgeCache(c *gin.Context) {
	cache := h.deps.Handler.Cache()
	if cache == nil {
		c.JSON(http.StatusOK, gin.H{"purged": false, "reason": "caching disabled"})
		return
	}

	cache.Purge()
	c.JSON(http.StatusOK, gin.H{"purged": true})
}

// Events upgrades the connection to a WebSocket and streams live pipeline
// events (denials, cache evictions, backend selections) until the client
// disconnects.
func (h *Handler) Events(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.deps.CORSOrigins,
	})
	if err != nil {
		return
	}

	client := adminws.NewClient(h.deps.Hub, conn)
	h.deps.Hub.Register(client)

	ctx := c.Request.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
