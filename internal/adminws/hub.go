// Package adminws broadcasts a live feed of pipeline events (admission
// denials, cache evictions, backend selections) to connected operator
// dashboards over WebSocket.
package adminws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coreproxy/edgeproxy/internal/metrics"
	"github.com/coreproxy/edgeproxy/internal/proxy"
)

const (
	registerBuffer  = 16
	broadcastBuffer = 256
	maxClients      = 100
)

// Hub fans proxy.Event values out to every connected WebSocket client.
// All client-map mutations happen exclusively in the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan proxy.Event
	log        *logrus.Logger
}

// NewHub creates a Hub. Call Events() to obtain the channel to pass to
// proxy.New, and Run(ctx) to start the broadcast loop.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		events:     make(chan proxy.Event, broadcastBuffer),
		log:        log,
	}
}

// Events returns the channel the proxy handler publishes pipeline events
// to. Sends on it are non-blocking from the handler's perspective.
func (h *Hub) Events() chan<- proxy.Event { return h.events }

// Run starts the hub's event loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.closeSend()
			}
			return

		case c := <-h.register:
			if len(h.clients) >= maxClients {
				h.log.Warn("admin websocket connection limit reached, dropping client")
				c.closeSend()
				continue
			}
			h.clients[c] = true
			metrics.WSConnections.Set(float64(len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.closeSend()
			}
			metrics.WSConnections.Set(float64(len(h.clients)))

		case ev := <-h.events:
			payload, err := json.Marshal(wireEvent{
				Kind:   ev.Kind,
				Detail: ev.Detail,
				Time:   ev.Time.Format(time.RFC3339Nano),
			})
			if err != nil {
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					c.closeSend()
					delete(h.clients, c)
				}
			}
			metrics.WSConnections.Set(float64(len(h.clients)))
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		c.closeSend()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
	}
}

type wireEvent struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	Time   string `json:"time"`
}
