package adminws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout   = 10 * time.Second
	readLimit      = 1024
	sendBuffer     = 64
	pingInterval   = 30 * time.Second
	pingTimeout    = 10 * time.Second
	maxMissedPongs = int32(2)
)

// Client wraps a single admin dashboard's WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	log       *logrus.Logger
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		log:  hub.log,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump discards any inbound traffic; the admin feed is one-directional.
// It exists only to detect disconnects and drive unregistration.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow()
	}()

	c.conn.SetReadLimit(readLimit)
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// WritePump delivers broadcast events and pings until the send channel is
// closed or the connection drops.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	var missedPongs int32

	for {
		select {
		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				missedPongs++
				if missedPongs >= maxMissedPongs {
					return
				}
				continue
			}
			missedPongs = 0

		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				c.log.WithError(err).Debug("admin websocket write failed")
				return
			}
		}
	}
}
