// Package ws bridges the reliable channel onto websockets for clients that
// cannot open raw TCP, e.g. browser builds. Each binary message carries
// exactly one framed packet and flows through the same dispatcher as TCP.
package ws

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nova-strike/server"
	"nova-strike/server/internal/telemetry"
)

const writeWait = 10 * time.Second

// Handler upgrades HTTP requests and runs the resulting sessions on the hub.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a websocket bridge for the given hub.
func NewHandler(hub *server.Hub, logger telemetry.Logger) *Handler {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and blocks for the session's lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	h.hub.ServeConn(&conn{raw: c})
}

// conn adapts a websocket connection to the hub's framed-packet interface.
// Message boundaries give framing for free.
type conn struct {
	raw *websocket.Conn

	writeMu sync.Mutex
}

// ReadPacket blocks for the next binary message. Text and control messages
// are skipped.
func (c *conn) ReadPacket() ([]byte, error) {
	for {
		msgType, data, err := c.raw.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Send writes one frame as a single binary message.
func (c *conn) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
	return c.raw.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *conn) Close() error { return c.raw.Close() }

func (c *conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }
