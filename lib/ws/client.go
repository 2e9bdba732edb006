package ws

// Copyright 2013 The Gorilla WebSocket Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub
	// The websocket connection.
	Conn WebSocketConn
	// Buffered channel of outbound messages.
	Send chan []byte
	// SessionId is the connection id. A session created by this connection
	// carries the same id.
	SessionId  string
	RemoteAddr string
	Handler    *CanvasMessageHandler

	mu       sync.Mutex
	canvasId string
}

func NewClient(hub *Hub, conn WebSocketConn, handler *CanvasMessageHandler, sendBufferSize int) *Client {
	if sendBufferSize <= 0 {
		sendBufferSize = 256
	}
	client := &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		SessionId: uuid.NewString(),
		Handler:   handler,
	}
	if conn != nil && conn.RemoteAddr() != nil {
		client.RemoteAddr = conn.RemoteAddr().String()
	}
	return client
}

// CanvasId returns the canvas this connection joined, or "" when not joined.
func (c *Client) CanvasId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canvasId
}

func (c *Client) setCanvasId(canvasId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvasId = canvasId
}

// takeCanvasId clears the joined canvas and returns what it was. Only one
// caller observes a given join.
func (c *Client) takeCanvasId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	canvasId := c.canvasId
	c.canvasId = ""
	return canvasId
}

// readPump pumps messages from the websocket connection to the handler.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
//
// Work started on behalf of the connection receives a context that is
// cancelled once the read loop exits.
func (c *Client) readPump(ctx context.Context, retrievedSettings *settings.Settings, logger *zap.SugaredLogger) {
	connCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.Handler.HandleDisconnect(context.WithoutCancel(ctx), c)
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(retrievedSettings.Socket.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnw("Unexpected close of socket", "sessionId", c.SessionId, "error", err)
			}
			break
		}
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.Handler.HandleMessage(connCtx, c, message)
	}
}

// writePump pumps messages from the send queue to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Serve runs the pumps of an accepted connection and returns once the peer is
// gone.
func (c *Client) Serve(ctx context.Context, retrievedSettings *settings.Settings, logger *zap.SugaredLogger) {
	c.Hub.register(c)
	c.Handler.metrics.connectionsTotal.Inc()
	go c.writePump()
	c.readPump(ctx, retrievedSettings, logger)
}

// NewUpgrader accepts the configured CORS origin, or any origin when it is
// "*".
func NewUpgrader(corsOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || corsOrigin == "*" || origin == corsOrigin
		},
	}
}

// ServeWs handles websocket requests from the peer.
func ServeWs(w http.ResponseWriter, r *http.Request, configSettings *settings.Settings,
	logger *zap.SugaredLogger, handler *CanvasMessageHandler) {
	upgrader := NewUpgrader(configSettings.CorsOrigin)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("Websocket upgrade failed", "error", err)
		return
	}
	client := NewClient(handler.hub, NewWebSocketWrapper(conn), handler, configSettings.Socket.SendBufferSize)
	logger.Debugw("Socket connected", "sessionId", client.SessionId, "remoteAddr", client.RemoteAddr)
	client.Serve(context.Background(), configSettings, logger)
}
