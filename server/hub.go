/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/update"
)

const (
	hmrWriteWait = 10 * time.Second
	hmrPongWait  = 60 * time.Second
	hmrPingEvery = (hmrPongWait * 9) / 10
	hmrSendQueue = 16
)

// Message types understood by the browser HMR client.
const (
	MessageUpdate = "update"
	MessageError  = "error"
	MessageReload = "reload"
)

// Message is one frame pushed to HMR clients.
type Message struct {
	Type    string         `json:"type"`
	Result  *update.Result `json:"result,omitempty"`
	Message string         `json:"message,omitempty"`
}

var hmrUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans HMR messages out to every connected browser.
type Hub struct {
	logger  core.Logger
	metrics *Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub returns an empty hub. metrics may be nil.
func NewHub(logger core.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection until the
// browser goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hmrUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("hmr upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan Message, hmrSendQueue)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(hmrPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(hmrPongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	// The client never sends anything meaningful; reading drives the pong
	// handler and notices disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
	<-done
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(hmrPingEvery)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hmrWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hmrWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.hmrClients.Inc()
	}
	h.logger.Debug("hmr client connected (%d total)", len(h.clients))
	return true
}

// drop removes c and closes its queue, ending its write loop.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.metrics != nil {
		h.metrics.hmrClients.Dec()
	}
}

func (h *Hub) unregister(c *client) {
	h.drop(c)
	h.logger.Debug("hmr client disconnected")
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. A client whose queue is full is
// disconnected; the browser reconnects and reloads.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			if h.metrics != nil {
				h.metrics.hmrClients.Dec()
			}
		}
	}
	if h.metrics != nil {
		h.metrics.hmrMessages.WithLabelValues(msg.Type).Inc()
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if h.metrics != nil {
			h.metrics.hmrClients.Dec()
		}
	}
}
