package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/metrics"
	"scamdetect-server/pkg/pipeline"
)

// Client represents a connected WebSocket client
type Client struct {
	hub    *VerdictHub
	conn   *websocket.Conn
	send   chan []byte
	logger *logrus.Logger
	callID string // If client subscribes to a specific call
}

// VerdictHub manages WebSocket clients and broadcasts chunk verdicts as
// they complete. Clients may subscribe to one call via the call_id query
// parameter or receive everything.
type VerdictHub struct {
	logger          *logrus.Logger
	clients         map[*Client]bool
	callSubscribers map[string]map[*Client]bool
	broadcast       chan *pipeline.AnalysisResult
	register        chan *Client
	unregister      chan *Client
	mutex           sync.RWMutex
}

// WebSocketUpgrader configures the WebSocket connection
var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all connections
		return true
	},
}

// NewVerdictHub creates a new verdict hub
func NewVerdictHub(logger *logrus.Logger) *VerdictHub {
	return &VerdictHub{
		logger:          logger,
		clients:         make(map[*Client]bool),
		callSubscribers: make(map[string]map[*Client]bool),
		broadcast:       make(chan *pipeline.AnalysisResult, 64),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
	}
}

// Run starts the verdict hub
func (h *VerdictHub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket verdict hub")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Shutting down WebSocket verdict hub")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			if client.callID != "" {
				if _, exists := h.callSubscribers[client.callID]; !exists {
					h.callSubscribers[client.callID] = make(map[*Client]bool)
				}
				h.callSubscribers[client.callID][client] = true
				h.logger.WithField("call_id", client.callID).Info("Client subscribed to specific call")
			}
			h.mutex.Unlock()
			metrics.WebsocketSubscribers.Inc()
			h.logger.Info("Client connected to WebSocket")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				if client.callID != "" {
					if subscribers, exists := h.callSubscribers[client.callID]; exists {
						delete(subscribers, client)
						if len(subscribers) == 0 {
							delete(h.callSubscribers, client.callID)
						}
					}
				}
				metrics.WebsocketSubscribers.Dec()
				h.logger.Info("Client disconnected from WebSocket")
			}
			h.mutex.Unlock()

		case result := <-h.broadcast:
			data, err := json.Marshal(result)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal verdict message")
				continue
			}

			h.mutex.Lock()

			// Send to subscribers of this specific call.
			if subscribers, exists := h.callSubscribers[result.CallID]; exists {
				for client := range subscribers {
					select {
					case client.send <- data:
					default:
						close(client.send)
						delete(h.clients, client)
						delete(subscribers, client)
					}
				}
			}

			// Also broadcast to clients that want all calls.
			for client := range h.clients {
				if client.callID != "" {
					continue
				}
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}

			h.mutex.Unlock()
		}
	}
}

// PublishResult queues a completed chunk result for broadcast. Implements
// pipeline.ResultPublisher; a full queue drops the message rather than
// blocking the pipeline.
func (h *VerdictHub) PublishResult(callID string, result *pipeline.AnalysisResult) {
	select {
	case h.broadcast <- result:
	default:
		h.logger.WithField("call_id", callID).Warn("Verdict broadcast queue full, dropping message")
	}
}

// ServeWs handles WebSocket requests from clients
func (h *VerdictHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}

	// Optional per-call subscription.
	callID := r.URL.Query().Get("call_id")

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: h.logger,
		callID: callID,
	}

	client.hub.register <- client

	go client.writePump()
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(60 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// IsRunning returns true if the hub is running
func (h *VerdictHub) IsRunning() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients != nil
}
