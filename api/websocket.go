package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/abcfe/abcfe-keyring/common/logger"
	"github.com/abcfe/abcfe-keyring/custody"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     IsLocalOrigin,
}

// IsLocalOrigin accepts requests without an Origin header or from a loopback host.
func IsLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// WSEventType event type
type WSEventType string

const (
	EventConnected         WSEventType = "connected"
	EventApprovalRequested WSEventType = "approval_requested"
	EventPendingApprovals  WSEventType = "pending_approvals"
)

// WSMessage WebSocket message structure
type WSMessage struct {
	Event WSEventType `json:"event"`
	Data  interface{} `json:"data"`
}

type ApprovalEvent struct {
	Kind custody.Kind `json:"kind"`
	ID   string       `json:"id"`
}

// PendingProvider provides the approvals waiting at connect time
type PendingProvider func() map[custody.Kind][]string

// WSHub client connection management. It is the keeper's prompt spawner:
// every approval request is pushed to the connected approval windows.
type WSHub struct {
	clients         map[*WSClient]bool
	broadcast       chan WSMessage
	register        chan *WSClient
	unregister      chan *WSClient
	quit            chan struct{}
	stopOnce        sync.Once
	mu              sync.RWMutex
	pendingProvider PendingProvider
}

// WSClient WebSocket client
type WSClient struct {
	hub  *WSHub
	conn *websocket.Conn
	send chan []byte
}

// NewWSHub creates new Hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		quit:       make(chan struct{}),
	}
}

func (h *WSHub) SetPendingProvider(provider PendingProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingProvider = provider
}

func (h *WSHub) getPendingMessage() []byte {
	h.mu.RLock()
	provider := h.pendingProvider
	h.mu.RUnlock()

	if provider == nil {
		return nil
	}

	data, _ := json.Marshal(WSMessage{Event: EventPendingApprovals, Data: provider()})
	return data
}

// Run runs the Hub until Stop is called
func (h *WSHub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("WebSocket client connected. Total:", h.GetClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Debug("WebSocket client disconnected. Total:", h.GetClientCount())

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				logger.Error("Failed to marshal WebSocket message:", err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// SpawnApprovalPrompt broadcasts an approval_requested event. It never blocks
// the requester; a full queue drops the event and the window still sees the
// request on its next poll.
func (h *WSHub) SpawnApprovalPrompt(kind custody.Kind, requestID string) {
	msg := WSMessage{
		Event: EventApprovalRequested,
		Data:  ApprovalEvent{Kind: kind, ID: requestID},
	}

	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("WebSocket broadcast queue full, dropped approval event: ", kind, " ", requestID)
	}
}

// GetClientCount returns connected client count
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket WebSocket connection handler
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error:", err)
			return
		}

		client := &WSClient{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 256),
		}

		// 연결 직후 메시지는 register 전에 큐에 넣어 broadcast 보다 먼저 전달
		welcomeMsg := WSMessage{
			Event: EventConnected,
			Data: map[string]interface{}{
				"message": "Connected to ABCFe keyring",
			},
		}
		data, _ := json.Marshal(welcomeMsg)
		client.send <- data

		if pending := hub.getPendingMessage(); pending != nil {
			client.send <- pending
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// writePump sends message to client
func (c *WSClient) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				logger.Error("WebSocket write error:", err)
			} else {
				logger.Debug("WebSocket write closed:", err)
			}
			return
		}
	}
}

// readPump receives message from client
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			// CloseGoingAway (1001), CloseNoStatusReceived (1005): 창 닫힘
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error:", err)
			} else {
				logger.Debug("WebSocket client disconnected:", err)
			}
			break
		}
		// 클라이언트 메시지는 무시 (승인은 REST 로만 받음)
	}
}
