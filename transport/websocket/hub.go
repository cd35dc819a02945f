package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Pending broadcasts before new ones are dropped.
	broadcastBuffer = 1024

	// Per-client outbound queue.
	sendBuffer = 256
)

// Encoding selects the wire format of a client.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding maps a query value to an Encoding, defaulting to JSON.
func ParseEncoding(s string) Encoding {
	if Encoding(s) == EncodingMsgpack {
		return EncodingMsgpack
	}
	return EncodingJSON
}

func (e Encoding) marshal(m *Message) ([]byte, error) {
	if e == EncodingMsgpack {
		return msgpack.Marshal(m)
	}
	return json.Marshal(m)
}

func (e Encoding) frameType() int {
	if e == EncodingMsgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	SessionID string            `json:"session_id" msgpack:"session_id"`
	GameState *engine.GameState `json:"game_state,omitempty" msgpack:"game_state,omitempty"`
	Event     string            `json:"event,omitempty" msgpack:"event,omitempty"`
	Data      interface{}       `json:"data,omitempty" msgpack:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp" msgpack:"timestamp"`
}

// Client represents a WebSocket client
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	encoding  Encoding
}

// Hub maintains the set of active clients and broadcasts messages.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	// Registered clients by session ID
	sessions map[string]map[*Client]bool

	// Outbound messages for a session
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Client count queries
	counts chan countRequest

	done   chan struct{}
	logger *zap.Logger
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// Option configures a Hub
type Option func(*Hub)

// WithLogger sets the hub logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a new WebSocket hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		counts:     make(chan countRequest),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrNop(h.logger)
	return h
}

// Run starts the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case req := <-h.counts:
			req.reply <- len(h.sessions[req.sessionID])

		case <-h.done:
			for _, clients := range h.sessions {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ServeWS upgrades the request and attaches the client to sessionID.
// The ?encoding= query picks json (default) or msgpack frames. A non-nil
// initial state is sent to the new client before any broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, initial *engine.GameState) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
		encoding:  ParseEncoding(r.URL.Query().Get("encoding")),
	}

	if initial != nil {
		data, err := client.encoding.marshal(stateMessage(sessionID, initial))
		if err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of clients watching sessionID.
// It needs Run to be active.
func (h *Hub) ClientCount(sessionID string) int {
	req := countRequest{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// BroadcastToSession sends a game state update to all clients in a session
func (h *Hub) BroadcastToSession(sessionID string, state *engine.GameState) {
	h.enqueue(stateMessage(sessionID, state))
}

// BroadcastEvent sends a custom event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	h.enqueue(&Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// enqueue never blocks the caller; a full queue drops the message.
func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			zap.String("session", message.SessionID),
			zap.String("event", message.Event),
		)
	}
}

func stateMessage(sessionID string, state *engine.GameState) *Message {
	return &Message{
		SessionID: sessionID,
		GameState: state,
		Event:     "state_update",
		Timestamp: time.Now(),
	}
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	h.logger.Debug("client registered",
		zap.String("client", client.id),
		zap.String("session", client.sessionID),
		zap.String("encoding", string(client.encoding)),
		zap.Int("clients", len(h.sessions[client.sessionID])),
	)
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.sessions[client.sessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Clean up empty sessions
			if len(clients) == 0 {
				delete(h.sessions, client.sessionID)
			}

			h.logger.Debug("client unregistered",
				zap.String("client", client.id),
				zap.String("session", client.sessionID),
				zap.Int("clients", len(clients)),
			)
		}
	}
}

// broadcastMessage encodes message once per encoding in use and queues
// it for every client in the session. Slow clients are dropped.
func (h *Hub) broadcastMessage(message *Message) {
	clients, ok := h.sessions[message.SessionID]
	if !ok {
		return
	}

	encoded := make(map[Encoding][]byte, 2)
	for client := range clients {
		data, ok := encoded[client.encoding]
		if !ok {
			var err error
			data, err = client.encoding.marshal(message)
			if err != nil {
				h.logger.Error("failed to encode broadcast message",
					zap.String("encoding", string(client.encoding)),
					zap.Error(err),
				)
				return
			}
			encoded[client.encoding] = data
		}

		select {
		case client.send <- data:
		default:
			h.unregisterClient(client)
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Clients only listen; reads keep the pong deadline moving.
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("client", c.id), zap.Error(err))
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(c.encoding.frameType(), message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
