package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/entities"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The UI shell runs on the same device; tokens gate access.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionController is what the hub needs from the kiosk session: UI
// commands in, audio routed through.
type SessionController interface {
	Activate()
	ExitAttempt(password string) bool
	Confirm()
	CancelConfirmation()
	SubmitText(text string)
	ClearError()
	FeedAudio(data []byte)
	EndUtterance()
}

// Hub maintains the set of connected UI shells and fans session status
// and response audio out to them.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map.
	mu sync.RWMutex

	session SessionController
	logger  *zap.Logger
}

// NewHub creates a WebSocket hub bridging UI shells to the session.
func NewHub(session SessionController, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		session:    session,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("UI client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("UI client unregistered", zap.String("clientID", client.id))
		}
	}
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// BroadcastStatus pushes the session status to every connected shell.
func (h *Hub) BroadcastStatus(status entities.KioskStatus) {
	h.broadcast(WriteData{Type: websocket.TextMessage, Payload: marshalStatus(status)})
}

// BroadcastSpeakingStart announces that response audio follows.
func (h *Hub) BroadcastSpeakingStart(text string) {
	h.broadcast(WriteData{Type: websocket.TextMessage, Payload: marshalSpeakingStart(text)})
}

// BroadcastAudio fans one chunk of synthesized audio out to the shells.
func (h *Hub) BroadcastAudio(chunk []byte) {
	h.broadcast(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
}

// BroadcastSpeakingEnd closes a response audio stream.
func (h *Hub) BroadcastSpeakingEnd() {
	h.broadcast(WriteData{Type: websocket.TextMessage, Payload: marshalSpeakingEnd()})
}

func (h *Hub) broadcast(data WriteData) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping frame for slow client", zap.String("clientID", client.id))
		}
	}
}

// Client is a middleman between one UI shell connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id     string
	logger *zap.Logger
}

// HandleWebSocket upgrades an authenticated request and starts the
// client pumps.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		id:     uuid.New().String(),
		logger: logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all
	// work in new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processControl(message)
		case websocket.BinaryMessage:
			// Raw microphone audio from the shell.
			c.hub.session.FeedAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processControl dispatches one inbound control message.
func (c *Client) processControl(message []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Error("Failed to parse control message", zap.Error(err))
		c.reply(ErrorMessage{Type: MessageTypeError, Message: "invalid JSON"})
		return
	}

	switch msg.Type {
	case MessageTypeActivate:
		c.hub.session.Activate()
	case MessageTypeListeningEnd:
		c.hub.session.EndUtterance()
	case MessageTypeConfirm:
		c.hub.session.Confirm()
	case MessageTypeCancel:
		c.hub.session.CancelConfirmation()
	case MessageTypeExitAttempt:
		success := c.hub.session.ExitAttempt(msg.Password)
		c.reply(ExitResultMessage{Type: MessageTypeExitResult, Success: success})
	case MessageTypeTextInput:
		c.hub.session.SubmitText(msg.Text)
	case MessageTypeClearError:
		c.hub.session.ClearError()
	default:
		c.logger.Warn("Unknown control message type", zap.String("type", string(msg.Type)))
		c.reply(ErrorMessage{Type: MessageTypeError, Message: "unsupported message type"})
	}
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping reply for slow client", zap.String("clientID", c.id))
	}
}
