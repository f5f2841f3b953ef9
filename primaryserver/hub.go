package primaryserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jacokyle01/chess-lab/models"
	"github.com/jacokyle01/chess-lab/review"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024 * 16,
	CheckOrigin: func(r *http.Request) bool {
		return true // local board UI
	},
}

// Message types pushed to clients.
const (
	MsgState       = "state"
	MsgPosition    = "position"
	MsgMove        = "move"
	MsgOrientation = "orientation"
	MsgReview      = "review"
)

const writeWait = 5 * time.Second

// Message is the envelope for every pushed update.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type positionMsg struct {
	FEN     string `json:"fen"`
	Animate bool   `json:"animate"`
}

type moveMsg struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type orientationMsg struct {
	Color models.Color `json:"color"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans board and review updates out to websocket clients. It is the
// live game's renderer.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) SetPosition(fen string, animate bool) {
	h.Broadcast(MsgPosition, positionMsg{FEN: fen, Animate: animate})
}

func (h *Hub) AnimateMove(from, to string) {
	h.Broadcast(MsgMove, moveMsg{From: from, To: to})
}

func (h *Hub) SetOrientation(c models.Color) {
	h.Broadcast(MsgOrientation, orientationMsg{Color: c})
}

// Publish forwards review progress.
func (h *Hub) Publish(p review.Progress) {
	h.Broadcast(MsgReview, p)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues a message for every client. Slow clients drop messages
// rather than stall the caller.
func (h *Hub) Broadcast(msgType string, data any) {
	raw, err := encode(msgType, data)
	if err != nil {
		log.Printf("ws marshal: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			log.Printf("ws client send buffer full, dropping %s", msgType)
		}
	}
}

// ServeWS upgrades the request and streams updates until the client goes
// away. snapshot is sent first so a new client can draw the board.
func (h *Hub) ServeWS(snapshot func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}

		c := &client{conn: conn, send: make(chan []byte, 64)}
		if raw, err := encode(MsgState, snapshot()); err == nil {
			c.send <- raw
		}
		if !h.register(c) {
			conn.Close()
			return
		}

		go c.writePump()
		c.readPump()
		h.unregister(c)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump drains client frames; the board only listens.
func (c *client) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for raw := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			log.Printf("ws write: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func encode(msgType string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Data: payload})
}
