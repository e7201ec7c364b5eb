package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bistro/internal/logger"
	"bistro/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type statusEvent struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	At      time.Time          `json:"at"`
}

// subscriber maintains one stream connection
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans status events out to every subscriber
type hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	log         *logger.Logger
}

func newHub(log *logger.Logger) *hub {
	return &hub{subscribers: make(map[*subscriber]struct{}), log: log}
}

func (h *hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

func (h *hub) broadcast(ev statusEvent) {
	message, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("mock_stream", ev.OrderID, "failed to encode event", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- message:
		default:
			// slow subscriber; drop it rather than block the handlers
			delete(h.subscribers, sub)
			close(sub.send)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// Subscribers returns the number of open stream connections
func (s *Server) Subscribers() int {
	return s.hub.count()
}

// handleStream upgrades to a websocket that receives status events
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("mock_stream", "", "failed to upgrade connection", slog.String("error", err.Error()))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, 64)}
	s.hub.add(sub)

	go s.writePump(sub)
	go s.readPump(sub)
}

// readPump only watches for the client going away
func (s *Server) readPump(sub *subscriber) {
	defer func() {
		s.hub.remove(sub)
		sub.conn.Close()
	}()

	sub.conn.SetReadLimit(4096)
	sub.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("mock_stream", "", "stream read failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump pumps events to the connection and keeps it alive with pings
func (s *Server) writePump(sub *subscriber) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
