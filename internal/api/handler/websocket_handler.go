package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"

	"github.com/codecurser/park-vision-control-system/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketManager fans entry notifications out to dashboard clients.
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      deadlock.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Start runs the client loop until ctx is done. Connections that arrive after
// it returns are closed immediately.
func (wsm *WebSocketManager) Start(ctx context.Context) {
	defer close(wsm.done)
	for {
		select {
		case <-ctx.Done():
			wsm.mutex.Lock()
			for client := range wsm.clients {
				client.Close()
				delete(wsm.clients, client)
			}
			wsm.mutex.Unlock()
			return

		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client] = true
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			log.Info().Str("component", "WS").Int("total", total).Msg("client connected")

		case client := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				client.Close()
			}
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			log.Info().Str("component", "WS").Int("total", total).Msg("client disconnected")

		case message := <-wsm.broadcast:
			wsm.mutex.Lock()
			for client := range wsm.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Warn().Err(err).Str("component", "WS").Msg("write failed, dropping client")
					client.Close()
					delete(wsm.clients, client)
				}
			}
			wsm.mutex.Unlock()
		}
	}
}

// Done is closed once Start has returned.
func (wsm *WebSocketManager) Done() <-chan struct{} {
	return wsm.done
}

func (wsm *WebSocketManager) add(conn *websocket.Conn) bool {
	select {
	case wsm.register <- conn:
		return true
	case <-wsm.done:
		conn.Close()
		return false
	}
}

func (wsm *WebSocketManager) remove(conn *websocket.Conn) {
	select {
	case wsm.unregister <- conn:
	case <-wsm.done:
		conn.Close()
	}
}

func (wsm *WebSocketManager) ClientCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

// NotifyEntry queues n for every connected client. It never blocks: when the
// broadcast queue is full the message is dropped.
func (wsm *WebSocketManager) NotifyEntry(_ context.Context, n domain.EntryNotification) error {
	message, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("WebSocketManager.NotifyEntry: %w", err)
	}
	select {
	case wsm.broadcast <- message:
		return nil
	default:
		return fmt.Errorf("WebSocketManager.NotifyEntry: broadcast queue full, dropping %s", n.Entry.ID)
	}
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "WS").Msg("upgrade failed")
		return
	}

	if !h.wsManager.add(conn) {
		log.Debug().Str("component", "WS").Msg("manager stopped, connection refused")
		return
	}

	// Clients only listen; reading detects the disconnect.
	go func() {
		defer h.wsManager.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Str("component", "WS").Msg("read error")
				}
				return
			}
		}
	}()
}
