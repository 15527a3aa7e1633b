package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/middleware"
	"hemisphere-atlas/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// client owns one connection. Only writePump writes to conn; everyone else
// queues on send.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the client is gone or too slow
// to keep up.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ConnectHook hands a fresh connection the visitor's current state. send
// queues a message for that connection only.
type ConnectHook func(sessionID uuid.UUID, send func(models.WSMessage))

// Hub pushes widget updates to every open tab of a visitor. With a Redis
// client, updates travel through pub/sub so any instance can deliver them.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	redisClient *redis.Client
	cancelFuncs map[uuid.UUID]context.CancelFunc
	onConnect   ConnectHook
	log         logger.ILogger
}

// NewHub accepts a nil redisClient for single-instance delivery.
func NewHub(redisClient *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		redisClient: redisClient,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		log:         log,
	}
}

// OnConnect installs the hook run after every new connection is registered.
func (h *Hub) OnConnect(hook ConnectHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = hook
}

func channelName(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == uuid.Nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket", "upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := newClient(conn)
	h.registerConnection(sessionID, c)
	go h.writePump(sessionID, c)

	h.mu.RLock()
	hook := h.onConnect
	h.mu.RUnlock()
	if hook != nil {
		hook(sessionID, func(msg models.WSMessage) {
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("websocket", "failed to encode message", map[string]interface{}{"error": err})
				return
			}
			h.deliver(sessionID, c, data)
		})
	}

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sessionID, c)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) writePump(sessionID uuid.UUID, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("websocket", "write failed", map[string]interface{}{
					"session_id": sessionID.String(),
					"error":      err.Error(),
				})
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// deliver queues data for one client and drops the client if its queue is full.
func (h *Hub) deliver(sessionID uuid.UUID, c *client, data []byte) {
	if c.enqueue(data) {
		return
	}
	h.log.Warn("websocket", "dropping slow connection", map[string]interface{}{"session_id": sessionID.String()})
	c.close()
}

func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	if h.redisClient != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	h.log.Debug("websocket", "connected", map[string]interface{}{
		"session_id": sessionID.String(),
		"total":      len(h.connections[sessionID]),
	})
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	h.log.Debug("websocket", "disconnected", map[string]interface{}{"session_id": sessionID.String()})
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		h.deliver(sessionID, c, data)
	}
}

// Publish queues msg for the visitor's open connections. It does not wait
// for the writes.
func (h *Hub) Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if h.redisClient != nil {
		return h.redisClient.Publish(ctx, channelName(sessionID), string(data)).Err()
	}
	h.broadcast(sessionID, data)
	return nil
}

// ConnectionCount reports open connections for a visitor.
func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}
