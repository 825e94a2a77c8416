package notify

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"floorops/logger"
	"floorops/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 5 * time.Second
	clientQueue = 16
)

// Hub fans events out to websocket clients. A client may subscribe to a prefix
// (?topico=mesa receives mesa:* only). Each client has its own bounded queue; a
// client that falls behind is dropped, and Publish never waits on a client.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan models.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stop       sync.Once
	mu         sync.Mutex
	log        *logger.Logger
}

type client struct {
	conn  *websocket.Conn
	topic string
	send  chan models.Event
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan models.Event, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves register, unregister and broadcast until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				h.drop(c)
			}
			h.mu.Unlock()

		case e := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !matchesTopic(c.topic, e.Name) {
					continue
				}
				select {
				case c.send <- e:
				default:
					h.log.Warn(context.Background(), "ws_client_slow", "dropping websocket client with a full queue", slog.String("event", e.Name))
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes c and closes its queue, which ends its writer. Callers hold mu.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

// Publish queues the event for broadcast. When the broadcast buffer is full the
// event is dropped instead of holding up the caller.
func (h *Hub) Publish(ctx context.Context, e models.Event) error {
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn(ctx, "ws_broadcast_full", "websocket broadcast buffer full, event dropped", slog.String("event", e.Name))
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades GET /ws and keeps the client registered until it hangs up.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn(c.Request.Context(), "ws_upgrade_failed", "websocket upgrade failed", slog.String("erro", err.Error()))
		return
	}
	cl := &client{conn: conn, topic: c.Query("topico"), send: make(chan models.Event, clientQueue)}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}
	go h.write(cl)
	go h.listen(cl)
}

// write sends queued events with a deadline per frame. It closes the connection when
// the queue is closed or a write fails.
func (h *Hub) write(c *client) {
	defer c.conn.Close()
	for e := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(e); err != nil {
			h.log.Warn(context.Background(), "ws_write_failed", "dropping websocket client", slog.String("erro", err.Error()))
			h.leave(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// listen drains client frames; clients only receive, so anything read is ignored.
func (h *Hub) listen(c *client) {
	defer h.leave(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func matchesTopic(topic, event string) bool {
	if topic == "" {
		return true
	}
	return strings.HasPrefix(event, topic+":") || event == topic
}
