package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfolio/reindexer/pkg/logger"
)

// ProgressEvent is one step of a running simulation, pushed to every
// connected websocket client.
type ProgressEvent struct {
	RunID  int64   `json:"run_id"`
	Date   string  `json:"date"`
	Step   int     `json:"step"`
	Equity float64 `json:"equity"`
}

// ProgressHub fans simulation progress out to websocket subscribers.
// Slow or broken clients are dropped, never waited on.
type ProgressHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewProgressHub creates a progress hub.
func NewProgressHub(log *logger.Logger) *ProgressHub {
	return &ProgressHub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Handle upgrades the request and subscribes the client.
// GET /ws/progress
func (h *ProgressHub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	h.logger.Debug("Progress client connected")

	// Drain the connection until the client goes away.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes one event to every subscriber.
func (h *ProgressHub) Broadcast(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			h.logger.WithError(err).Warn("Dropping progress client, deadline not set")
			delete(h.clients, conn)
			conn.Close()
			continue
		}
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.WithError(err).Debug("Dropping progress client, write failed")
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Step broadcasts one simulation step. This is the shape the paper
// loop's broadcaster hook expects, so a hub can be plugged in directly.
func (h *ProgressHub) Step(date time.Time, step int, equity float64) {
	h.Broadcast(ProgressEvent{
		Date:   date.Format("2006-01-02"),
		Step:   step,
		Equity: equity,
	})
}

// Clients returns the number of connected subscribers.
func (h *ProgressHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ProgressHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}
