package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"presensure/internal/attendance"
	"presensure/internal/auth"
	"presensure/internal/metrics"
	"presensure/internal/queue"
)

// Hub pushes attendance events to every connected dashboard.
type Hub struct {
	mu      sync.Mutex
	clients map[*conn]auth.User
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*conn]auth.User)}
}

// Run forwards queue events to dashboards until ctx is done.
func (h *Hub) Run(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		h.dispatch(msg)
	}
	return nil
}

func (h *Hub) dispatch(msg queue.Message) {
	var event string
	switch msg.Type {
	case attendance.EventRecorded:
		event = "RECORDED"
	case attendance.EventReviewed:
		event = "REVIEWED"
	default:
		return
	}
	var rec attendance.Record
	if err := json.Unmarshal(msg.Body, &rec); err != nil {
		log.Printf("warning: drop %s event: %v", msg.Type, err)
		return
	}
	h.Broadcast(event, rec)
}

// Broadcast sends one envelope to every dashboard, dropping clients that
// cannot be written to.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.Lock()
	targets := make([]*conn, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(event, data); err != nil {
			log.Println("broadcast error:", err)
			h.remove(c)
			_ = c.close()
		}
	}
}

// Len reports the number of connected dashboards.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades a faculty or admin connection and keeps it registered until
// the dashboard disconnects.
func (h *Hub) Serve(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("ws upgrade failed:", err)
		return
	}
	cl := &conn{ws: ws}
	h.mu.Lock()
	h.clients[cl] = claims.User()
	h.mu.Unlock()
	metrics.ActiveSessions.WithLabelValues("dashboard").Inc()
	log.Printf("dashboard connected: %s (%s)", claims.Subject, claims.Role)

	defer func() {
		h.remove(cl)
		_ = cl.close()
		metrics.ActiveSessions.WithLabelValues("dashboard").Dec()
		log.Printf("dashboard disconnected: %s", claims.Subject)
	}()

	// Dashboards only listen; reading drives ping/close handling.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}
