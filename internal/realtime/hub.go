package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

const heartbeatInterval = 15 * time.Second

type Hub struct {
	mu      sync.RWMutex
	logger  *logger.Logger
	clients map[*Client]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:  log.With("component", "RealtimeHub"),
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a live connection for identity.
func (hub *Hub) Register(identity Identity) *Client {
	c := &Client{
		ID:       uuid.New(),
		Identity: identity,
		Outbound: make(chan Message, clientBuffer),
		done:     make(chan struct{}),
	}
	c.Logger = hub.logger.With("client_id", c.ID.String())

	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()

	hub.logger.Debug("Realtime client registered", "client_id", c.ID.String(), "user_id", identity.UserID.String(), "session_id", identity.SessionID.String())
	return c
}

// Broadcast delivers msg to every connection its target matches. Delivery is
// best-effort: a full client buffer drops the message.
func (hub *Hub) Broadcast(msg Message) int {
	if msg.Channel == "" || msg.Target.IsZero() {
		return 0
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	delivered := 0
	for c := range hub.clients {
		if !msg.Target.Matches(c.Identity) {
			continue
		}
		select {
		case c.Outbound <- msg:
			delivered++
		default:
			hub.logger.Warn("Dropping realtime message; outbound buffer full", "client_id", c.ID.String(), "channel", string(msg.Channel))
		}
	}
	return delivered
}

func (hub *Hub) Count() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// Close unregisters c. It is safe to call more than once.
func (hub *Hub) Close(c *Client) {
	c.once.Do(func() {
		hub.mu.Lock()
		delete(hub.clients, c)
		close(c.done)
		close(c.Outbound)
		hub.mu.Unlock()
		hub.logger.Debug("Realtime client closed", "client_id", c.ID.String())
	})
}

// CloseAll disconnects every client, used on shutdown.
func (hub *Hub) CloseAll() {
	hub.mu.RLock()
	all := make([]*Client, 0, len(hub.clients))
	for c := range hub.clients {
		all = append(all, c)
	}
	hub.mu.RUnlock()
	for _, c := range all {
		hub.Close(c)
	}
}

// ServeHTTP streams c's messages as server-sent events until the request
// context ends or the client is closed.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, c *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("Realtime client context done", "client_id", c.ID.String(), "err", ctx.Err())
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-c.Outbound:
			if !ok {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				hub.logger.Warn("Failed to write realtime message", "client_id", c.ID.String(), "error", err)
				continue
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg Message) error {
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Channel, raw)
	return err
}
