package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is a task-lifecycle notification pushed to a family's connected
// clients.
type Event struct {
	Kind     string `json:"kind"`
	TaskID   int64  `json:"task_id,omitempty"`
	FamilyID int64  `json:"family_id"`
	Actor    int64  `json:"actor,omitempty"`
}

// Event kinds broadcast by the task handlers.
const (
	EventTaskCreated   = "task_created"
	EventTaskUpdated   = "task_updated"
	EventTaskDeleted   = "task_deleted"
	EventTaskCompleted = "task_completed"
	EventTaskVerified  = "task_verified"
	EventTaskRejected  = "task_rejected"
)

// Hub tracks connected clients per family and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.clients[c.familyID] == nil {
		h.clients[c.familyID] = make(map[*Client]struct{})
	}
	h.clients[c.familyID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.familyID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.familyID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every client connected for the event's family.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[event.FamilyID] {
		select {
		case c.send <- data:
		default:
			// Slow client, drop the event instead of blocking.
		}
	}
}

// ClientCount returns the number of connected clients for a family.
func (h *Hub) ClientCount(familyID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[familyID])
}
