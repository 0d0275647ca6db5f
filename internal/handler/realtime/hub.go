package realtime

import (
	"sync"

	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
)

// Hub tracks which connections are bound to which session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
}

// NewHub 创建空的连接注册表
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*client]struct{})}
}

func (h *Hub) bind(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[sessionID]
	if !ok {
		clients = make(map[*client]struct{})
		h.sessions[sessionID] = clients
	}
	clients[c] = struct{}{}
}

func (h *Hub) unbind(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, sessionID)
	}
}

// Deliver sends ev to every connection bound to its session. Events for sessions without a
// live connection are dropped.
func (h *Hub) Deliver(ev protocol.ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.sessions[ev.Session()] {
		c.send(ev)
	}
}

// Connected reports whether at least one connection is bound to the session.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}
