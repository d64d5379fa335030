package ws

import (
	"sync"
)

// Hub tracks the live sessions of a Service.
type Hub struct {
	sessions map[*Session]struct{}
	mu       sync.RWMutex

	onEmpty func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
	}
}

// SetOnEmpty sets the callback run when the last session leaves.
func (h *Hub) SetOnEmpty(callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEmpty = callback
}

// Register adds a session to the hub.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

// Unregister removes a session from the hub.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	remaining := len(h.sessions)
	onEmpty := h.onEmpty
	h.mu.Unlock()

	if ok && remaining == 0 && onEmpty != nil {
		onEmpty()
	}
}

// Get returns the live session with the given id.
func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close asks every live session to shut down. Sessions unregister
// themselves once their goroutines have exited.
func (h *Hub) Close() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
