package services

import (
	"sync"
)

const (
	SuggestionGenerating = "generating"
	SuggestionReady      = "ready"
	SuggestionFailed     = "failed"
)

// SuggestionEvent tells dashboards that a task's suggestion list changed,
// so they can refetch instead of polling.
type SuggestionEvent struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// SSEHub fans suggestion events out to connected stream clients.
type SSEHub struct {
	clients map[string]chan SuggestionEvent
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]chan SuggestionEvent),
	}
}

// Subscribe registers a client and returns its event channel.
func (h *SSEHub) Subscribe(clientID string) <-chan SuggestionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old)
	}
	ch := make(chan SuggestionEvent, 64)
	h.clients[clientID] = ch
	return ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish never blocks; a client whose buffer is full misses the event.
func (h *SSEHub) Publish(event SuggestionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
