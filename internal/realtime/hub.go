package realtime

import (
	"context"
	"sync"
	"sync/atomic"
)

// Hub is an in-process handler registry. WebSocketChannel dispatches through
// one, and on its own it serves as a Channel whose events are published
// locally.
type Hub struct {
	mu        sync.RWMutex
	nextID    uint64
	handlers  map[string]map[uint64]Handler
	connected atomic.Bool
}

// NewHub returns an empty, disconnected hub.
func NewHub() *Hub {
	return &Hub{handlers: make(map[string]map[uint64]Handler)}
}

func (h *Hub) On(name string, handler Handler) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.handlers[name] == nil {
		h.handlers[name] = make(map[uint64]Handler)
	}
	h.handlers[name][id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.handlers[name], id)
			if len(h.handlers[name]) == 0 {
				delete(h.handlers, name)
			}
			h.mu.Unlock()
		})
	}
}

// Dispatch delivers ev to every handler registered for name.
func (h *Hub) Dispatch(name string, ev Event) {
	ev.Name = name
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.handlers[name]))
	for _, fn := range h.handlers[name] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Listeners returns how many handlers are registered for name.
func (h *Hub) Listeners(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[name])
}

func (h *Hub) IsConnected() bool {
	return h.connected.Load()
}

// Connect marks the hub connected.
func (h *Hub) Connect(context.Context) error {
	h.connected.Store(true)
	return nil
}

// SetConnected flips the connection state.
func (h *Hub) SetConnected(v bool) {
	h.connected.Store(v)
}
