package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Hub is the central event bus for the dashboard.
// It provides pub/sub semantics with typed events and non-blocking fan-out.
type Hub struct {
	mu   sync.RWMutex
	subs map[EventType][]chan Event

	// Global subscribers receive all events
	global []chan Event

	// Metrics
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a new event hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[EventType][]chan Event),
	}
}

// Publish sends an event to all subscribers of that event type.
// This is non-blocking - if a subscriber's channel is full, the event is dropped.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.published.Add(1)

	// Send to type-specific subscribers
	for _, ch := range h.subs[e.Type] {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}

	// Send to global subscribers
	for _, ch := range h.global {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel that receives events of the specified types.
// If no types are specified, subscribes to all events.
// The caller is responsible for draining the channel to avoid drops.
func (h *Hub) Subscribe(bufSize int, types ...EventType) <-chan Event {
	if bufSize <= 0 {
		bufSize = 256
	}

	ch := make(chan Event, bufSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(types) == 0 {
		// Global subscription
		h.global = append(h.global, ch)
	} else {
		for _, t := range types {
			h.subs[t] = append(h.subs[t], ch)
		}
	}

	return ch
}

// Unsubscribe removes a channel from all subscriptions.
// The channel is NOT closed by this method.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.global = removeFromSlice(h.global, ch)

	for t, subs := range h.subs {
		h.subs[t] = removeFromSlice(subs, ch)
	}
}

// Stats returns publish/drop counts for monitoring.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

// removeFromSlice removes a channel from a slice of channels.
func removeFromSlice(slice []chan Event, target <-chan Event) []chan Event {
	result := make([]chan Event, 0, len(slice))
	for _, ch := range slice {
		if ch != target {
			result = append(result, ch)
		}
	}
	return result
}

// EmitRuleCreated publishes a firewall rule creation event.
func (h *Hub) EmitRuleCreated(id, port, protocol, action string) {
	h.Publish(Event{
		Type:   EventRuleCreated,
		Source: "api",
		Data: RuleChangeData{
			ID:       id,
			Port:     port,
			Protocol: protocol,
			Action:   action,
		},
	})
}

// EmitRuleDeleted publishes a firewall rule deletion event.
func (h *Hub) EmitRuleDeleted(id string) {
	h.Publish(Event{
		Type:   EventRuleDeleted,
		Source: "api",
		Data:   RuleChangeData{ID: id},
	})
}

// EmitProxyCreated publishes a proxy config creation event.
func (h *Hub) EmitProxyCreated(id, sourcePort, destIP, destPort string) {
	h.Publish(Event{
		Type:   EventProxyCreated,
		Source: "api",
		Data: ProxyChangeData{
			ID:              id,
			SourcePort:      sourcePort,
			DestinationIP:   destIP,
			DestinationPort: destPort,
		},
	})
}

// EmitProxyDeleted publishes a proxy config deletion event.
func (h *Hub) EmitProxyDeleted(id string) {
	h.Publish(Event{
		Type:   EventProxyDeleted,
		Source: "api",
		Data:   ProxyChangeData{ID: id},
	})
}

// EmitLogin publishes a successful login event.
func (h *Hub) EmitLogin(username string, remember bool) {
	h.Publish(Event{
		Type:   EventLogin,
		Source: "auth",
		Data:   SessionData{Username: username, Remember: remember},
	})
}

// EmitLogout publishes a logout event.
func (h *Hub) EmitLogout(username string) {
	h.Publish(Event{
		Type:   EventLogout,
		Source: "auth",
		Data:   SessionData{Username: username},
	})
}
