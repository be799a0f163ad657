package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/beavernet/beavernet/internal/events"
	"github.com/beavernet/beavernet/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Enforce same-origin policy for WebSocket upgrades
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// No origin header (safe)
			return true
		}

		// Allow localhost for development/proxying
		if strings.Contains(origin, "://localhost:") || strings.Contains(origin, "://127.0.0.1:") {
			return true
		}

		// Strict same-origin check for others
		host := r.Host
		if len(origin) > 7 && origin[:7] == "http://" {
			return origin[7:] == host
		}
		if len(origin) > 8 && origin[:8] == "https://" {
			return origin[8:] == host
		}
		return false
	},
}

// WSMessage is a topic-based message sent to clients
type WSMessage struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// wsClient represents a connected WebSocket client with subscriptions
type wsClient struct {
	conn   *websocket.Conn
	topics map[string]bool
	send   chan []byte
}

// WSManager handles websocket connections with topic-based pub/sub.
// It bridges the event hub onto connected clients: each event is forwarded
// under a topic derived from its type ("rule.created" -> topic "rules").
type WSManager struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logging.Logger
}

// NewWSManager creates a manager and starts forwarding hub events.
func NewWSManager(hub *events.Hub, logger *logging.Logger) *WSManager {
	manager := &WSManager{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("ws"),
	}
	go manager.run()
	go manager.bridge(hub)
	return manager
}

// Stop shuts down the manager's goroutines, detaches it from the hub, and
// disconnects all clients. Safe to call more than once.
func (m *WSManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mutex.Lock()
		defer m.mutex.Unlock()
		for client := range m.clients {
			delete(m.clients, client)
			close(client.send)
			client.conn.Close()
		}
	})
}

func (m *WSManager) run() {
	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client] = true
			m.mutex.Unlock()
		case client := <-m.unregister:
			m.mutex.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				client.conn.Close()
			}
			m.mutex.Unlock()
		case <-m.done:
			return
		}
	}
}

// bridge forwards hub events to subscribed clients.
func (m *WSManager) bridge(hub *events.Hub) {
	ch := hub.Subscribe(256)
	defer hub.Unsubscribe(ch)

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if topic := eventTopic(e.Type); topic != "" {
				m.Publish(topic, e)
			}
		case <-m.done:
			return
		}
	}
}

// eventTopic maps event types to WebSocket topic names.
func eventTopic(t events.EventType) string {
	switch t {
	case events.EventRuleCreated, events.EventRuleDeleted:
		return "rules"
	case events.EventProxyCreated, events.EventProxyDeleted:
		return "proxies"
	case events.EventPanelCreated, events.EventPanelDeleted:
		return "panels"
	case events.EventLogin, events.EventLogout:
		return "sessions"
	default:
		return ""
	}
}

// Publish sends a message to all clients subscribed to the given topic
func (m *WSManager) Publish(topic string, data any) {
	msg := WSMessage{Topic: topic, Data: data}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for client := range m.clients {
		if client.topics[topic] {
			select {
			case client.send <- msgBytes:
			default:
				// Client buffer full, skip
			}
		}
	}
}

// readPump handles incoming messages from a client (subscriptions)
func (c *wsClient) readPump(m *WSManager) {
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.done:
		}
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg struct {
			Action string   `json:"action"`
			Topics []string `json:"topics"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			for _, topic := range msg.Topics {
				c.topics[topic] = true
			}
		case "unsubscribe":
			for _, topic := range msg.Topics {
				delete(c.topics, topic)
			}
		}
	}
}

// writePump sends messages to the client
func (c *wsClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

// handleEventsWS upgrades a session-authenticated connection to a websocket.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session")
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := s.users.ValidateSession(cookie.Value); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket", "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		topics: make(map[string]bool),
		send:   make(chan []byte, 256),
	}

	select {
	case s.wsManager.register <- client:
	case <-s.wsManager.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(s.wsManager)
}
