// Package events provides a pub/sub event bus for dashboard activity.
// Configuration changes and session activity flow through this hub so that
// live UI subscribers see changes as they happen.
package events

import "time"

// EventType identifies the category of event.
type EventType string

// Event types for all dashboard sources.
const (
	// Firewall rule events
	EventRuleCreated EventType = "rule.created"
	EventRuleDeleted EventType = "rule.deleted"

	// Proxy config events
	EventProxyCreated EventType = "proxy.created"
	EventProxyDeleted EventType = "proxy.deleted"

	// Panel events
	EventPanelCreated EventType = "panel.created"
	EventPanelDeleted EventType = "panel.deleted"

	// Session events
	EventLogin  EventType = "session.login"
	EventLogout EventType = "session.logout"
)

// Event is the core message passed through the event bus.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"` // Component that emitted: "api", "auth"
	Data      interface{} `json:"data"`   // Type-specific payload
}

// RuleChangeData is the payload for rule created/deleted events.
type RuleChangeData struct {
	ID       string `json:"id"`
	Port     string `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	Action   string `json:"action,omitempty"`
}

// ProxyChangeData is the payload for proxy created/deleted events.
type ProxyChangeData struct {
	ID              string `json:"id"`
	SourcePort      string `json:"sourcePort,omitempty"`
	DestinationIP   string `json:"destinationIp,omitempty"`
	DestinationPort string `json:"destinationPort,omitempty"`
}

// PanelChangeData is the payload for panel created/deleted events.
type PanelChangeData struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// SessionData is the payload for login/logout events. It never carries
// credentials or tokens.
type SessionData struct {
	Username string `json:"username"`
	Remember bool   `json:"remember,omitempty"`
}
