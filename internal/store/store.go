// Package store holds the in-memory repository for firewall rules, proxy
// port-forward configs, and dashboard panels. The repository is the single
// source of truth: external tool sync is best-effort and never read back.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beavernet/beavernet/internal/validation"
)

// Protocols and actions accepted by the firewall panel.
const (
	ProtoTCP  = "TCP"
	ProtoUDP  = "UDP"
	ProtoICMP = "ICMP"
	ProtoAll  = "ALL"

	ActionAccept = "ACCEPT"
	ActionDrop   = "DROP"
	ActionReject = "REJECT"
)

// ValidationError reports a missing or malformed field. The API layer maps it
// to a 400 response with the field name.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// FirewallRule is an inbound filter rule. Immutable once created.
type FirewallRule struct {
	ID            string    `json:"id"`
	Port          string    `json:"port"`
	Protocol      string    `json:"protocol"`
	Action        string    `json:"action"`
	SourceIP      string    `json:"sourceIp,omitempty"`
	DestinationIP string    `json:"destinationIp,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProxyConfig is a port-forward (DNAT) entry. Immutable once created.
type ProxyConfig struct {
	ID              string    `json:"id"`
	SourcePort      string    `json:"sourcePort"`
	DestinationIP   string    `json:"destinationIp"`
	DestinationPort string    `json:"destinationPort"`
	Protocol        string    `json:"protocol"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Panel is a user-defined dashboard shortcut.
type Panel struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// collection keeps records in insertion order with id lookup.
// One mutex per collection so mutations are linearizable and
// concurrent adds on different collections do not contend.
type collection[T any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make(map[string]T)}
}

func (c *collection[T]) list() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

func (c *collection[T]) add(id string, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = append(c.order, id)
	c.items[id] = item
}

func (c *collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	return item, ok
}

func (c *collection[T]) delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Repository owns the rule/config/panel collections. Construct one at the
// composition root and inject it; there is no package-level instance.
type Repository struct {
	rules   *collection[FirewallRule]
	proxies *collection[ProxyConfig]
	panels  *collection[Panel]
	now     func() time.Time
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		rules:   newCollection[FirewallRule](),
		proxies: newCollection[ProxyConfig](),
		panels:  newCollection[Panel](),
		now:     time.Now,
	}
}

// newID returns a fresh collision-free record id.
func newID() string {
	return uuid.NewString()
}

// --- Firewall rules ---

// FirewallRules returns all rules in insertion order.
func (r *Repository) FirewallRules() []FirewallRule {
	return r.rules.list()
}

// AddFirewallRule validates the fields, assigns an id and stores the rule.
func (r *Repository) AddFirewallRule(rule FirewallRule) (FirewallRule, error) {
	if err := validation.ValidatePort(rule.Port); err != nil {
		return FirewallRule{}, &ValidationError{Field: "port", Msg: err.Error()}
	}
	if err := validation.ValidateEnum("protocol", rule.Protocol, ProtoTCP, ProtoUDP, ProtoICMP, ProtoAll); err != nil {
		return FirewallRule{}, &ValidationError{Field: "protocol", Msg: err.Error()}
	}
	if err := validation.ValidateEnum("action", rule.Action, ActionAccept, ActionDrop, ActionReject); err != nil {
		return FirewallRule{}, &ValidationError{Field: "action", Msg: err.Error()}
	}
	if err := validation.ValidateIP(rule.SourceIP); err != nil {
		return FirewallRule{}, &ValidationError{Field: "sourceIp", Msg: err.Error()}
	}
	if err := validation.ValidateIP(rule.DestinationIP); err != nil {
		return FirewallRule{}, &ValidationError{Field: "destinationIp", Msg: err.Error()}
	}

	rule.ID = newID()
	rule.CreatedAt = r.now()
	r.rules.add(rule.ID, rule)
	return rule, nil
}

// GetFirewallRule returns a rule by id.
func (r *Repository) GetFirewallRule(id string) (FirewallRule, bool) {
	return r.rules.get(id)
}

// DeleteFirewallRule removes a rule. Returns false if the id is unknown.
func (r *Repository) DeleteFirewallRule(id string) bool {
	return r.rules.delete(id)
}

// RuleCount returns the number of stored rules.
func (r *Repository) RuleCount() int {
	return r.rules.len()
}

// --- Proxy configs ---

// ProxyConfigs returns all configs in insertion order.
func (r *Repository) ProxyConfigs() []ProxyConfig {
	return r.proxies.list()
}

// AddProxyConfig validates the fields, assigns an id and stores the config.
func (r *Repository) AddProxyConfig(cfg ProxyConfig) (ProxyConfig, error) {
	if err := validation.ValidatePort(cfg.SourcePort); err != nil {
		return ProxyConfig{}, &ValidationError{Field: "sourcePort", Msg: err.Error()}
	}
	if cfg.DestinationIP == "" {
		return ProxyConfig{}, &ValidationError{Field: "destinationIp", Msg: "destination IP cannot be empty"}
	}
	if err := validation.ValidateIP(cfg.DestinationIP); err != nil {
		return ProxyConfig{}, &ValidationError{Field: "destinationIp", Msg: err.Error()}
	}
	if err := validation.ValidatePort(cfg.DestinationPort); err != nil {
		return ProxyConfig{}, &ValidationError{Field: "destinationPort", Msg: err.Error()}
	}
	if err := validation.ValidateEnum("protocol", cfg.Protocol, ProtoTCP, ProtoUDP); err != nil {
		return ProxyConfig{}, &ValidationError{Field: "protocol", Msg: err.Error()}
	}

	cfg.ID = newID()
	cfg.CreatedAt = r.now()
	r.proxies.add(cfg.ID, cfg)
	return cfg, nil
}

// GetProxyConfig returns a config by id.
func (r *Repository) GetProxyConfig(id string) (ProxyConfig, bool) {
	return r.proxies.get(id)
}

// DeleteProxyConfig removes a config. Returns false if the id is unknown.
func (r *Repository) DeleteProxyConfig(id string) bool {
	return r.proxies.delete(id)
}

// ProxyCount returns the number of stored configs.
func (r *Repository) ProxyCount() int {
	return r.proxies.len()
}

// --- Panels ---

// Panels returns all panels in insertion order.
func (r *Repository) Panels() []Panel {
	return r.panels.list()
}

// AddPanel validates the fields, assigns an id and stores the panel.
func (r *Repository) AddPanel(p Panel) (Panel, error) {
	if p.Title == "" {
		return Panel{}, &ValidationError{Field: "title", Msg: "title cannot be empty"}
	}
	if err := validation.ValidateURL(p.URL); err != nil {
		return Panel{}, &ValidationError{Field: "url", Msg: err.Error()}
	}

	p.ID = newID()
	p.CreatedAt = r.now()
	r.panels.add(p.ID, p)
	return p, nil
}

// DeletePanel removes a panel. Returns false if the id is unknown.
func (r *Repository) DeletePanel(id string) bool {
	return r.panels.delete(id)
}
