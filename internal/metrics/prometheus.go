// Package metrics exposes the dashboard's Prometheus instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all dashboard metrics.
type Registry struct {
	// API metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Auth metrics
	LoginAttempts  *prometheus.CounterVec
	ActiveSessions prometheus.Gauge

	// Repository metrics
	FirewallRules prometheus.Gauge
	ProxyConfigs  prometheus.Gauge

	// External sync metrics
	SyncInvocations *prometheus.CounterVec
	SyncFailures    *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beavernet_api_requests_total",
		Help: "Total API requests by method, path and status",
	}, []string{"method", "path", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beavernet_api_latency_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	r.LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beavernet_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	r.ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beavernet_active_sessions",
		Help: "Number of live sessions",
	})

	r.FirewallRules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beavernet_firewall_rules",
		Help: "Number of firewall rules in the repository",
	})

	r.ProxyConfigs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beavernet_proxy_configs",
		Help: "Number of proxy configs in the repository",
	})

	r.SyncInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beavernet_sync_invocations_total",
		Help: "External packet-filter invocations by operation",
	}, []string{"operation"})

	r.SyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beavernet_sync_failures_total",
		Help: "Failed external packet-filter invocations by operation",
	}, []string{"operation"})

	return r
}
