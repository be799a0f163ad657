// Package packetfilter mirrors repository state onto the host's iptables
// tool, best-effort. The repository stays authoritative: a missing binary is
// skipped silently, a failed invocation is logged and swallowed, and nothing
// here ever blocks or fails an API response.
package packetfilter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/beavernet/beavernet/internal/logging"
	"github.com/beavernet/beavernet/internal/metrics"
	"github.com/beavernet/beavernet/internal/store"
	"github.com/beavernet/beavernet/internal/validation"
)

// DefaultBinary is the packet-filter tool invoked on the host.
const DefaultBinary = "iptables"

// DefaultTimeout bounds a single external invocation.
const DefaultTimeout = 5 * time.Second

// Adapter translates rule/config records into external tool invocations.
type Adapter struct {
	runner  CommandRunner
	logger  *logging.Logger
	binary  string
	timeout time.Duration

	// wg tracks in-flight invocations so tests (and shutdown) can drain them.
	wg sync.WaitGroup
}

// Options configures the adapter.
type Options struct {
	Runner  CommandRunner // defaults to RealCommandRunner
	Logger  *logging.Logger
	Binary  string        // defaults to DefaultBinary
	Timeout time.Duration // defaults to DefaultTimeout
}

// New creates an adapter.
func New(opts Options) *Adapter {
	if opts.Runner == nil {
		opts.Runner = &RealCommandRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Adapter{
		runner:  opts.Runner,
		logger:  opts.Logger.WithComponent("packetfilter"),
		binary:  opts.Binary,
		timeout: opts.Timeout,
	}
}

// Wait blocks until all dispatched invocations have completed.
func (a *Adapter) Wait() {
	a.wg.Wait()
}

// ApplyRule installs a firewall rule, fire-and-forget.
func (a *Adapter) ApplyRule(rule store.FirewallRule) {
	a.dispatch("apply_rule", [][]string{ruleArgs(rule, "-A")})
}

// RevertRule removes a firewall rule using the fields stored with the record,
// not re-derived state, so divergent external state cannot block deletion.
func (a *Adapter) RevertRule(rule store.FirewallRule) {
	a.dispatch("revert_rule", [][]string{ruleArgs(rule, "-D")})
}

// ApplyProxy enables IP forwarding on the host, then installs the DNAT and
// FORWARD entries for a port forward.
func (a *Adapter) ApplyProxy(cfg store.ProxyConfig) {
	a.enableForwarding()
	a.dispatch("apply_proxy", proxyArgs(cfg, "-A"))
}

// RevertProxy removes the DNAT and FORWARD entries for a port forward.
func (a *Adapter) RevertProxy(cfg store.ProxyConfig) {
	a.dispatch("revert_proxy", proxyArgs(cfg, "-D"))
}

// enableForwarding turns on net.ipv4.ip_forward, best-effort like every
// other invocation here.
func (a *Adapter) enableForwarding() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		if _, err := a.runner.LookPath("sysctl"); err != nil {
			a.logger.Debug("sysctl unavailable, skipping ip_forward", "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.runner.Run(ctx, "sysctl", "-w", "net.ipv4.ip_forward=1"); err != nil {
			a.logger.Warn("enabling ip_forward failed", "error", err)
		}
	}()
}

// dispatch probes for the binary and runs the invocations on a tracked
// goroutine. The caller returns immediately.
func (a *Adapter) dispatch(operation string, invocations [][]string) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		// Nothing carrying a shell metacharacter reaches the host tool,
		// whatever upstream validation let through.
		for _, args := range invocations {
			for _, arg := range args {
				if err := validation.CheckDangerous("argument", arg); err != nil {
					metrics.Get().SyncFailures.WithLabelValues(operation).Inc()
					a.logger.Warn("refusing packet-filter invocation",
						"operation", operation, "error", err)
					return
				}
			}
		}

		if _, err := a.runner.LookPath(a.binary); err != nil {
			// Tool not installed on this host: degrade gracefully
			a.logger.Debug("packet-filter tool unavailable, skipping sync", "binary", a.binary, "operation", operation)
			return
		}

		metrics.Get().SyncInvocations.WithLabelValues(operation).Inc()

		for _, args := range invocations {
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			err := a.runner.Run(ctx, a.binary, args...)
			cancel()
			if err != nil {
				metrics.Get().SyncFailures.WithLabelValues(operation).Inc()
				a.logger.Warn("packet-filter sync failed",
					"operation", operation,
					"args", strings.Join(args, " "),
					"error", err)
				// Repository state already changed and is not rolled back
				return
			}
		}
	}()
}

// ruleArgs builds the iptables argv for an INPUT filter rule.
// Protocol ALL carries no -p flag.
func ruleArgs(rule store.FirewallRule, op string) []string {
	args := []string{op, "INPUT"}

	if rule.Protocol != store.ProtoAll {
		args = append(args, "-p", strings.ToLower(rule.Protocol))
	}

	args = append(args, "--dport", rule.Port)

	if rule.SourceIP != "" {
		args = append(args, "-s", rule.SourceIP)
	}
	if rule.DestinationIP != "" {
		args = append(args, "-d", rule.DestinationIP)
	}

	return append(args, "-j", rule.Action)
}

// proxyArgs builds the iptables argv pair for a port forward: a NAT
// PREROUTING DNAT entry plus a FORWARD accept entry.
func proxyArgs(cfg store.ProxyConfig, op string) [][]string {
	proto := strings.ToLower(cfg.Protocol)

	nat := []string{
		"-t", "nat", op, "PREROUTING",
		"-p", proto,
		"--dport", cfg.SourcePort,
		"-j", "DNAT",
		"--to", cfg.DestinationIP + ":" + cfg.DestinationPort,
	}
	forward := []string{
		op, "FORWARD",
		"-p", proto,
		"-d", cfg.DestinationIP,
		"--dport", cfg.DestinationPort,
		"-j", "ACCEPT",
	}

	return [][]string{nat, forward}
}
