// Package config defines the dashboard configuration schema and its HCL/JSON
// loader. A config file is optional; every field has a working default so the
// server can start with no file at all.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the dashboard.
type Config struct {
	Server    *ServerConfig    `hcl:"server,block" json:"server,omitempty"`
	Auth      *AuthConfig      `hcl:"auth,block" json:"auth,omitempty"`
	Sync      *SyncConfig      `hcl:"sync,block" json:"sync,omitempty"`
	Audit     *AuditConfig     `hcl:"audit,block" json:"audit,omitempty"`
	Log       *LogConfig       `hcl:"log,block" json:"log,omitempty"`
	RateLimit *RateLimitConfig `hcl:"rate_limit,block" json:"rate_limit,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen string `hcl:"listen,optional" json:"listen,omitempty"` // default :8080
}

// AuthConfig configures the credential store and session lifetimes.
type AuthConfig struct {
	UsersFile   string `hcl:"users_file,optional" json:"users_file,omitempty"`     // default beavernet-users.json
	SessionTTL  string `hcl:"session_ttl,optional" json:"session_ttl,omitempty"`   // default 24h
	RememberTTL string `hcl:"remember_ttl,optional" json:"remember_ttl,omitempty"` // default 720h

	// Bootstrap credentials, applied only when the store is empty.
	AdminUser     string `hcl:"admin_user,optional" json:"admin_user,omitempty"`
	AdminPassword string `hcl:"admin_password,optional" json:"admin_password,omitempty"`
}

// SyncConfig configures the external packet-filter sync.
type SyncConfig struct {
	Binary  string `hcl:"binary,optional" json:"binary,omitempty"`   // default iptables
	Timeout string `hcl:"timeout,optional" json:"timeout,omitempty"` // default 5s
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	DBPath        string `hcl:"db_path,optional" json:"db_path,omitempty"` // default beavernet-audit.db
	RetentionDays int    `hcl:"retention_days,optional" json:"retention_days,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `hcl:"level,optional" json:"level,omitempty"` // debug, info, warn, error
	JSON  bool   `hcl:"json,optional" json:"json,omitempty"`
}

// RateLimitConfig bounds login attempts per client IP.
type RateLimitConfig struct {
	LoginAttempts int    `hcl:"login_attempts,optional" json:"login_attempts,omitempty"` // default 5
	LoginWindow   string `hcl:"login_window,optional" json:"login_window,omitempty"`     // default 1m
}

// Default returns a config with every field set to its default.
func Default() *Config {
	return &Config{
		Server: &ServerConfig{Listen: ":8080"},
		Auth: &AuthConfig{
			UsersFile:   "beavernet-users.json",
			SessionTTL:  "24h",
			RememberTTL: "720h",
		},
		Sync: &SyncConfig{
			Binary:  "iptables",
			Timeout: "5s",
		},
		Audit: &AuditConfig{
			DBPath:        "beavernet-audit.db",
			RetentionDays: 90,
		},
		Log:       &LogConfig{Level: "info"},
		RateLimit: &RateLimitConfig{LoginAttempts: 5, LoginWindow: "1m"},
	}
}

// applyDefaults fills any nil blocks or zero fields from Default.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Server == nil {
		c.Server = def.Server
	} else if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}

	if c.Auth == nil {
		c.Auth = def.Auth
	} else {
		if c.Auth.UsersFile == "" {
			c.Auth.UsersFile = def.Auth.UsersFile
		}
		if c.Auth.SessionTTL == "" {
			c.Auth.SessionTTL = def.Auth.SessionTTL
		}
		if c.Auth.RememberTTL == "" {
			c.Auth.RememberTTL = def.Auth.RememberTTL
		}
	}

	if c.Sync == nil {
		c.Sync = def.Sync
	} else {
		if c.Sync.Binary == "" {
			c.Sync.Binary = def.Sync.Binary
		}
		if c.Sync.Timeout == "" {
			c.Sync.Timeout = def.Sync.Timeout
		}
	}

	if c.Audit == nil {
		c.Audit = def.Audit
	} else {
		if c.Audit.DBPath == "" {
			c.Audit.DBPath = def.Audit.DBPath
		}
		if c.Audit.RetentionDays <= 0 {
			c.Audit.RetentionDays = def.Audit.RetentionDays
		}
	}

	if c.Log == nil {
		c.Log = def.Log
	} else if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.RateLimit == nil {
		c.RateLimit = def.RateLimit
	} else {
		if c.RateLimit.LoginAttempts <= 0 {
			c.RateLimit.LoginAttempts = def.RateLimit.LoginAttempts
		}
		if c.RateLimit.LoginWindow == "" {
			c.RateLimit.LoginWindow = def.RateLimit.LoginWindow
		}
	}
}

// Validate checks duration fields and enum values.
func (c *Config) Validate() error {
	if _, err := c.SessionTTL(); err != nil {
		return fmt.Errorf("auth.session_ttl: %w", err)
	}
	if _, err := c.RememberTTL(); err != nil {
		return fmt.Errorf("auth.remember_ttl: %w", err)
	}
	if _, err := c.SyncTimeout(); err != nil {
		return fmt.Errorf("sync.timeout: %w", err)
	}
	if _, err := c.LoginWindow(); err != nil {
		return fmt.Errorf("rate_limit.login_window: %w", err)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}

	if (c.Auth.AdminUser == "") != (c.Auth.AdminPassword == "") {
		return fmt.Errorf("auth: admin_user and admin_password must be set together")
	}

	return nil
}

// SessionTTL returns the parsed default session lifetime.
func (c *Config) SessionTTL() (time.Duration, error) {
	return time.ParseDuration(c.Auth.SessionTTL)
}

// RememberTTL returns the parsed remember-me session lifetime.
func (c *Config) RememberTTL() (time.Duration, error) {
	return time.ParseDuration(c.Auth.RememberTTL)
}

// SyncTimeout returns the parsed per-invocation sync timeout.
func (c *Config) SyncTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Sync.Timeout)
}

// LoginWindow returns the parsed login rate-limit window.
func (c *Config) LoginWindow() (time.Duration, error) {
	return time.ParseDuration(c.RateLimit.LoginWindow)
}
