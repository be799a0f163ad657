package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("expected listen :8080, got %s", cfg.Server.Listen)
	}
	ttl, err := cfg.SessionTTL()
	if err != nil {
		t.Fatalf("session ttl: %v", err)
	}
	if ttl != 24*time.Hour {
		t.Errorf("expected 24h session ttl, got %v", ttl)
	}
}

func TestLoadHCL(t *testing.T) {
	src := `
server {
  listen = ":9090"
}

auth {
  users_file   = "/var/lib/beavernet/users.json"
  remember_ttl = "168h"
}

sync {
  binary = "/usr/sbin/iptables"
}

log {
  level = "debug"
}
`
	cfg, err := LoadHCL([]byte(src), "test.hcl")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Listen != ":9090" {
		t.Errorf("expected listen :9090, got %s", cfg.Server.Listen)
	}
	if cfg.Auth.UsersFile != "/var/lib/beavernet/users.json" {
		t.Errorf("unexpected users file %s", cfg.Auth.UsersFile)
	}

	// Unset fields fall back to defaults
	ttl, err := cfg.SessionTTL()
	if err != nil || ttl != 24*time.Hour {
		t.Errorf("expected default 24h session ttl, got %v (%v)", ttl, err)
	}
	remember, err := cfg.RememberTTL()
	if err != nil || remember != 168*time.Hour {
		t.Errorf("expected 168h remember ttl, got %v (%v)", remember, err)
	}
	if cfg.Sync.Binary != "/usr/sbin/iptables" {
		t.Errorf("unexpected sync binary %s", cfg.Sync.Binary)
	}
	if cfg.Sync.Timeout != "5s" {
		t.Errorf("expected default 5s timeout, got %s", cfg.Sync.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Log.Level)
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("expected default retention 90, got %d", cfg.Audit.RetentionDays)
	}
}

func TestLoadHCL_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "bad duration",
			src:     "auth {\n  session_ttl = \"sometime\"\n}\n",
			wantErr: "session_ttl",
		},
		{
			name:    "bad log level",
			src:     "log {\n  level = \"verbose\"\n}\n",
			wantErr: "log.level",
		},
		{
			name:    "admin user without password",
			src:     "auth {\n  admin_user = \"root\"\n}\n",
			wantErr: "admin_user and admin_password",
		},
		{
			name:    "syntax error",
			src:     "server {",
			wantErr: "parse error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadHCL([]byte(tt.src), "test.hcl")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadJSON(t *testing.T) {
	src := `{
  "server": {"listen": ":7070"},
  "rate_limit": {"login_attempts": 10, "login_window": "30s"}
}`
	cfg, err := LoadJSON([]byte(src))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Listen != ":7070" {
		t.Errorf("expected listen :7070, got %s", cfg.Server.Listen)
	}
	if cfg.RateLimit.LoginAttempts != 10 {
		t.Errorf("expected 10 attempts, got %d", cfg.RateLimit.LoginAttempts)
	}
	window, err := cfg.LoginWindow()
	if err != nil || window != 30*time.Second {
		t.Errorf("expected 30s window, got %v (%v)", window, err)
	}
}

func TestLoadFile_ByExtension(t *testing.T) {
	dir := t.TempDir()

	hclPath := filepath.Join(dir, "beavernet.hcl")
	if err := os.WriteFile(hclPath, []byte("server {\n  listen = \":1234\"\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(hclPath)
	if err != nil {
		t.Fatalf("load hcl failed: %v", err)
	}
	if cfg.Server.Listen != ":1234" {
		t.Errorf("expected :1234, got %s", cfg.Server.Listen)
	}

	jsonPath := filepath.Join(dir, "beavernet.json")
	if err := os.WriteFile(jsonPath, []byte(`{"server":{"listen":":5678"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("load json failed: %v", err)
	}
	if cfg.Server.Listen != ":5678" {
		t.Errorf("expected :5678, got %s", cfg.Server.Listen)
	}
}

func TestGenerateHCL_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Listen = ":4242"

	out, err := GenerateHCL(cfg)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	back, err := LoadHCL(out, "generated.hcl")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if back.Server.Listen != ":4242" {
		t.Errorf("expected :4242 after round trip, got %s", back.Server.Listen)
	}
}
