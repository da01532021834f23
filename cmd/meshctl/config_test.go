package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/meshctl/internal/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
target = "192.168.1.42"
baud = 921600
handshake_timeout = "20s"
request_timeout = "45s"
heartbeat_interval = "1m"
max_retries = 4
`)

	target, baud, cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if target != "192.168.1.42" {
		t.Fatalf("unexpected target: %q", target)
	}
	if baud != 921600 {
		t.Fatalf("unexpected baud: %d", baud)
	}
	if cfg.HandshakeTimeout != 20*time.Second {
		t.Fatalf("unexpected handshake timeout: %v", cfg.HandshakeTimeout)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Fatalf("unexpected request timeout: %v", cfg.RequestTimeout)
	}
	if cfg.HeartbeatInterval != time.Minute {
		t.Fatalf("unexpected heartbeat interval: %v", cfg.HeartbeatInterval)
	}
	if cfg.MaxRetries != 4 {
		t.Fatalf("unexpected max retries: %d", cfg.MaxRetries)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `target = "/dev/ttyUSB0"`)

	target, baud, cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if target != "/dev/ttyUSB0" {
		t.Fatalf("unexpected target: %q", target)
	}
	if baud != 0 {
		t.Fatalf("unexpected baud: %d", baud)
	}
	def := session.DefaultConfig()
	if cfg.RequestTimeout != def.RequestTimeout {
		t.Fatalf("request timeout drifted from default: %v", cfg.RequestTimeout)
	}
	if cfg.MaxRetries != def.MaxRetries {
		t.Fatalf("max retries drifted from default: %d", cfg.MaxRetries)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `request_timeout = "soon"`)
	if _, _, _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestParseDest(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"bcast", 0xFFFFFFFF, true},
		{"broadcast", 0xFFFFFFFF, true},
		{"!a1b2c3d4", 0xA1B2C3D4, true},
		{"42", 42, true},
		{"!zzzz", 0, false},
		{"notanode", 0, false},
	}
	for _, tc := range cases {
		got, err := parseDest(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("parseDest(%q): %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("parseDest(%q) accepted", tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("parseDest(%q) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}
