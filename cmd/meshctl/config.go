package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/meshctl/internal/session"
)

type fileConfig struct {
	Target            string `toml:"target"`
	Baud              int    `toml:"baud"`
	ConnectTimeout    string `toml:"connect_timeout"`
	HandshakeTimeout  string `toml:"handshake_timeout"`
	RequestTimeout    string `toml:"request_timeout"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	MaxRetries        int    `toml:"max_retries"`
}

// loadConfig overlays file settings onto the defaults. Keys absent
// from the file keep their defaults.
func loadConfig(path string) (string, int, session.Config, error) {
	cfg := session.DefaultConfig()
	target := ""
	baud := 0

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return "", 0, session.Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("target") {
		target = strings.TrimSpace(raw.Target)
	}
	if meta.IsDefined("baud") {
		baud = raw.Baud
	}

	if meta.IsDefined("connect_timeout") {
		if cfg.ConnectTimeout, err = parseDur(raw.ConnectTimeout, "connect_timeout"); err != nil {
			return "", 0, session.Config{}, err
		}
	}
	if meta.IsDefined("handshake_timeout") {
		if cfg.HandshakeTimeout, err = parseDur(raw.HandshakeTimeout, "handshake_timeout"); err != nil {
			return "", 0, session.Config{}, err
		}
	}
	if meta.IsDefined("request_timeout") {
		if cfg.RequestTimeout, err = parseDur(raw.RequestTimeout, "request_timeout"); err != nil {
			return "", 0, session.Config{}, err
		}
	}
	if meta.IsDefined("heartbeat_interval") {
		if cfg.HeartbeatInterval, err = parseDur(raw.HeartbeatInterval, "heartbeat_interval"); err != nil {
			return "", 0, session.Config{}, err
		}
	}
	if meta.IsDefined("max_retries") {
		cfg.MaxRetries = raw.MaxRetries
	}

	return target, baud, cfg, nil
}

func parseDur(raw, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
