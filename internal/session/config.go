package session

import "time"

// BackoffConfig defines retry backoff behavior for request resends.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines session reliability defaults.
type Config struct {
	ConnectTimeout    time.Duration
	HandshakeTimeout  time.Duration
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	MaxRetries        int
	Backoff           BackoffConfig
}

// DefaultConfig returns defaults tuned for a device on a local link.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		RequestTimeout:    30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		SweepInterval:     time.Second,
		MaxRetries:        2,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}
