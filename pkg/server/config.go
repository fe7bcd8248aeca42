package server

import "time"

// Config holds flag service settings.
type Config struct {
	// Addr is the listen address (default ":8099").
	Addr string

	// ReadTimeout is the WebSocket read deadline (default 60s).
	ReadTimeout time.Duration

	// WriteTimeout is the WebSocket write deadline (default 10s).
	WriteTimeout time.Duration

	// HeartbeatInterval is how often live connections are pinged
	// (default 30s). Must be shorter than ReadTimeout.
	HeartbeatInterval time.Duration

	// SendBuffer is the per-client outbound event queue size
	// (default 16). Events beyond it are dropped; clients recover from
	// the version field on the next event.
	SendBuffer int

	// MaxMessageSize limits inbound WebSocket messages (default 4KB).
	// Live clients only consume events, so inbound traffic is tiny.
	MaxMessageSize int64
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8099",
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		SendBuffer:        16,
		MaxMessageSize:    4096,
	}
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}
