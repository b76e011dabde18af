package server

import (
	"fmt"
	"time"
)

// Config carries every tunable the server reads at startup.
type Config struct {
	// TCPAddr is the reliable-channel listen address.
	TCPAddr string
	// UDPAddr is the unreliable-channel listen address.
	UDPAddr string
	// HTTPAddr serves metrics, diagnostics, and the websocket bridge.
	HTTPAddr string

	// MaxPlayers bounds the lobby. Player ids are 1..255 so this may not
	// exceed 255.
	MaxPlayers int
	// MinPlayers must be ready before a match starts.
	MinPlayers int

	// TickInterval is the fixed simulation step period.
	TickInterval time.Duration
	// IdleTimeout closes sessions with no inbound traffic. Zero disables
	// the sweep.
	IdleTimeout time.Duration

	// LogFile enables rolling-file logging when non-empty.
	LogFile string
	// Debug lowers the log level.
	Debug bool
}

// DefaultConfig returns the stock settings: a 4-player lobby ticking at
// 60 Hz.
func DefaultConfig() Config {
	return Config{
		TCPAddr:      ":7777",
		UDPAddr:      ":7778",
		HTTPAddr:     ":8080",
		MaxPlayers:   4,
		MinPlayers:   1,
		TickInterval: 16 * time.Millisecond,
		IdleTimeout:  30 * time.Second,
	}
}

// Validate rejects configurations the hub cannot honor.
func (c Config) Validate() error {
	if c.MaxPlayers < 1 || c.MaxPlayers > 255 {
		return fmt.Errorf("config: max players %d outside 1..255", c.MaxPlayers)
	}
	if c.MinPlayers < 1 || c.MinPlayers > c.MaxPlayers {
		return fmt.Errorf("config: min players %d outside 1..%d", c.MinPlayers, c.MaxPlayers)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick interval %v not positive", c.TickInterval)
	}
	return nil
}
