package telemetry

import "time"

// Logger exposes the logging capabilities required by server components.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything. Useful as a test default.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any) {}
func (NopLogger) Warnf(string, ...any) {}
func (NopLogger) Errorf(string, ...any) {}

// Metrics exposes the counters server components report into. Implementations
// must be safe for concurrent use.
type Metrics interface {
	// SessionOpened records a new transport connection.
	SessionOpened()
	// SessionClosed records a closed transport connection.
	SessionClosed()
	// PlayerAuthenticated records a successful login.
	PlayerAuthenticated()
	// PlayerRemoved records an authenticated player leaving.
	PlayerRemoved()
	// PacketReceived counts an inbound packet by opcode name.
	PacketReceived(opcode string)
	// PacketDropped counts a discarded inbound packet by reason.
	PacketDropped(reason string)
	// SnapshotBytes accumulates outbound unreliable traffic.
	SnapshotBytes(n int)
	// TickObserved records how long one simulation tick took.
	TickObserved(d time.Duration)
}

// NopMetrics drops every observation.
type NopMetrics struct{}

func (NopMetrics) SessionOpened() {}
func (NopMetrics) SessionClosed() {}
func (NopMetrics) PlayerAuthenticated() {}
func (NopMetrics) PlayerRemoved() {}
func (NopMetrics) PacketReceived(string) {}
func (NopMetrics) PacketDropped(string) {}
func (NopMetrics) SnapshotBytes(int) {}
func (NopMetrics) TickObserved(time.Duration) {}
