// Package udp serves the unreliable channel: input datagrams in, snapshot
// datagrams out, no retries either way.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"nova-strike/server"
	"nova-strike/server/internal/telemetry"
)

// maxDatagram bounds reads; every packet the protocol defines fits well
// inside one ethernet MTU.
const maxDatagram = 1400

// Server owns the UDP socket shared by the receive loop and the broadcaster.
type Server struct {
	hub    *server.Hub
	logger telemetry.Logger
	conn   *net.UDPConn
}

// NewServer prepares a socket-less server; call Listen before Serve.
func NewServer(hub *server.Hub, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	return &Server{hub: hub, logger: logger}
}

// Listen binds the UDP socket and installs the hub's outbound send path.
func (s *Server) Listen(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("udp: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("udp: listen %s: %w", addr, err)
	}
	s.conn = conn
	s.hub.SetUDPSender(s.Send)
	s.logger.Infof("udp listening on %s", conn.LocalAddr())
	return nil
}

// Serve runs the receive loop until ctx is cancelled or the socket fails.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()
	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("udp: read: %w", err)
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.hub.HandleDatagram(addr, data)
	}
}

// Send fires one datagram at addr. Losses are the channel's contract, so
// errors are logged at debug and otherwise ignored.
func (s *Server) Send(addr *net.UDPAddr, frame []byte) {
	if _, err := s.conn.WriteToUDP(frame, addr); err != nil {
		s.logger.Debugf("udp send to %v failed: %v", addr, err)
	}
}

// Addr reports the bound socket address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}
