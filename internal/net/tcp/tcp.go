// Package tcp serves the reliable channel: length-framed packets over plain
// TCP, one session goroutine per connection.
package tcp

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"nova-strike/server"
	"nova-strike/server/internal/net/proto"
	"nova-strike/server/internal/telemetry"
)

const writeWait = 10 * time.Second

// Server accepts reliable-channel connections and hands each one to the hub.
type Server struct {
	hub    *server.Hub
	logger telemetry.Logger
	ln     net.Listener
}

// NewServer prepares a listener-less server; call Listen before Serve.
func NewServer(hub *server.Hub, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	return &Server{hub: hub, logger: logger}
}

// Listen binds the TCP listen address.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp: listen %s: %w", addr, err)
	}
	s.ln = ln
	s.logger.Infof("tcp listening on %s", ln.Addr())
	return nil
}

// Serve runs the accept loop until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("tcp: accept: %w", err)
		}
		go s.hub.ServeConn(newConn(c))
	}
}

// Addr reports the bound listen address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// conn adapts a net.Conn to the hub's framed-packet interface.
type conn struct {
	raw net.Conn
	rd  *bufio.Reader

	writeMu sync.Mutex
}

func newConn(c net.Conn) *conn {
	return &conn{raw: c, rd: bufio.NewReader(c)}
}

// ReadPacket blocks for one complete frame: the fixed header followed by the
// payload length the header declares.
func (c *conn) ReadPacket() ([]byte, error) {
	frame := make([]byte, proto.HeaderSize)
	if _, err := io.ReadFull(c.rd, frame); err != nil {
		return nil, err
	}
	// payload_size sits at offset 1, little-endian.
	payloadSize := int(binary.LittleEndian.Uint16(frame[1:3]))
	if payloadSize == 0 {
		return frame, nil
	}
	frame = append(frame, make([]byte, payloadSize)...)
	if _, err := io.ReadFull(c.rd, frame[proto.HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// Send writes one frame, serializing concurrent writers.
func (c *conn) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
	_, err := c.raw.Write(frame)
	return err
}

func (c *conn) Close() error { return c.raw.Close() }

func (c *conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }
