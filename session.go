package server

import (
	"net"
	"time"

	"nova-strike/server/internal/net/proto"
)

// Conn is one reliable-channel connection. ReadPacket blocks for the next
// complete frame; Send writes one frame and must be safe for concurrent use.
// Both TCP and websocket transports satisfy this.
type Conn interface {
	ReadPacket() ([]byte, error)
	Send(frame []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// ClientSession is the server-side state for one reliable connection. All
// mutable fields are guarded by the hub mutex; the transport goroutine only
// touches them through hub methods.
type ClientSession struct {
	id   uint64
	conn Conn

	playerID uint8 // 0 until authenticated
	username string
	ready    bool

	// udpAddr is the unreliable-channel return address, nil until the
	// client's discovery datagram binds it.
	udpAddr *net.UDPAddr

	lastActivity time.Time
}

// PlayerID returns the assigned player id, zero when unauthenticated.
func (s *ClientSession) PlayerID() uint8 { return s.playerID }

// Username returns the accepted login name, empty when unauthenticated.
func (s *ClientSession) Username() string { return s.username }

// RemoteAddr reports the reliable channel's peer address.
func (s *ClientSession) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *ClientSession) authenticated() bool { return s.playerID != 0 }

// send encodes pkt on the reliable channel. Reliable packets carry tick 0.
// Errors are returned so callers can schedule the session for removal.
func (s *ClientSession) send(pkt proto.Packet) error {
	return s.conn.Send(proto.Encode(pkt, 0))
}
