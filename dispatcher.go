package server

import (
	"errors"
	"io"

	"nova-strike/server/internal/net/proto"
	"nova-strike/server/internal/sim"
)

// ServeConn runs a reliable connection's session lifecycle: registers it,
// pumps frames into the dispatcher, and tears the session down when the read
// loop ends. It blocks until the connection dies and is meant to run in its
// own goroutine, one per connection.
func (h *Hub) ServeConn(conn Conn) {
	sess := h.AddSession(conn)
	for {
		frame, err := conn.ReadPacket()
		if err != nil {
			reason := "read failed"
			if errors.Is(err, io.EOF) {
				reason = "connection closed by peer"
			}
			h.RemoveSession(sess, reason)
			return
		}
		if !h.HandlePacket(sess, frame) {
			h.RemoveSession(sess, "client requested disconnect")
			return
		}
	}
}

// HandlePacket dispatches one reliable-channel frame. The return value is
// false only for a graceful disconnect request; malformed or unexpected
// packets are dropped without killing the session.
func (h *Hub) HandlePacket(sess *ClientSession, frame []byte) bool {
	header, pkt, err := proto.Decode(frame)
	if err != nil {
		var unknown proto.UnknownOpcodeError
		switch {
		case errors.As(err, &unknown):
			h.metrics.PacketDropped("unknown_opcode")
			h.logger.Warnf("session %d sent unknown opcode 0x%02X", sess.id, unknown.Opcode)
		case errors.Is(err, proto.ErrPayloadMismatch), errors.Is(err, proto.ErrTooSmall):
			h.metrics.PacketDropped("bad_framing")
			h.logger.Warnf("session %d sent malformed frame: %v", sess.id, err)
		default:
			h.metrics.PacketDropped("bad_payload")
			h.logger.Warnf("session %d sent truncated %v payload", sess.id, header.Opcode)
		}
		return true
	}
	h.metrics.PacketReceived(header.Opcode.String())
	h.touch(sess)

	switch p := pkt.(type) {
	case proto.ConnectReq:
		h.Authenticate(sess, p.Username)
	case proto.DisconnectReq:
		return false
	case proto.ReadyStatus:
		h.SetReady(sess, p.IsReady)
	case proto.SetGameSpeed:
		h.SetGameSpeed(sess, p.Speed)
	case proto.SetDifficulty:
		h.SetDifficulty(sess, p.Level)
	case proto.SetKillableProjectiles:
		h.SetKillableProjectiles(sess, p.Enabled)
	case proto.PlayerInput:
		// Input normally arrives on the unreliable channel; accept it here
		// too so clients behind UDP-hostile networks stay playable.
		h.stageInput(sess, p.Flags)
	default:
		// Server-to-client opcodes echoed back by a confused client.
		h.metrics.PacketDropped("wrong_direction")
		h.logger.Warnf("session %d sent server-bound %v, ignoring", sess.id, header.Opcode)
	}
	return true
}

func (h *Hub) touch(sess *ClientSession) {
	h.mu.Lock()
	sess.lastActivity = h.now()
	h.mu.Unlock()
}

func (h *Hub) stageInput(sess *ClientSession, flags uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !sess.authenticated() || h.phase != phaseInGame {
		return
	}
	h.inputs.Push(sim.InputCommand{PlayerID: sess.playerID, Flags: flags})
}
