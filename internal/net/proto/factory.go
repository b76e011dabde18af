package proto

// Encode serializes a packet into a fresh byte slice with a single-fragment
// header. Reliable-channel callers pass tickID 0.
func Encode(p Packet, tickID uint32) []byte {
	buf := NewBuffer()
	EncodeInto(buf, p, tickID)
	return buf.Bytes()
}

// EncodeInto serializes a packet into buf, which is reset first so hot paths
// can reuse one buffer across sends.
func EncodeInto(buf *Buffer, p Packet, tickID uint32) {
	buf.Reset()
	buf.WriteHeader(NewHeader(p.Op(), uint16(p.payloadSize()), tickID))
	p.encodePayload(buf)
}

// Decode parses one framed packet from data. It returns the header, the
// concrete packet value, and an error classifying any framing failure:
// ErrTooSmall when data cannot hold a header, ErrPayloadMismatch when the
// header declares more payload than data carries, UnknownOpcodeError for an
// unrecognized opcode, and ErrShortBuffer when a payload is truncated
// relative to its fixed layout. Trailing bytes beyond the declared payload
// are ignored.
func Decode(data []byte) (CommonHeader, Packet, error) {
	if len(data) < HeaderSize {
		return CommonHeader{}, nil, ErrTooSmall
	}
	buf := NewReadBuffer(data)
	header, err := buf.ReadHeader()
	if err != nil {
		return CommonHeader{}, nil, err
	}
	if buf.Remaining() < int(header.PayloadSize) {
		return header, nil, ErrPayloadMismatch
	}
	payload := NewReadBuffer(data[HeaderSize : HeaderSize+int(header.PayloadSize)])
	pkt, err := decodePayload(header.Opcode, payload)
	return header, pkt, err
}

func decodePayload(op Opcode, buf *Buffer) (Packet, error) {
	switch op {
	case OpConnectReq:
		return retErr(decodeConnectReq(buf))
	case OpConnectAck:
		return retErr(decodeConnectAck(buf))
	case OpDisconnectReq:
		return DisconnectReq{}, nil
	case OpNotifyDisconnect:
		return retErr(decodeNotifyDisconnect(buf))
	case OpGameStart:
		return retErr(decodeGameStart(buf))
	case OpGameEnd:
		return retErr(decodeGameEnd(buf))
	case OpReadyStatus:
		return retErr(decodeReadyStatus(buf))
	case OpNotifyConnect:
		return retErr(decodeNotifyConnect(buf))
	case OpNotifyReady:
		return retErr(decodeNotifyReady(buf))
	case OpSetGameSpeed:
		return retErr(decodeSetGameSpeed(buf))
	case OpNotifyGameSpeed:
		return retErr(decodeNotifyGameSpeed(buf))
	case OpSetDifficulty:
		return retErr(decodeSetDifficulty(buf))
	case OpSetKillableProjectiles:
		return retErr(decodeSetKillableProjectiles(buf))
	case OpNotifyDifficulty:
		return retErr(decodeNotifyDifficulty(buf))
	case OpNotifyKillableProjectiles:
		return retErr(decodeNotifyKillableProjectiles(buf))
	case OpPlayerInput:
		return retErr(decodePlayerInput(buf))
	case OpWorldSnapshot:
		return retErr(decodeWorldSnapshot(buf))
	case OpPlayerStats:
		return retErr(decodePlayerStats(buf))
	default:
		return nil, UnknownOpcodeError{Opcode: uint8(op)}
	}
}

func retErr[T Packet](p T, err error) (Packet, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
