package proto

import "strings"

// Packet is implemented by every concrete packet kind. Serialize writes the
// header and payload into buf; reliable-channel kinds pass tickID through
// unchanged as zero.
type Packet interface {
	Op() Opcode
	payloadSize() int
	encodePayload(buf *Buffer)
}

// encodeUsername writes name as a fixed 32-byte field, NUL padded and
// truncated to 31 bytes so the field always terminates.
func encodeUsername(buf *Buffer, name string) {
	raw := []byte(name)
	if len(raw) > UsernameLen-1 {
		raw = raw[:UsernameLen-1]
	}
	for i := 0; i < UsernameLen; i++ {
		if i < len(raw) {
			buf.WriteU8(raw[i])
		} else {
			buf.WriteU8(0)
		}
	}
}

func decodeUsername(buf *Buffer) (string, error) {
	raw, err := buf.ReadBytes(UsernameLen)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(string(raw), 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw), nil
}

// ConnectReq (0x01, C->S): a client asks to join the lobby.
type ConnectReq struct {
	Username string
}

func (ConnectReq) Op() Opcode { return OpConnectReq }
func (ConnectReq) payloadSize() int { return UsernameLen }
func (p ConnectReq) encodePayload(buf *Buffer) {
	encodeUsername(buf, p.Username)
}

func decodeConnectReq(buf *Buffer) (ConnectReq, error) {
	name, err := decodeUsername(buf)
	return ConnectReq{Username: name}, err
}

// ConnectAck (0x02, S->C): login response with current lobby occupancy.
type ConnectAck struct {
	PlayerID   uint8
	Status     uint8
	Connected  uint8
	Ready      uint8
	MaxPlayers uint8
	MinPlayers uint8
	Reserved   uint16
}

func (ConnectAck) Op() Opcode { return OpConnectAck }
func (ConnectAck) payloadSize() int { return 8 }
func (p ConnectAck) encodePayload(buf *Buffer) {
	buf.WriteU8(p.PlayerID)
	buf.WriteU8(p.Status)
	buf.WriteU8(p.Connected)
	buf.WriteU8(p.Ready)
	buf.WriteU8(p.MaxPlayers)
	buf.WriteU8(p.MinPlayers)
	buf.WriteU16(p.Reserved)
}

func decodeConnectAck(buf *Buffer) (ConnectAck, error) {
	var p ConnectAck
	var err error
	if p.PlayerID, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if p.Status, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if p.Connected, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if p.Ready, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if p.MaxPlayers, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if p.MinPlayers, err = buf.ReadU8(); err != nil {
		return p, err
	}
	p.Reserved, err = buf.ReadU16()
	return p, err
}

// DisconnectReq (0x03, C->S): graceful leave, header only.
type DisconnectReq struct{}

func (DisconnectReq) Op() Opcode { return OpDisconnectReq }
func (DisconnectReq) payloadSize() int { return 0 }
func (DisconnectReq) encodePayload(*Buffer) {}

// NotifyDisconnect (0x04, S->C): a player left the lobby or match.
type NotifyDisconnect struct {
	PlayerID uint8
}

func (NotifyDisconnect) Op() Opcode { return OpNotifyDisconnect }
func (NotifyDisconnect) payloadSize() int { return 4 }
func (p NotifyDisconnect) encodePayload(buf *Buffer) {
	buf.WriteU8(p.PlayerID)
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodeNotifyDisconnect(buf *Buffer) (NotifyDisconnect, error) {
	var p NotifyDisconnect
	var err error
	if p.PlayerID, err = buf.ReadU8(); err != nil {
		return p, err
	}
	_, err = buf.ReadBytes(3)
	return p, err
}

// GameStart (0x05, S->C): match begins; tells the client which entity it
// controls.
type GameStart struct {
	ControlledEntityID uint32
}

func (GameStart) Op() Opcode { return OpGameStart }
func (GameStart) payloadSize() int { return 4 }
func (p GameStart) encodePayload(buf *Buffer) {
	buf.WriteU32(p.ControlledEntityID)
}

func decodeGameStart(buf *Buffer) (GameStart, error) {
	id, err := buf.ReadU32()
	return GameStart{ControlledEntityID: id}, err
}

// LeaderboardEntry is one row of the GameEnd leaderboard, 40 bytes on the
// wire. DeathOrder is 0 for players still alive at match end; higher values
// died later.
type LeaderboardEntry struct {
	PlayerID   uint8
	DeathOrder uint8
	IsWinner   uint8
	Score      uint32
	Name       string
}

const leaderboardEntrySize = 40

// GameEnd (0x06, S->C): match over, with final standings.
type GameEnd struct {
	WinningPlayerID uint8
	Mode            uint8
	Entries         []LeaderboardEntry
}

func (GameEnd) Op() Opcode { return OpGameEnd }
func (p GameEnd) payloadSize() int {
	return 4 + len(p.Entries)*leaderboardEntrySize
}
func (p GameEnd) encodePayload(buf *Buffer) {
	buf.WriteU8(p.WinningPlayerID)
	buf.WriteU8(p.Mode)
	buf.WriteU8(uint8(len(p.Entries)))
	buf.WriteU8(0)
	for _, e := range p.Entries {
		buf.WriteU8(e.PlayerID)
		buf.WriteU8(e.DeathOrder)
		buf.WriteU8(e.IsWinner)
		buf.WriteU8(0)
		buf.WriteU32(e.Score)
		encodeUsername(buf, e.Name)
	}
}

func decodeGameEnd(buf *Buffer) (GameEnd, error) {
	var p GameEnd
	var err error
	if p.WinningPlayerID, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if p.Mode, err = buf.ReadU8(); err != nil {
		return p, err
	}
	count, err := buf.ReadU8()
	if err != nil {
		return p, err
	}
	if _, err = buf.ReadU8(); err != nil {
		return p, err
	}
	for i := 0; i < int(count); i++ {
		var e LeaderboardEntry
		if e.PlayerID, err = buf.ReadU8(); err != nil {
			return p, err
		}
		if e.DeathOrder, err = buf.ReadU8(); err != nil {
			return p, err
		}
		if e.IsWinner, err = buf.ReadU8(); err != nil {
			return p, err
		}
		if _, err = buf.ReadU8(); err != nil {
			return p, err
		}
		if e.Score, err = buf.ReadU32(); err != nil {
			return p, err
		}
		if e.Name, err = decodeUsername(buf); err != nil {
			return p, err
		}
		p.Entries = append(p.Entries, e)
	}
	return p, nil
}

// ReadyStatus (0x07, C->S): lobby readiness toggle.
type ReadyStatus struct {
	IsReady bool
}

func (ReadyStatus) Op() Opcode { return OpReadyStatus }
func (ReadyStatus) payloadSize() int { return 4 }
func (p ReadyStatus) encodePayload(buf *Buffer) {
	if p.IsReady {
		buf.WriteU8(1)
	} else {
		buf.WriteU8(0)
	}
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodeReadyStatus(buf *Buffer) (ReadyStatus, error) {
	v, err := buf.ReadU8()
	if err != nil {
		return ReadyStatus{}, err
	}
	_, err = buf.ReadBytes(3)
	return ReadyStatus{IsReady: v != 0}, err
}

// NotifyConnect (0x08, S->C): another player joined the lobby.
type NotifyConnect struct {
	PlayerID uint8
	Username string
}

func (NotifyConnect) Op() Opcode { return OpNotifyConnect }
func (NotifyConnect) payloadSize() int { return 4 + UsernameLen }
func (p NotifyConnect) encodePayload(buf *Buffer) {
	buf.WriteU8(p.PlayerID)
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
	encodeUsername(buf, p.Username)
}

func decodeNotifyConnect(buf *Buffer) (NotifyConnect, error) {
	var p NotifyConnect
	var err error
	if p.PlayerID, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if _, err = buf.ReadBytes(3); err != nil {
		return p, err
	}
	p.Username, err = decodeUsername(buf)
	return p, err
}

// NotifyReady (0x09, S->C): another player's ready flag changed.
type NotifyReady struct {
	PlayerID uint8
	IsReady  bool
}

func (NotifyReady) Op() Opcode { return OpNotifyReady }
func (NotifyReady) payloadSize() int { return 4 }
func (p NotifyReady) encodePayload(buf *Buffer) {
	buf.WriteU8(p.PlayerID)
	if p.IsReady {
		buf.WriteU8(1)
	} else {
		buf.WriteU8(0)
	}
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodeNotifyReady(buf *Buffer) (NotifyReady, error) {
	var p NotifyReady
	pid, err := buf.ReadU8()
	if err != nil {
		return p, err
	}
	ready, err := buf.ReadU8()
	if err != nil {
		return p, err
	}
	_, err = buf.ReadBytes(2)
	p.PlayerID = pid
	p.IsReady = ready != 0
	return p, err
}

// SetGameSpeed (0x0A, C->S): request a new simulation speed multiplier.
type SetGameSpeed struct {
	Speed float32
}

func (SetGameSpeed) Op() Opcode { return OpSetGameSpeed }
func (SetGameSpeed) payloadSize() int { return 4 }
func (p SetGameSpeed) encodePayload(buf *Buffer) {
	buf.WriteFloat(p.Speed)
}

func decodeSetGameSpeed(buf *Buffer) (SetGameSpeed, error) {
	v, err := buf.ReadFloat()
	return SetGameSpeed{Speed: v}, err
}

// NotifyGameSpeed (0x0B, S->C): the applied simulation speed.
type NotifyGameSpeed struct {
	Speed float32
}

func (NotifyGameSpeed) Op() Opcode { return OpNotifyGameSpeed }
func (NotifyGameSpeed) payloadSize() int { return 4 }
func (p NotifyGameSpeed) encodePayload(buf *Buffer) {
	buf.WriteFloat(p.Speed)
}

func decodeNotifyGameSpeed(buf *Buffer) (NotifyGameSpeed, error) {
	v, err := buf.ReadFloat()
	return NotifyGameSpeed{Speed: v}, err
}

// SetDifficulty (0x0C, C->S): difficulty level 0=easy 1=normal 2=hard.
type SetDifficulty struct {
	Level uint8
}

func (SetDifficulty) Op() Opcode { return OpSetDifficulty }
func (SetDifficulty) payloadSize() int { return 4 }
func (p SetDifficulty) encodePayload(buf *Buffer) {
	buf.WriteU8(p.Level)
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodeSetDifficulty(buf *Buffer) (SetDifficulty, error) {
	v, err := buf.ReadU8()
	if err != nil {
		return SetDifficulty{}, err
	}
	_, err = buf.ReadBytes(3)
	return SetDifficulty{Level: v}, err
}

// NotifyDifficulty (0x0E, S->C): the applied difficulty level.
type NotifyDifficulty struct {
	Level uint8
}

func (NotifyDifficulty) Op() Opcode { return OpNotifyDifficulty }
func (NotifyDifficulty) payloadSize() int { return 4 }
func (p NotifyDifficulty) encodePayload(buf *Buffer) {
	buf.WriteU8(p.Level)
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodeNotifyDifficulty(buf *Buffer) (NotifyDifficulty, error) {
	v, err := buf.ReadU8()
	if err != nil {
		return NotifyDifficulty{}, err
	}
	_, err = buf.ReadBytes(3)
	return NotifyDifficulty{Level: v}, err
}

// SetKillableProjectiles (0x0D, C->S): toggle whether projectiles can be
// destroyed by player fire.
type SetKillableProjectiles struct {
	Enabled bool
}

func (SetKillableProjectiles) Op() Opcode { return OpSetKillableProjectiles }
func (SetKillableProjectiles) payloadSize() int { return 4 }
func (p SetKillableProjectiles) encodePayload(buf *Buffer) {
	if p.Enabled {
		buf.WriteU8(1)
	} else {
		buf.WriteU8(0)
	}
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodeSetKillableProjectiles(buf *Buffer) (SetKillableProjectiles, error) {
	v, err := buf.ReadU8()
	if err != nil {
		return SetKillableProjectiles{}, err
	}
	_, err = buf.ReadBytes(3)
	return SetKillableProjectiles{Enabled: v != 0}, err
}

// NotifyKillableProjectiles (0x0F, S->C): the applied toggle.
type NotifyKillableProjectiles struct {
	Enabled bool
}

func (NotifyKillableProjectiles) Op() Opcode { return OpNotifyKillableProjectiles }
func (NotifyKillableProjectiles) payloadSize() int { return 4 }
func (p NotifyKillableProjectiles) encodePayload(buf *Buffer) {
	if p.Enabled {
		buf.WriteU8(1)
	} else {
		buf.WriteU8(0)
	}
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodeNotifyKillableProjectiles(buf *Buffer) (NotifyKillableProjectiles, error) {
	v, err := buf.ReadU8()
	if err != nil {
		return NotifyKillableProjectiles{}, err
	}
	_, err = buf.ReadBytes(3)
	return NotifyKillableProjectiles{Enabled: v != 0}, err
}

// PlayerInput (0x10, C->S, unreliable): the per-frame input bitmask. The
// first datagram from an unbound endpoint may instead carry the sender's
// player id for endpoint discovery; see the hub's datagram handling.
type PlayerInput struct {
	Flags uint8
}

func (PlayerInput) Op() Opcode { return OpPlayerInput }
func (PlayerInput) payloadSize() int { return 4 }
func (p PlayerInput) encodePayload(buf *Buffer) {
	buf.WriteU8(p.Flags)
	buf.WriteU8(0)
	buf.WriteU8(0)
	buf.WriteU8(0)
}

func decodePlayerInput(buf *Buffer) (PlayerInput, error) {
	v, err := buf.ReadU8()
	if err != nil {
		return PlayerInput{}, err
	}
	_, err = buf.ReadBytes(3)
	return PlayerInput{Flags: v}, err
}

// EntityState is one 16-byte snapshot record: quantized position, rotation
// in tenths of a degree, bias-encoded velocity.
type EntityState struct {
	EntityID uint32
	Type     uint8
	PosX     uint16
	PosY     uint16
	Angle    uint16
	VelX     uint16
	VelY     uint16
}

const entityStateSize = 16

func (e EntityState) encode(buf *Buffer) {
	buf.WriteU32(e.EntityID)
	buf.WriteU8(e.Type)
	buf.WriteU8(0)
	buf.WriteU16(e.PosX)
	buf.WriteU16(e.PosY)
	buf.WriteU16(e.Angle)
	buf.WriteU16(e.VelX)
	buf.WriteU16(e.VelY)
}

func decodeEntityState(buf *Buffer) (EntityState, error) {
	var e EntityState
	var err error
	if e.EntityID, err = buf.ReadU32(); err != nil {
		return e, err
	}
	if e.Type, err = buf.ReadU8(); err != nil {
		return e, err
	}
	if _, err = buf.ReadU8(); err != nil {
		return e, err
	}
	if e.PosX, err = buf.ReadU16(); err != nil {
		return e, err
	}
	if e.PosY, err = buf.ReadU16(); err != nil {
		return e, err
	}
	if e.Angle, err = buf.ReadU16(); err != nil {
		return e, err
	}
	if e.VelX, err = buf.ReadU16(); err != nil {
		return e, err
	}
	e.VelY, err = buf.ReadU16()
	return e, err
}

// WorldSnapshot (0x20, S->C, unreliable): one or more EntityState records.
// The server emits one record per packet; the decoder accepts any whole
// number of records so batched senders stay parseable.
type WorldSnapshot struct {
	Entities []EntityState
}

func (WorldSnapshot) Op() Opcode { return OpWorldSnapshot }
func (p WorldSnapshot) payloadSize() int {
	return len(p.Entities) * entityStateSize
}
func (p WorldSnapshot) encodePayload(buf *Buffer) {
	for _, e := range p.Entities {
		e.encode(buf)
	}
}

func decodeWorldSnapshot(buf *Buffer) (WorldSnapshot, error) {
	var p WorldSnapshot
	for buf.Remaining() >= entityStateSize {
		e, err := decodeEntityState(buf)
		if err != nil {
			return p, err
		}
		p.Entities = append(p.Entities, e)
	}
	return p, nil
}

// PlayerStats (0x21, S->C, unreliable): HUD data for one player.
type PlayerStats struct {
	PlayerID uint8
	Lives    uint8
	Score    uint32
}

func (PlayerStats) Op() Opcode { return OpPlayerStats }
func (PlayerStats) payloadSize() int { return 8 }
func (p PlayerStats) encodePayload(buf *Buffer) {
	buf.WriteU8(p.PlayerID)
	buf.WriteU8(p.Lives)
	buf.WriteU16(0)
	buf.WriteU32(p.Score)
}

func decodePlayerStats(buf *Buffer) (PlayerStats, error) {
	var p PlayerStats
	var err error
	if p.PlayerID, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if p.Lives, err = buf.ReadU8(); err != nil {
		return p, err
	}
	if _, err = buf.ReadU16(); err != nil {
		return p, err
	}
	p.Score, err = buf.ReadU32()
	return p, err
}
