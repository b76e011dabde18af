package proto

// Opcode identifies a packet's type and therefore its payload layout.
//
// Ranges: 0x01-0x0F reliable session control, 0x10+ unreliable client input,
// 0x20+ unreliable server snapshots.
type Opcode uint8

const (
	OpConnectReq                Opcode = 0x01 // C->S login request
	OpConnectAck                Opcode = 0x02 // S->C login response
	OpDisconnectReq             Opcode = 0x03 // C->S leave request
	OpNotifyDisconnect          Opcode = 0x04 // S->C player left
	OpGameStart                 Opcode = 0x05 // S->C match begins
	OpGameEnd                   Opcode = 0x06 // S->C match ends, leaderboard
	OpReadyStatus               Opcode = 0x07 // C->S ready state
	OpNotifyConnect             Opcode = 0x08 // S->C new player joined
	OpNotifyReady               Opcode = 0x09 // S->C player ready changed
	OpSetGameSpeed              Opcode = 0x0A // C->S game speed multiplier
	OpNotifyGameSpeed           Opcode = 0x0B // S->C game speed changed
	OpSetDifficulty             Opcode = 0x0C // C->S difficulty level
	OpSetKillableProjectiles    Opcode = 0x0D // C->S killable projectiles
	OpNotifyDifficulty          Opcode = 0x0E // S->C difficulty changed
	OpNotifyKillableProjectiles Opcode = 0x0F // S->C killable toggle changed

	OpPlayerInput Opcode = 0x10 // C->S input bitmask, unreliable

	OpWorldSnapshot Opcode = 0x20 // S->C entity state, unreliable
	OpPlayerStats   Opcode = 0x21 // S->C HUD data, unreliable
)

// ConnectAck status codes.
const (
	StatusOK          uint8 = 0
	StatusServerFull  uint8 = 1
	StatusBadUsername uint8 = 2
	StatusInGame      uint8 = 3
)

// PlayerInput payload bitmask.
const (
	InputUp    uint8 = 1 << 0
	InputDown  uint8 = 1 << 1
	InputLeft  uint8 = 1 << 2
	InputRight uint8 = 1 << 3
	InputShoot uint8 = 1 << 4
)

// Entity type tags carried in EntityState records.
const (
	EntityPlayer     uint8 = 0
	EntityEnemy      uint8 = 1
	EntityProjectile uint8 = 2
	EntityObstacle   uint8 = 3
)

// Game mode values carried in GameEnd.
const (
	ModeFinite  uint8 = 0
	ModeEndless uint8 = 1
)

// UsernameLen is the fixed on-wire size of a username field.
const UsernameLen = 32

func (o Opcode) String() string {
	switch o {
	case OpConnectReq:
		return "CONNECT_REQ"
	case OpConnectAck:
		return "CONNECT_ACK"
	case OpDisconnectReq:
		return "DISCONNECT_REQ"
	case OpNotifyDisconnect:
		return "NOTIFY_DISCONNECT"
	case OpGameStart:
		return "GAME_START"
	case OpGameEnd:
		return "GAME_END"
	case OpReadyStatus:
		return "READY_STATUS"
	case OpNotifyConnect:
		return "NOTIFY_CONNECT"
	case OpNotifyReady:
		return "NOTIFY_READY"
	case OpSetGameSpeed:
		return "SET_GAME_SPEED"
	case OpNotifyGameSpeed:
		return "NOTIFY_GAME_SPEED"
	case OpSetDifficulty:
		return "SET_DIFFICULTY"
	case OpSetKillableProjectiles:
		return "SET_KILLABLE_PROJECTILES"
	case OpNotifyDifficulty:
		return "NOTIFY_DIFFICULTY"
	case OpNotifyKillableProjectiles:
		return "NOTIFY_KILLABLE_PROJECTILES"
	case OpPlayerInput:
		return "PLAYER_INPUT"
	case OpWorldSnapshot:
		return "WORLD_SNAPSHOT"
	case OpPlayerStats:
		return "PLAYER_STATS"
	default:
		return "UNKNOWN"
	}
}
