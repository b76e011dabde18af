package sim

import (
	"math/rand"

	"nova-strike/server/internal/net/proto"
)

// World bounds in simulation units. They match the wire quantization range so
// snapshot encoding never saturates for in-bounds entities.
const (
	WorldWidth  = 65535.0
	WorldHeight = 38864.0
)

// Gameplay tuning. Velocities are units per second at speed multiplier 1.
const (
	PlayerSpeed     = 9000.0
	ProjectileSpeed = 22000.0
	EnemySpeedBase  = 4000.0

	PlayerRadius     = 700.0
	EnemyRadius      = 700.0
	ProjectileRadius = 250.0

	StartingLives = 3

	// fireCooldownSeconds spaces consecutive shots from one player.
	fireCooldownSeconds = 0.25
	// respawnGraceSeconds of invulnerability after losing a life.
	respawnGraceSeconds = 2.0

	scoreEnemyKill      = 100
	scoreProjectileKill = 10
)

// Difficulty levels accepted from clients.
const (
	DifficultyEasy   uint8 = 0
	DifficultyNormal uint8 = 1
	DifficultyHard   uint8 = 2
)

// Params are the lobby-tunable match settings applied on every step.
type Params struct {
	// Speed scales simulation time, clamped by the hub to [0.1, 3.0].
	Speed float64
	// Difficulty selects enemy spawn pressure.
	Difficulty uint8
	// KillableProjectiles lets player fire destroy enemy projectiles.
	KillableProjectiles bool
}

// DefaultParams returns the lobby defaults for a fresh match.
func DefaultParams() Params {
	return Params{Speed: 1.0, Difficulty: DifficultyNormal}
}

// Entity is one simulated object. Owner is the player id for player avatars
// and player-fired projectiles, zero for hostile entities.
type Entity struct {
	ID       uint32
	Type     uint8
	X, Y     float64
	AngleDeg float64
	VelX     float64
	VelY     float64
	Owner    uint8
}

// PlayerState tracks the per-player simulation bookkeeping behind an avatar
// entity.
type PlayerState struct {
	EntityID   uint32
	PlayerID   uint8
	Lives      uint8
	Score      uint32
	Alive      bool
	DeathOrder uint8

	flags     uint8
	cooldown  float64
	grace     float64
}

// World owns the match entity set. It is not safe for concurrent use; the
// tick loop is its single writer.
type World struct {
	rng *rand.Rand

	entities []*Entity
	byID     map[uint32]*Entity
	players  map[uint8]*PlayerState

	nextEntityID uint32
	nextDeath    uint8
	spawnTimer   float64
	enemyFire    float64
}

// NewWorld builds an empty world. rng drives enemy spawning and may not be
// nil.
func NewWorld(rng *rand.Rand) *World {
	return &World{
		rng:          rng,
		byID:         make(map[uint32]*Entity),
		players:      make(map[uint8]*PlayerState),
		nextEntityID: 1,
		spawnTimer:   enemySpawnInterval(DifficultyNormal),
		enemyFire:    enemyFireInterval(DifficultyNormal),
	}
}

func (w *World) allocID() uint32 {
	id := w.nextEntityID
	w.nextEntityID++
	return id
}

func (w *World) insert(e *Entity) {
	w.entities = append(w.entities, e)
	w.byID[e.ID] = e
}

func (w *World) remove(id uint32) {
	if _, ok := w.byID[id]; !ok {
		return
	}
	delete(w.byID, id)
	for i, e := range w.entities {
		if e.ID == id {
			w.entities = append(w.entities[:i], w.entities[i+1:]...)
			return
		}
	}
}

// SpawnPlayer creates an avatar for playerID at the left edge and returns its
// entity id. Spawn rows are spread vertically by player id so avatars never
// stack.
func (w *World) SpawnPlayer(playerID uint8) uint32 {
	e := &Entity{
		ID:    w.allocID(),
		Type:  proto.EntityPlayer,
		X:     WorldWidth * 0.08,
		Y:     spawnRow(playerID),
		Owner: playerID,
	}
	w.insert(e)
	w.players[playerID] = &PlayerState{
		EntityID: e.ID,
		PlayerID: playerID,
		Lives:    StartingLives,
		Alive:    true,
	}
	return e.ID
}

func spawnRow(playerID uint8) float64 {
	const rows = 8
	slot := float64(playerID%rows) + 0.5
	return WorldHeight * slot / rows
}

// RemovePlayer deletes a player's avatar and state, e.g. on disconnect
// mid-match, and returns the final bookkeeping, nil for unknown ids. A
// player leaving while alive is recorded as the match's latest casualty so
// final standings stay comparable.
func (w *World) RemovePlayer(playerID uint8) *PlayerState {
	ps, ok := w.players[playerID]
	if !ok {
		return nil
	}
	if ps.Alive {
		ps.Alive = false
		w.nextDeath++
		ps.DeathOrder = w.nextDeath
	}
	w.remove(ps.EntityID)
	delete(w.players, playerID)
	return ps
}

// SetInput stores the latest input bitmask for playerID. Unknown or
// eliminated players are ignored.
func (w *World) SetInput(playerID uint8, flags uint8) {
	if ps, ok := w.players[playerID]; ok && ps.Alive {
		ps.flags = flags
	}
}

// Player returns the bookkeeping for playerID, or nil.
func (w *World) Player(playerID uint8) *PlayerState {
	return w.players[playerID]
}

// Players returns the per-player states in unspecified order.
func (w *World) Players() []*PlayerState {
	out := make([]*PlayerState, 0, len(w.players))
	for _, ps := range w.players {
		out = append(out, ps)
	}
	return out
}

// AliveCount reports how many players still hold lives.
func (w *World) AliveCount() int {
	n := 0
	for _, ps := range w.players {
		if ps.Alive {
			n++
		}
	}
	return n
}

// Entities returns the live entity list in stable insertion order. The
// returned slice is the world's own; callers must not retain it across steps.
func (w *World) Entities() []*Entity {
	return w.entities
}
