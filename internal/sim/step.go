package sim

import (
	"math"

	"nova-strike/server/internal/net/proto"
)

// DeathEvent records a player losing a life during a step.
type DeathEvent struct {
	PlayerID  uint8
	LivesLeft uint8
	// Eliminated is set when the player is out of lives and the avatar was
	// removed from the world.
	Eliminated bool
}

// StepEvents summarizes the observable outcomes of one Step call.
type StepEvents struct {
	Deaths []DeathEvent
}

func enemySpawnInterval(difficulty uint8) float64 {
	switch difficulty {
	case DifficultyEasy:
		return 3.0
	case DifficultyHard:
		return 1.2
	default:
		return 2.0
	}
}

func enemyFireInterval(difficulty uint8) float64 {
	switch difficulty {
	case DifficultyEasy:
		return 2.5
	case DifficultyHard:
		return 1.0
	default:
		return 1.8
	}
}

// Step advances the world by dt wall seconds under the given params: applies
// stored inputs, moves everything, spawns and steers enemies, resolves
// collisions, and despawns out-of-bounds projectiles.
func (w *World) Step(dt float64, p Params) StepEvents {
	var events StepEvents
	scaled := dt * p.Speed

	w.stepPlayers(scaled)
	w.spawnEnemies(scaled, p.Difficulty)
	w.stepEnemies(scaled, p.Difficulty)
	w.stepProjectiles(scaled)
	w.collide(p, &events)

	return events
}

func (w *World) stepPlayers(dt float64) {
	for _, ps := range w.players {
		if !ps.Alive {
			continue
		}
		ps.cooldown = math.Max(0, ps.cooldown-dt)
		ps.grace = math.Max(0, ps.grace-dt)

		e := w.byID[ps.EntityID]
		if e == nil {
			continue
		}
		var dx, dy float64
		if ps.flags&proto.InputUp != 0 {
			dy -= 1
		}
		if ps.flags&proto.InputDown != 0 {
			dy += 1
		}
		if ps.flags&proto.InputLeft != 0 {
			dx -= 1
		}
		if ps.flags&proto.InputRight != 0 {
			dx += 1
		}
		if dx != 0 && dy != 0 {
			inv := 1 / math.Sqrt2
			dx *= inv
			dy *= inv
		}
		e.VelX = dx * PlayerSpeed
		e.VelY = dy * PlayerSpeed
		e.X = clamp(e.X+e.VelX*dt, PlayerRadius, WorldWidth-PlayerRadius)
		e.Y = clamp(e.Y+e.VelY*dt, PlayerRadius, WorldHeight-PlayerRadius)

		if ps.flags&proto.InputShoot != 0 && ps.cooldown == 0 {
			ps.cooldown = fireCooldownSeconds
			w.insert(&Entity{
				ID:    w.allocID(),
				Type:  proto.EntityProjectile,
				X:     e.X + PlayerRadius + ProjectileRadius,
				Y:     e.Y,
				VelX:  ProjectileSpeed,
				Owner: ps.PlayerID,
			})
		}
	}
}

func (w *World) spawnEnemies(dt float64, difficulty uint8) {
	w.spawnTimer -= dt
	if w.spawnTimer > 0 {
		return
	}
	w.spawnTimer = enemySpawnInterval(difficulty)
	w.insert(&Entity{
		ID:       w.allocID(),
		Type:     proto.EntityEnemy,
		X:        WorldWidth - EnemyRadius,
		Y:        EnemyRadius + w.rng.Float64()*(WorldHeight-2*EnemyRadius),
		AngleDeg: 180,
		VelX:     -(EnemySpeedBase * enemySpeedScale(difficulty)),
	})
}

func enemySpeedScale(difficulty uint8) float64 {
	switch difficulty {
	case DifficultyEasy:
		return 0.8
	case DifficultyHard:
		return 1.5
	default:
		return 1.0
	}
}

func (w *World) stepEnemies(dt float64, difficulty uint8) {
	w.enemyFire -= dt
	fire := false
	if w.enemyFire <= 0 {
		w.enemyFire = enemyFireInterval(difficulty)
		fire = true
	}
	for _, e := range w.entities {
		if e.Type != proto.EntityEnemy {
			continue
		}
		e.X += e.VelX * dt
		e.Y += e.VelY * dt
		if fire {
			// Owner zero marks the projectile hostile.
			w.insert(&Entity{
				ID:       w.allocID(),
				Type:     proto.EntityProjectile,
				X:        e.X - EnemyRadius - ProjectileRadius,
				Y:        e.Y,
				AngleDeg: 180,
				VelX:     -ProjectileSpeed * 0.6,
			})
			fire = false
		}
	}
}

func (w *World) stepProjectiles(dt float64) {
	for _, e := range w.entities {
		if e.Type != proto.EntityProjectile {
			continue
		}
		e.X += e.VelX * dt
		e.Y += e.VelY * dt
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hits(a, b *Entity, ra, rb float64) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	r := ra + rb
	return dx*dx+dy*dy <= r*r
}

// collide resolves projectile and contact damage, awards score, and prunes
// dead or out-of-bounds entities. Removal is deferred to the end so the scan
// sees a stable entity list.
func (w *World) collide(p Params, events *StepEvents) {
	dead := make(map[uint32]bool)

	for _, e := range w.entities {
		if e.Type != proto.EntityProjectile || dead[e.ID] {
			continue
		}
		if e.X < -ProjectileRadius || e.X > WorldWidth+ProjectileRadius {
			dead[e.ID] = true
			continue
		}
		if e.Owner != 0 {
			w.collidePlayerShot(e, p, dead)
		}
	}

	for _, e := range w.entities {
		if dead[e.ID] {
			continue
		}
		switch e.Type {
		case proto.EntityEnemy:
			if e.X < -EnemyRadius {
				dead[e.ID] = true
			}
		case proto.EntityPlayer:
			w.collidePlayer(e, dead, events)
		}
	}

	for id := range dead {
		w.remove(id)
	}
}

func (w *World) collidePlayerShot(shot *Entity, p Params, dead map[uint32]bool) {
	owner := w.players[shot.Owner]
	for _, other := range w.entities {
		if dead[other.ID] {
			continue
		}
		switch {
		case other.Type == proto.EntityEnemy && hits(shot, other, ProjectileRadius, EnemyRadius):
			dead[shot.ID] = true
			dead[other.ID] = true
			if owner != nil {
				owner.Score += scoreEnemyKill
			}
			return
		case p.KillableProjectiles && other.Type == proto.EntityProjectile &&
			other.Owner == 0 && hits(shot, other, ProjectileRadius, ProjectileRadius):
			dead[shot.ID] = true
			dead[other.ID] = true
			if owner != nil {
				owner.Score += scoreProjectileKill
			}
			return
		}
	}
}

func (w *World) collidePlayer(avatar *Entity, dead map[uint32]bool, events *StepEvents) {
	ps := w.players[avatar.Owner]
	if ps == nil || !ps.Alive || ps.grace > 0 {
		return
	}
	for _, other := range w.entities {
		if dead[other.ID] {
			continue
		}
		hostileShot := other.Type == proto.EntityProjectile && other.Owner == 0 &&
			hits(avatar, other, PlayerRadius, ProjectileRadius)
		enemyContact := other.Type == proto.EntityEnemy &&
			hits(avatar, other, PlayerRadius, EnemyRadius)
		if !hostileShot && !enemyContact {
			continue
		}
		if hostileShot {
			dead[other.ID] = true
		}
		ps.Lives--
		ev := DeathEvent{PlayerID: ps.PlayerID, LivesLeft: ps.Lives}
		if ps.Lives == 0 {
			ps.Alive = false
			w.nextDeath++
			ps.DeathOrder = w.nextDeath
			ev.Eliminated = true
			dead[avatar.ID] = true
		} else {
			ps.grace = respawnGraceSeconds
			avatar.X = WorldWidth * 0.08
			avatar.Y = spawnRow(ps.PlayerID)
		}
		events.Deaths = append(events.Deaths, ev)
		return
	}
}
