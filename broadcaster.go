package server

import (
	"context"
	"net"
	"time"

	"nova-strike/server/internal/net/proto"
	"nova-strike/server/internal/sim"
)

// datagram is an unreliable frame scheduled for delivery after the hub lock
// is released.
type datagram struct {
	addr  *net.UDPAddr
	frame []byte
}

// Run drives the fixed-rate tick loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()

	last := h.now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = h.cfg.TickInterval.Seconds()
			}
			last = now
			h.Tick(now, dt)
		}
	}
}

// Tick advances one simulation step: sweeps idle sessions, applies staged
// inputs, steps the world, checks the end condition, and fans out snapshot
// and stats datagrams.
func (h *Hub) Tick(now time.Time, dt float64) {
	started := h.now()

	var idle []*ClientSession
	var sends []outbound
	var grams []datagram

	h.mu.Lock()
	if h.cfg.IdleTimeout > 0 {
		for _, sess := range h.sessions {
			if now.Sub(sess.lastActivity) > h.cfg.IdleTimeout {
				idle = append(idle, sess)
			}
		}
	}

	if h.phase == phaseInGame {
		for _, cmd := range h.inputs.Drain() {
			h.world.SetInput(cmd.PlayerID, cmd.Flags)
		}
		events := h.world.Step(dt, h.params)
		for _, death := range events.Deaths {
			if death.Eliminated {
				h.logger.Infof("player %d eliminated", death.PlayerID)
			}
		}
		sends = h.checkMatchEndLocked()
		if h.phase == phaseInGame {
			h.tickID++
			grams = h.snapshotLocked()
		}
	}
	h.mu.Unlock()

	for _, sess := range idle {
		h.RemoveSession(sess, "idle timeout")
	}
	h.deliver(sends)
	h.deliverUDP(grams)

	h.metrics.TickObserved(h.now().Sub(started))
}

// snapshotLocked encodes the world into per-entity snapshot frames addressed
// to every bound endpoint, plus each player's own stats frame.
func (h *Hub) snapshotLocked() []datagram {
	var addrs []*net.UDPAddr
	for _, sess := range h.byPlayer {
		if sess.udpAddr != nil {
			addrs = append(addrs, sess.udpAddr)
		}
	}
	if len(addrs) == 0 {
		return nil
	}

	var grams []datagram
	for _, e := range h.world.Entities() {
		frame := proto.Encode(proto.WorldSnapshot{
			Entities: []proto.EntityState{encodeEntity(e)},
		}, h.tickID)
		for _, addr := range addrs {
			grams = append(grams, datagram{addr: addr, frame: frame})
		}
	}
	for _, sess := range h.byPlayer {
		if sess.udpAddr == nil {
			continue
		}
		ps := h.world.Player(sess.playerID)
		if ps == nil {
			continue
		}
		grams = append(grams, datagram{addr: sess.udpAddr, frame: proto.Encode(proto.PlayerStats{
			PlayerID: ps.PlayerID,
			Lives:    ps.Lives,
			Score:    ps.Score,
		}, h.tickID)})
	}
	return grams
}

func encodeEntity(e *sim.Entity) proto.EntityState {
	return proto.EntityState{
		EntityID: e.ID,
		Type:     e.Type,
		PosX:     proto.QuantizePos(e.X, proto.PosXMax),
		PosY:     proto.QuantizePos(e.Y, proto.PosYMax),
		Angle:    proto.QuantizeAngle(e.AngleDeg),
		VelX:     proto.QuantizeVel(e.VelX),
		VelY:     proto.QuantizeVel(e.VelY),
	}
}

func (h *Hub) deliverUDP(grams []datagram) {
	if len(grams) == 0 {
		return
	}
	h.mu.Lock()
	send := h.sendUDP
	h.mu.Unlock()
	if send == nil {
		return
	}
	total := 0
	for _, g := range grams {
		send(g.addr, g.frame)
		total += len(g.frame)
	}
	h.metrics.SnapshotBytes(total)
}
