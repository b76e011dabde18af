package server

import (
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"nova-strike/server/internal/net/proto"
	"nova-strike/server/internal/sim"
	"nova-strike/server/internal/telemetry"
)

const (
	minGameSpeed = 0.1
	maxGameSpeed = 3.0

	inputBufferCapacity = 1024
)

type matchPhase int

const (
	phaseLobby matchPhase = iota
	phaseInGame
)

// outbound pairs a session with a reliable packet scheduled for delivery
// after the hub mutex is released.
type outbound struct {
	sess *ClientSession
	pkt  proto.Packet
}

// matchRecord is one player's standing in the running match. Records outlive
// the session so players who drop mid-match still appear in the final
// leaderboard.
type matchRecord struct {
	playerID   uint8
	name       string
	score      uint32
	deathOrder uint8
	alive      bool
}

// Hub owns the session table, lobby state, and the running match. One mutex
// guards all of it; packet sends happen after the lock is dropped.
type Hub struct {
	cfg     Config
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu       sync.Mutex
	sessions map[uint64]*ClientSession
	byPlayer map[uint8]*ClientSession
	nextSess uint64
	phase    matchPhase
	params   sim.Params
	world    *sim.World
	records  map[uint8]*matchRecord
	tickID   uint32

	inputs *sim.InputBuffer

	// sendUDP is installed by the transport wiring; nil drops silently.
	sendUDP func(addr *net.UDPAddr, frame []byte)

	now func() time.Time
}

// NewHub builds an empty lobby.
func NewHub(cfg Config, logger telemetry.Logger, metrics telemetry.Metrics) *Hub {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	h := &Hub{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[uint64]*ClientSession),
		byPlayer: make(map[uint8]*ClientSession),
		params:   sim.DefaultParams(),
		now:      time.Now,
	}
	h.inputs = sim.NewInputBuffer(inputBufferCapacity, func() {
		metrics.PacketDropped("input_queue_full")
	})
	return h
}

// SetUDPSender installs the unreliable-channel write path.
func (h *Hub) SetUDPSender(send func(addr *net.UDPAddr, frame []byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendUDP = send
}

// AddSession registers a fresh reliable connection in the unauthenticated
// state.
func (h *Hub) AddSession(conn Conn) *ClientSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSess++
	sess := &ClientSession{
		id:           h.nextSess,
		conn:         conn,
		lastActivity: h.now(),
	}
	h.sessions[sess.id] = sess
	h.metrics.SessionOpened()
	h.logger.Debugf("session %d opened from %v", sess.id, conn.RemoteAddr())
	return sess
}

// RemoveSession tears a session down: closes the connection, frees the player
// id, notifies the remaining players, and re-evaluates the match. Calling it
// twice is harmless.
func (h *Hub) RemoveSession(sess *ClientSession, reason string) {
	h.mu.Lock()
	if _, ok := h.sessions[sess.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sess.id)
	h.metrics.SessionClosed()

	var sends []outbound
	if sess.authenticated() {
		delete(h.byPlayer, sess.playerID)
		h.metrics.PlayerRemoved()
		h.logger.Infof("player %d (%s) left: %s", sess.playerID, sess.username, reason)
		sends = h.broadcastLocked(proto.NotifyDisconnect{PlayerID: sess.playerID}, sess.id)

		if h.phase == phaseInGame {
			if ps := h.world.RemovePlayer(sess.playerID); ps != nil {
				if rec := h.records[sess.playerID]; rec != nil {
					rec.score = ps.Score
					rec.deathOrder = ps.DeathOrder
					rec.alive = false
				}
			}
			sends = append(sends, h.checkMatchEndLocked()...)
		} else {
			// A departing ready player may complete the remaining set.
			sends = append(sends, h.maybeStartLocked()...)
		}
	} else {
		h.logger.Debugf("session %d closed: %s", sess.id, reason)
	}
	h.mu.Unlock()

	_ = sess.conn.Close()
	h.deliver(sends)
}

// Authenticate handles a login attempt. Rejections leave the session open so
// the client can retry with a different name.
func (h *Hub) Authenticate(sess *ClientSession, username string) {
	name := strings.TrimSpace(username)

	h.mu.Lock()
	ack := proto.ConnectAck{
		MaxPlayers: uint8(h.cfg.MaxPlayers),
		MinPlayers: uint8(h.cfg.MinPlayers),
	}
	var sends []outbound
	switch {
	case sess.authenticated():
		// Duplicate login on an authenticated session: re-ack.
		ack.Status = proto.StatusOK
		ack.PlayerID = sess.playerID
	case h.phase == phaseInGame:
		ack.Status = proto.StatusInGame
	case len(h.byPlayer) >= h.cfg.MaxPlayers:
		ack.Status = proto.StatusServerFull
	case name == "" || h.usernameTakenLocked(name):
		ack.Status = proto.StatusBadUsername
	default:
		sess.playerID = h.assignPlayerIDLocked()
		sess.username = name
		h.byPlayer[sess.playerID] = sess
		h.metrics.PlayerAuthenticated()
		ack.Status = proto.StatusOK
		ack.PlayerID = sess.playerID
		h.logger.Infof("player %d logged in as %q from %v", sess.playerID, name, sess.RemoteAddr())
		sends = h.broadcastLocked(proto.NotifyConnect{PlayerID: sess.playerID, Username: name}, sess.id)
		// Replay the existing roster so the newcomer sees everyone.
		for _, other := range h.byPlayer {
			if other.id == sess.id {
				continue
			}
			sends = append(sends, outbound{sess, proto.NotifyConnect{PlayerID: other.playerID, Username: other.username}})
			if other.ready {
				sends = append(sends, outbound{sess, proto.NotifyReady{PlayerID: other.playerID, IsReady: true}})
			}
		}
		// And the lobby settings, so late joiners render the same match.
		sends = append(sends,
			outbound{sess, proto.NotifyGameSpeed{Speed: float32(h.params.Speed)}},
			outbound{sess, proto.NotifyDifficulty{Level: h.params.Difficulty}},
			outbound{sess, proto.NotifyKillableProjectiles{Enabled: h.params.KillableProjectiles}},
		)
	}
	ack.Connected = uint8(len(h.byPlayer))
	ack.Ready = uint8(h.readyCountLocked())
	if ack.Status != proto.StatusOK {
		h.logger.Infof("login %q from %v rejected (status %d)", name, sess.RemoteAddr(), ack.Status)
	}
	sends = append([]outbound{{sess, ack}}, sends...)
	h.mu.Unlock()

	h.deliver(sends)
}

// SetReady records a lobby readiness toggle and starts the match when the
// full set is ready.
func (h *Hub) SetReady(sess *ClientSession, ready bool) {
	h.mu.Lock()
	if !sess.authenticated() || h.phase != phaseLobby || sess.ready == ready {
		h.mu.Unlock()
		return
	}
	sess.ready = ready
	sends := h.broadcastLocked(proto.NotifyReady{PlayerID: sess.playerID, IsReady: ready}, 0)
	sends = append(sends, h.maybeStartLocked()...)
	h.mu.Unlock()

	h.deliver(sends)
}

// SetGameSpeed clamps and applies a speed multiplier, echoing the applied
// value to everyone.
func (h *Hub) SetGameSpeed(sess *ClientSession, speed float32) {
	h.mu.Lock()
	if !sess.authenticated() {
		h.mu.Unlock()
		return
	}
	v := float64(speed)
	if v != v || v < minGameSpeed { // NaN or below floor
		v = minGameSpeed
	}
	if v > maxGameSpeed {
		v = maxGameSpeed
	}
	h.params.Speed = v
	h.logger.Infof("player %d set game speed to %.2f", sess.playerID, v)
	sends := h.broadcastLocked(proto.NotifyGameSpeed{Speed: float32(v)}, 0)
	h.mu.Unlock()

	h.deliver(sends)
}

// SetDifficulty clamps and applies the difficulty level.
func (h *Hub) SetDifficulty(sess *ClientSession, level uint8) {
	h.mu.Lock()
	if !sess.authenticated() {
		h.mu.Unlock()
		return
	}
	if level > sim.DifficultyHard {
		level = sim.DifficultyHard
	}
	h.params.Difficulty = level
	h.logger.Infof("player %d set difficulty to %d", sess.playerID, level)
	sends := h.broadcastLocked(proto.NotifyDifficulty{Level: level}, 0)
	h.mu.Unlock()

	h.deliver(sends)
}

// SetKillableProjectiles applies the projectile-vs-projectile toggle.
func (h *Hub) SetKillableProjectiles(sess *ClientSession, enabled bool) {
	h.mu.Lock()
	if !sess.authenticated() {
		h.mu.Unlock()
		return
	}
	h.params.KillableProjectiles = enabled
	h.logger.Infof("player %d set killable projectiles to %t", sess.playerID, enabled)
	sends := h.broadcastLocked(proto.NotifyKillableProjectiles{Enabled: enabled}, 0)
	h.mu.Unlock()

	h.deliver(sends)
}

// HandleDatagram processes one unreliable-channel datagram. The first input
// datagram from an unknown endpoint is treated as endpoint discovery: its
// payload byte names the sender's player id and binds addr as that player's
// return address. Later datagrams from a bound endpoint carry input bitmasks.
func (h *Hub) HandleDatagram(addr *net.UDPAddr, data []byte) {
	header, pkt, err := proto.Decode(data)
	if err != nil {
		h.metrics.PacketDropped("udp_malformed")
		return
	}
	if header.Opcode != proto.OpPlayerInput {
		h.metrics.PacketDropped("udp_unexpected_opcode")
		return
	}
	input := pkt.(proto.PlayerInput)
	h.metrics.PacketReceived(header.Opcode.String())

	h.mu.Lock()
	defer h.mu.Unlock()

	if sess := h.findByUDPAddrLocked(addr); sess != nil {
		sess.lastActivity = h.now()
		h.inputs.Push(sim.InputCommand{PlayerID: sess.playerID, Flags: input.Flags})
		return
	}
	// Unknown endpoint: the payload byte is a player id announcing its
	// return address. Rebinding an already-bound player is allowed so
	// clients survive NAT rebinds.
	sess, ok := h.byPlayer[input.Flags]
	if !ok {
		h.metrics.PacketDropped("udp_unknown_endpoint")
		return
	}
	sess.udpAddr = addr
	sess.lastActivity = h.now()
	h.logger.Debugf("player %d bound udp endpoint %v", sess.playerID, addr)
}

// Counts reports (authenticated, ready) player totals.
func (h *Hub) Counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byPlayer), h.readyCountLocked()
}

// InGame reports whether a match is running.
func (h *Hub) InGame() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase == phaseInGame
}

// FindByPlayerID returns the session holding the given player id, or nil.
func (h *Hub) FindByPlayerID(playerID uint8) *ClientSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byPlayer[playerID]
}

func (h *Hub) usernameTakenLocked(name string) bool {
	for _, sess := range h.byPlayer {
		if strings.EqualFold(sess.username, name) {
			return true
		}
	}
	return false
}

// assignPlayerIDLocked recycles the lowest free id so reconnecting players
// slot back into the gaps they left.
func (h *Hub) assignPlayerIDLocked() uint8 {
	for id := uint8(1); ; id++ {
		if _, taken := h.byPlayer[id]; !taken {
			return id
		}
	}
}

func (h *Hub) readyCountLocked() int {
	n := 0
	for _, sess := range h.byPlayer {
		if sess.ready {
			n++
		}
	}
	return n
}

func (h *Hub) findByUDPAddrLocked(addr *net.UDPAddr) *ClientSession {
	for _, sess := range h.byPlayer {
		if sess.udpAddr != nil && sess.udpAddr.Port == addr.Port && sess.udpAddr.IP.Equal(addr.IP) {
			return sess
		}
	}
	return nil
}

// maybeStartLocked starts the match when every authenticated player is ready
// and the minimum headcount is met.
func (h *Hub) maybeStartLocked() []outbound {
	if h.phase != phaseLobby || len(h.byPlayer) < h.cfg.MinPlayers {
		return nil
	}
	for _, sess := range h.byPlayer {
		if !sess.ready {
			return nil
		}
	}
	return h.startMatchLocked()
}

func (h *Hub) startMatchLocked() []outbound {
	h.phase = phaseInGame
	h.world = sim.NewWorld(rand.New(rand.NewSource(h.now().UnixNano())))
	h.records = make(map[uint8]*matchRecord, len(h.byPlayer))
	h.tickID = 0
	h.inputs.Drain()

	var sends []outbound
	for _, sess := range h.byPlayer {
		entityID := h.world.SpawnPlayer(sess.playerID)
		h.records[sess.playerID] = &matchRecord{
			playerID: sess.playerID,
			name:     sess.username,
			alive:    true,
		}
		sends = append(sends, outbound{sess, proto.GameStart{ControlledEntityID: entityID}})
	}
	h.logger.Infof("match started with %d players (speed %.2f, difficulty %d)",
		len(h.byPlayer), h.params.Speed, h.params.Difficulty)
	return sends
}

// checkMatchEndLocked ends the match once nobody is left standing: the run
// is cooperative, so survivors keep playing no matter how many seats empty
// out around them.
func (h *Hub) checkMatchEndLocked() []outbound {
	if h.phase != phaseInGame {
		return nil
	}
	if len(h.byPlayer) == 0 {
		// Everyone disconnected; nobody is left to tell.
		h.resetToLobbyLocked()
		return nil
	}
	if h.world.AliveCount() > 0 {
		return nil
	}
	return h.endMatchLocked()
}

func (h *Hub) endMatchLocked() []outbound {
	end := proto.GameEnd{Mode: proto.ModeFinite}
	winner, entries := h.leaderboardLocked()
	end.WinningPlayerID = winner
	end.Entries = entries

	h.logger.Infof("match ended, winner player %d", winner)
	sends := h.broadcastLocked(end, 0)
	h.resetToLobbyLocked()
	return sends
}

// leaderboardLocked ranks everyone who entered the match, departed players
// included: survivors first, then by how long they lasted, score breaking
// ties. The winner is the top row.
func (h *Hub) leaderboardLocked() (uint8, []proto.LeaderboardEntry) {
	if h.world != nil {
		for _, ps := range h.world.Players() {
			if rec := h.records[ps.PlayerID]; rec != nil {
				rec.score = ps.Score
				rec.deathOrder = ps.DeathOrder
				rec.alive = ps.Alive
			}
		}
	}
	rows := make([]*matchRecord, 0, len(h.records))
	for _, rec := range h.records {
		rows = append(rows, rec)
	}
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			if betterRank(rows[j], rows[i]) {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
	}
	var winner uint8
	entries := make([]proto.LeaderboardEntry, 0, len(rows))
	for i, rec := range rows {
		entry := proto.LeaderboardEntry{
			PlayerID:   rec.playerID,
			DeathOrder: rec.deathOrder,
			Score:      rec.score,
			Name:       rec.name,
		}
		if i == 0 {
			entry.IsWinner = 1
			winner = rec.playerID
		}
		entries = append(entries, entry)
	}
	return winner, entries
}

func betterRank(a, b *matchRecord) bool {
	if a.alive != b.alive {
		return a.alive
	}
	if a.deathOrder != b.deathOrder {
		// Higher death order means the player lasted longer.
		return a.deathOrder > b.deathOrder
	}
	return a.score > b.score
}

func (h *Hub) resetToLobbyLocked() {
	h.phase = phaseLobby
	h.world = nil
	h.records = nil
	h.tickID = 0
	h.inputs.Drain()
	for _, sess := range h.byPlayer {
		sess.ready = false
	}
	h.logger.Infof("lobby reset, %d players connected", len(h.byPlayer))
}

// broadcastLocked schedules a reliable packet for every authenticated
// session except exceptID (zero means nobody is skipped).
func (h *Hub) broadcastLocked(pkt proto.Packet, exceptID uint64) []outbound {
	sends := make([]outbound, 0, len(h.byPlayer))
	for _, sess := range h.byPlayer {
		if sess.id == exceptID {
			continue
		}
		sends = append(sends, outbound{sess, pkt})
	}
	return sends
}

// deliver writes scheduled packets outside the hub lock. A failed write
// tears the session down.
func (h *Hub) deliver(sends []outbound) {
	for _, out := range sends {
		if err := out.sess.send(out.pkt); err != nil {
			h.logger.Warnf("send %v to session %d failed: %v", out.pkt.Op(), out.sess.id, err)
			go h.RemoveSession(out.sess, "write failed")
		}
	}
}
