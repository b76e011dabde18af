package server

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"nova-strike/server/internal/net/proto"
	"nova-strike/server/internal/telemetry"
)

// fakeConn records outbound frames; reads always report EOF because tests
// inject packets through HandlePacket directly.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	addr   net.Addr
}

func newFakeConn() *fakeConn {
	return &fakeConn{addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 55000}}
}

func (c *fakeConn) ReadPacket() ([]byte, error) { return nil, io.EOF }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr { return c.addr }

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// packets decodes every recorded frame.
func (c *fakeConn) packets(t *testing.T) []proto.Packet {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]proto.Packet, 0, len(c.sent))
	for _, frame := range c.sent {
		_, pkt, err := proto.Decode(frame)
		if err != nil {
			t.Fatalf("recorded frame does not decode: %v", err)
		}
		out = append(out, pkt)
	}
	return out
}

func (c *fakeConn) packetsByOp(t *testing.T, op proto.Opcode) []proto.Packet {
	t.Helper()
	var out []proto.Packet
	for _, pkt := range c.packets(t) {
		if pkt.Op() == op {
			out = append(out, pkt)
		}
	}
	return out
}

func (c *fakeConn) lastAck(t *testing.T) proto.ConnectAck {
	t.Helper()
	acks := c.packetsByOp(t, proto.OpConnectAck)
	if len(acks) == 0 {
		t.Fatalf("no ConnectAck recorded")
	}
	return acks[len(acks)-1].(proto.ConnectAck)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

func newTestHub(cfg Config) *Hub {
	return NewHub(cfg, telemetry.NopLogger{}, telemetry.NopMetrics{})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 0
	return cfg
}

func login(t *testing.T, h *Hub, name string) (*ClientSession, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	sess := h.AddSession(conn)
	h.Authenticate(sess, name)
	if ack := conn.lastAck(t); ack.Status != proto.StatusOK {
		t.Fatalf("login %q rejected with status %d", name, ack.Status)
	}
	return sess, conn
}

func TestAuthenticateAssignsLowestFreeID(t *testing.T) {
	h := newTestHub(testConfig())
	s1, c1 := login(t, h, "alpha")
	s2, _ := login(t, h, "bravo")
	s3, _ := login(t, h, "charlie")
	if s1.PlayerID() != 1 || s2.PlayerID() != 2 || s3.PlayerID() != 3 {
		t.Fatalf("ids = %d,%d,%d want 1,2,3", s1.PlayerID(), s2.PlayerID(), s3.PlayerID())
	}

	h.RemoveSession(s2, "test")
	s4, _ := login(t, h, "delta")
	if s4.PlayerID() != 2 {
		t.Fatalf("recycled id = %d, want 2", s4.PlayerID())
	}
	_ = c1
}

func TestAuthenticateAckCarriesOccupancy(t *testing.T) {
	h := newTestHub(testConfig())
	login(t, h, "alpha")
	_, c2 := login(t, h, "bravo")

	ack := c2.lastAck(t)
	if ack.Connected != 2 || ack.MaxPlayers != 4 || ack.MinPlayers != 1 {
		t.Fatalf("occupancy wrong: %+v", ack)
	}
}

func TestAuthenticateRejectsAndStaysOpen(t *testing.T) {
	t.Run("empty username", func(t *testing.T) {
		h := newTestHub(testConfig())
		conn := newFakeConn()
		sess := h.AddSession(conn)
		h.Authenticate(sess, "   ")
		if ack := conn.lastAck(t); ack.Status != proto.StatusBadUsername {
			t.Fatalf("status = %d, want BadUsername", ack.Status)
		}
		if conn.isClosed() {
			t.Fatalf("rejection closed the connection")
		}
		// Retry with a valid name on the same session.
		h.Authenticate(sess, "alpha")
		if ack := conn.lastAck(t); ack.Status != proto.StatusOK || ack.PlayerID != 1 {
			t.Fatalf("retry failed: %+v", ack)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		h := newTestHub(testConfig())
		login(t, h, "alpha")
		conn := newFakeConn()
		sess := h.AddSession(conn)
		h.Authenticate(sess, "ALPHA")
		if ack := conn.lastAck(t); ack.Status != proto.StatusBadUsername {
			t.Fatalf("case-folded duplicate accepted: %+v", ack)
		}
	})

	t.Run("server full", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxPlayers = 2
		h := newTestHub(cfg)
		login(t, h, "alpha")
		login(t, h, "bravo")
		conn := newFakeConn()
		sess := h.AddSession(conn)
		h.Authenticate(sess, "charlie")
		ack := conn.lastAck(t)
		if ack.Status != proto.StatusServerFull || ack.Connected != 2 {
			t.Fatalf("full lobby ack: %+v", ack)
		}
	})

	t.Run("match in progress", func(t *testing.T) {
		h := newTestHub(testConfig())
		sess, _ := login(t, h, "alpha")
		h.SetReady(sess, true)
		if !h.InGame() {
			t.Fatalf("match did not start")
		}
		conn := newFakeConn()
		late := h.AddSession(conn)
		h.Authenticate(late, "bravo")
		if ack := conn.lastAck(t); ack.Status != proto.StatusInGame {
			t.Fatalf("in-game join status = %d, want InGame", ack.Status)
		}
	})
}

func TestAuthenticateNotifiesAndReplaysRoster(t *testing.T) {
	h := newTestHub(testConfig())
	s1, c1 := login(t, h, "alpha")
	h.SetReady(s1, false) // no-op, still unready
	_, c2 := login(t, h, "bravo")

	joins := c1.packetsByOp(t, proto.OpNotifyConnect)
	if len(joins) != 1 {
		t.Fatalf("existing player saw %d joins, want 1", len(joins))
	}
	if j := joins[0].(proto.NotifyConnect); j.PlayerID != 2 || j.Username != "bravo" {
		t.Fatalf("join notify wrong: %+v", j)
	}

	replay := c2.packetsByOp(t, proto.OpNotifyConnect)
	if len(replay) != 1 {
		t.Fatalf("newcomer got %d roster rows, want 1", len(replay))
	}
	if r := replay[0].(proto.NotifyConnect); r.PlayerID != 1 || r.Username != "alpha" {
		t.Fatalf("roster replay wrong: %+v", r)
	}
	// Lobby settings replayed to the newcomer.
	if len(c2.packetsByOp(t, proto.OpNotifyGameSpeed)) != 1 ||
		len(c2.packetsByOp(t, proto.OpNotifyDifficulty)) != 1 ||
		len(c2.packetsByOp(t, proto.OpNotifyKillableProjectiles)) != 1 {
		t.Fatalf("lobby settings not replayed: %v", c2.packets(t))
	}
}

func TestReadyAllStartsMatch(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 2
	h := newTestHub(cfg)
	s1, c1 := login(t, h, "alpha")
	s2, c2 := login(t, h, "bravo")

	h.SetReady(s1, true)
	if h.InGame() {
		t.Fatalf("match started with one unready player")
	}
	h.SetReady(s2, true)
	if !h.InGame() {
		t.Fatalf("match did not start with all ready")
	}

	g1 := c1.packetsByOp(t, proto.OpGameStart)
	g2 := c2.packetsByOp(t, proto.OpGameStart)
	if len(g1) != 1 || len(g2) != 1 {
		t.Fatalf("GameStart fan-out wrong: %d, %d", len(g1), len(g2))
	}
	e1 := g1[0].(proto.GameStart).ControlledEntityID
	e2 := g2[0].(proto.GameStart).ControlledEntityID
	if e1 == e2 || e1 == 0 || e2 == 0 {
		t.Fatalf("controlled entities not distinct: %d, %d", e1, e2)
	}
}

func TestReadyBelowMinimumWaits(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 2
	h := newTestHub(cfg)
	s1, _ := login(t, h, "alpha")
	h.SetReady(s1, true)
	if h.InGame() {
		t.Fatalf("match started below minimum headcount")
	}
}

func TestUnreadyPlayerLeavingCanStartMatch(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 2
	h := newTestHub(cfg)
	s1, _ := login(t, h, "alpha")
	s2, _ := login(t, h, "bravo")
	s3, _ := login(t, h, "charlie")

	h.SetReady(s1, true)
	h.SetReady(s2, true)
	if h.InGame() {
		t.Fatalf("started while charlie unready")
	}
	h.RemoveSession(s3, "test")
	if !h.InGame() {
		t.Fatalf("remaining ready set did not start the match")
	}
}

func TestRemoveSessionIdempotentAndNotifies(t *testing.T) {
	h := newTestHub(testConfig())
	s1, c1 := login(t, h, "alpha")
	s2, c2 := login(t, h, "bravo")

	h.RemoveSession(s2, "test")
	h.RemoveSession(s2, "test again")

	left := c1.packetsByOp(t, proto.OpNotifyDisconnect)
	if len(left) != 1 {
		t.Fatalf("disconnect notified %d times, want 1", len(left))
	}
	if l := left[0].(proto.NotifyDisconnect); l.PlayerID != 2 {
		t.Fatalf("wrong player in disconnect notify: %+v", l)
	}
	if n, _ := h.Counts(); n != 1 {
		t.Fatalf("count after removal = %d, want 1", n)
	}
	_, _ = s1, c2
}

func TestMidMatchDisconnectKeepsMatchRunning(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 2
	h := newTestHub(cfg)
	s1, c1 := login(t, h, "alpha")
	s2, _ := login(t, h, "bravo")
	h.SetReady(s1, true)
	h.SetReady(s2, true)
	c1.reset()

	h.RemoveSession(s2, "test")

	// The run is cooperative: the survivor keeps playing alone.
	if !h.InGame() {
		t.Fatalf("match ended with a player still alive")
	}
	notifies := c1.packetsByOp(t, proto.OpNotifyDisconnect)
	if len(notifies) != 1 || notifies[0].(proto.NotifyDisconnect).PlayerID != 2 {
		t.Fatalf("disconnect notify wrong: %+v", notifies)
	}
	if len(c1.packetsByOp(t, proto.OpGameEnd)) != 0 {
		t.Fatalf("premature GameEnd after mid-match disconnect")
	}

	// The departed avatar no longer exists, so later snapshots exclude it.
	h.mu.Lock()
	departed := h.world.Player(2)
	var avatars int
	for _, e := range h.world.Entities() {
		if e.Type == proto.EntityPlayer {
			avatars++
		}
	}
	h.mu.Unlock()
	if departed != nil || avatars != 1 {
		t.Fatalf("departed player still simulated: state %+v, %d avatars", departed, avatars)
	}
}

func TestGameEndIncludesDepartedPlayers(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 2
	h := newTestHub(cfg)
	s1, c1 := login(t, h, "alpha")
	s2, _ := login(t, h, "bravo")
	h.SetReady(s1, true)
	h.SetReady(s2, true)
	c1.reset()

	// Bravo racks up a score, then drops mid-match while still alive.
	h.mu.Lock()
	h.world.Player(2).Score = 500
	h.mu.Unlock()
	h.RemoveSession(s2, "test")

	// Alpha is eliminated afterwards; the match ends on the next tick.
	h.mu.Lock()
	ps := h.world.Player(1)
	ps.Lives = 0
	ps.Alive = false
	ps.DeathOrder = 2
	ps.Score = 300
	h.mu.Unlock()
	h.Tick(time.Now(), 0.016)

	ends := c1.packetsByOp(t, proto.OpGameEnd)
	if len(ends) != 1 {
		t.Fatalf("GameEnd fan-out wrong: %d", len(ends))
	}
	end := ends[0].(proto.GameEnd)
	if len(end.Entries) != 2 {
		t.Fatalf("leaderboard rows = %d, want 2", len(end.Entries))
	}
	if end.WinningPlayerID != 1 || end.Entries[0].Name != "alpha" || end.Entries[0].IsWinner != 1 {
		t.Fatalf("standings wrong: winner %d, %+v", end.WinningPlayerID, end.Entries)
	}
	if e := end.Entries[1]; e.PlayerID != 2 || e.Name != "bravo" || e.Score != 500 || e.DeathOrder != 1 || e.IsWinner != 0 {
		t.Fatalf("departed player row wrong: %+v", e)
	}
}

func TestLeaderboardRanking(t *testing.T) {
	cases := []struct {
		name    string
		records []matchRecord
		winner  uint8
		order   []uint8
	}{
		{
			name: "all dead, last death wins",
			records: []matchRecord{
				{playerID: 1, name: "alpha", deathOrder: 1, score: 900},
				{playerID: 2, name: "bravo", deathOrder: 3, score: 100},
				{playerID: 3, name: "charlie", deathOrder: 2, score: 500},
			},
			winner: 2,
			order:  []uint8{2, 3, 1},
		},
		{
			name: "all dead, equal death order broken by score",
			records: []matchRecord{
				{playerID: 1, name: "alpha", deathOrder: 1, score: 100},
				{playerID: 2, name: "bravo", deathOrder: 1, score: 400},
			},
			winner: 2,
			order:  []uint8{2, 1},
		},
		{
			name: "survivor outranks the latest death",
			records: []matchRecord{
				{playerID: 1, name: "alpha", deathOrder: 2, score: 900},
				{playerID: 2, name: "bravo", alive: true, score: 50},
			},
			winner: 2,
			order:  []uint8{2, 1},
		},
		{
			name: "two survivors, highest score wins",
			records: []matchRecord{
				{playerID: 1, name: "alpha", alive: true, score: 200},
				{playerID: 2, name: "bravo", alive: true, score: 700},
				{playerID: 3, name: "charlie", deathOrder: 1, score: 999},
			},
			winner: 2,
			order:  []uint8{2, 1, 3},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHub(testConfig())
			h.mu.Lock()
			h.records = make(map[uint8]*matchRecord, len(tc.records))
			for i := range tc.records {
				rec := tc.records[i]
				h.records[rec.playerID] = &rec
			}
			winner, entries := h.leaderboardLocked()
			h.mu.Unlock()

			if winner != tc.winner {
				t.Fatalf("winner = %d, want %d", winner, tc.winner)
			}
			if len(entries) != len(tc.order) {
				t.Fatalf("rows = %d, want %d", len(entries), len(tc.order))
			}
			for i, want := range tc.order {
				if entries[i].PlayerID != want {
					t.Fatalf("row %d is player %d, want %d", i, entries[i].PlayerID, want)
				}
				wantWinner := uint8(0)
				if i == 0 {
					wantWinner = 1
				}
				if entries[i].IsWinner != wantWinner {
					t.Fatalf("row %d winner flag = %d", i, entries[i].IsWinner)
				}
			}
		})
	}
}

func TestResetToLobbyClearsReady(t *testing.T) {
	h := newTestHub(testConfig())
	s1, _ := login(t, h, "alpha")
	h.SetReady(s1, true)
	if !h.InGame() {
		t.Fatalf("solo match did not start")
	}

	// Eliminate the only player and tick; the match must end and the
	// lobby reopen with ready flags cleared.
	h.mu.Lock()
	ps := h.world.Player(1)
	ps.Lives = 0
	ps.Alive = false
	ps.DeathOrder = 1
	h.mu.Unlock()
	h.Tick(time.Now(), 0.016)

	if h.InGame() {
		t.Fatalf("match survived total elimination")
	}
	if _, ready := h.Counts(); ready != 0 {
		t.Fatalf("ready count after reset = %d, want 0", ready)
	}

	// Lobby is joinable again.
	conn := newFakeConn()
	sess := h.AddSession(conn)
	h.Authenticate(sess, "bravo")
	if ack := conn.lastAck(t); ack.Status != proto.StatusOK {
		t.Fatalf("post-match login rejected: %+v", ack)
	}
}

func TestSpeedClampAndNotify(t *testing.T) {
	cases := []struct {
		name string
		in   float32
		want float32
	}{
		{"above cap", 99, 3.0},
		{"below floor", 0.01, 0.1},
		{"negative", -5, 0.1},
		{"in range", 1.5, 1.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHub(testConfig())
			s1, c1 := login(t, h, "alpha")
			c1.reset()
			h.SetGameSpeed(s1, tc.in)
			notifies := c1.packetsByOp(t, proto.OpNotifyGameSpeed)
			if len(notifies) != 1 {
				t.Fatalf("speed notify count = %d", len(notifies))
			}
			if got := notifies[0].(proto.NotifyGameSpeed).Speed; got != tc.want {
				t.Fatalf("applied speed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDifficultyClampAndKillableToggle(t *testing.T) {
	h := newTestHub(testConfig())
	s1, c1 := login(t, h, "alpha")
	c1.reset()

	h.SetDifficulty(s1, 7)
	diff := c1.packetsByOp(t, proto.OpNotifyDifficulty)
	if len(diff) != 1 || diff[0].(proto.NotifyDifficulty).Level != 2 {
		t.Fatalf("difficulty clamp wrong: %+v", diff)
	}

	h.SetKillableProjectiles(s1, true)
	kill := c1.packetsByOp(t, proto.OpNotifyKillableProjectiles)
	if len(kill) != 1 || !kill[0].(proto.NotifyKillableProjectiles).Enabled {
		t.Fatalf("killable notify wrong: %+v", kill)
	}
}

func TestSettersIgnoreUnauthenticated(t *testing.T) {
	h := newTestHub(testConfig())
	conn := newFakeConn()
	sess := h.AddSession(conn)
	h.SetGameSpeed(sess, 2.0)
	h.SetDifficulty(sess, 2)
	h.SetReady(sess, true)
	if len(conn.packets(t)) != 0 {
		t.Fatalf("unauthenticated setter produced traffic: %v", conn.packets(t))
	}
}
