package server

// DiagnosticsPlayer is one row of the diagnostics endpoint.
type DiagnosticsPlayer struct {
	PlayerID uint8  `json:"playerId"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
	Addr     string `json:"addr"`
	UDPBound bool   `json:"udpBound"`
}

// Diagnostics is the operator-facing state dump served over HTTP.
type Diagnostics struct {
	Phase               string              `json:"phase"`
	Tick                uint32              `json:"tick"`
	Sessions            int                 `json:"sessions"`
	GameSpeed           float64             `json:"gameSpeed"`
	Difficulty          uint8               `json:"difficulty"`
	KillableProjectiles bool                `json:"killableProjectiles"`
	Players             []DiagnosticsPlayer `json:"players"`
}

// DiagnosticsSnapshot copies the hub state for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := Diagnostics{
		Phase:               "lobby",
		Tick:                h.tickID,
		Sessions:            len(h.sessions),
		GameSpeed:           h.params.Speed,
		Difficulty:          h.params.Difficulty,
		KillableProjectiles: h.params.KillableProjectiles,
		Players:             make([]DiagnosticsPlayer, 0, len(h.byPlayer)),
	}
	if h.phase == phaseInGame {
		d.Phase = "in_game"
	}
	for _, sess := range h.byPlayer {
		d.Players = append(d.Players, DiagnosticsPlayer{
			PlayerID: sess.playerID,
			Username: sess.username,
			Ready:    sess.ready,
			Addr:     sess.RemoteAddr().String(),
			UDPBound: sess.udpAddr != nil,
		})
	}
	return d
}
