package proto

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		pkt  Packet
		tick uint32
	}{
		{"connect req", ConnectReq{Username: "Falcon"}, 0},
		{"connect req empty name", ConnectReq{}, 0},
		{"connect ack", ConnectAck{PlayerID: 3, Status: StatusOK, Connected: 2, Ready: 1, MaxPlayers: 4, MinPlayers: 1}, 0},
		{"connect ack rejection", ConnectAck{Status: StatusServerFull, Connected: 4, MaxPlayers: 4, MinPlayers: 1}, 0},
		{"disconnect req", DisconnectReq{}, 0},
		{"notify disconnect", NotifyDisconnect{PlayerID: 2}, 0},
		{"game start", GameStart{ControlledEntityID: 77}, 0},
		{"game end", GameEnd{
			WinningPlayerID: 1,
			Mode:            ModeFinite,
			Entries: []LeaderboardEntry{
				{PlayerID: 1, DeathOrder: 0, IsWinner: 1, Score: 9400, Name: "Falcon"},
				{PlayerID: 2, DeathOrder: 1, Score: 3100, Name: "Viper"},
			},
		}, 0},
		{"game end no entries", GameEnd{WinningPlayerID: 0, Mode: ModeEndless}, 0},
		{"ready status", ReadyStatus{IsReady: true}, 0},
		{"notify connect", NotifyConnect{PlayerID: 4, Username: "Viper"}, 0},
		{"notify ready", NotifyReady{PlayerID: 4, IsReady: true}, 0},
		{"set game speed", SetGameSpeed{Speed: 1.5}, 0},
		{"notify game speed", NotifyGameSpeed{Speed: 0.1}, 0},
		{"set difficulty", SetDifficulty{Level: 2}, 0},
		{"notify difficulty", NotifyDifficulty{Level: 2}, 0},
		{"set killable", SetKillableProjectiles{Enabled: true}, 0},
		{"notify killable", NotifyKillableProjectiles{Enabled: true}, 0},
		{"player input", PlayerInput{Flags: InputUp | InputShoot}, 0},
		{"snapshot", WorldSnapshot{Entities: []EntityState{{
			EntityID: 12, Type: EntityEnemy, PosX: 100, PosY: 38864, Angle: 3599,
			VelX: VelBias + 120, VelY: VelBias - 40,
		}}}, 9001},
		{"snapshot max tick", WorldSnapshot{Entities: []EntityState{{EntityID: 1, Type: EntityPlayer}}}, 0xFFFFFFFF},
		{"player stats", PlayerStats{PlayerID: 1, Lives: 3, Score: 12500}, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := Encode(tc.pkt, tc.tick)
			header, got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if header.Opcode != tc.pkt.Op() {
				t.Fatalf("opcode = %v, want %v", header.Opcode, tc.pkt.Op())
			}
			if header.TickID != tc.tick {
				t.Fatalf("tick = %d, want %d", header.TickID, tc.tick)
			}
			if int(header.PayloadSize) != len(data)-HeaderSize {
				t.Fatalf("payload size %d disagrees with frame length %d", header.PayloadSize, len(data))
			}
			if !reflect.DeepEqual(got, tc.pkt) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tc.pkt)
			}
		})
	}
}

func TestConnectReqUsernameTruncated(t *testing.T) {
	long := strings.Repeat("x", 64)
	data := Encode(ConnectReq{Username: long}, 0)
	_, got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	name := got.(ConnectReq).Username
	if len(name) != UsernameLen-1 {
		t.Fatalf("decoded name length = %d, want %d", len(name), UsernameLen-1)
	}
	if name != long[:UsernameLen-1] {
		t.Fatalf("decoded name %q not a prefix of the original", name)
	}
}

func TestDecodeTooSmall(t *testing.T) {
	if _, _, err := Decode(make([]byte, HeaderSize-1)); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("expected ErrTooSmall, got %v", err)
	}
}

func TestDecodePayloadMismatch(t *testing.T) {
	data := Encode(PlayerInput{Flags: InputUp}, 0)
	// Truncate the payload but keep the header's declared size.
	if _, _, err := Decode(data[:HeaderSize+1]); !errors.Is(err, ErrPayloadMismatch) {
		t.Fatalf("expected ErrPayloadMismatch, got %v", err)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	buf := NewBuffer()
	buf.WriteHeader(NewHeader(Opcode(0x7F), 0, 0))
	_, _, err := Decode(buf.Bytes())
	var unknown UnknownOpcodeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownOpcodeError, got %v", err)
	}
	if unknown.Opcode != 0x7F {
		t.Fatalf("unknown opcode = %#x, want 0x7f", unknown.Opcode)
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	data := Encode(ReadyStatus{IsReady: true}, 0)
	data = append(data, 0xAA, 0xBB)
	_, got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.(ReadyStatus).IsReady {
		t.Fatalf("decoded packet lost the ready flag: %+v", got)
	}
}

func TestWorldSnapshotBatchedRecords(t *testing.T) {
	in := WorldSnapshot{Entities: []EntityState{
		{EntityID: 1, Type: EntityPlayer, PosX: 10, PosY: 20, Angle: 900, VelX: VelBias, VelY: VelBias},
		{EntityID: 2, Type: EntityProjectile, PosX: 30, PosY: 40, Angle: 1800, VelX: VelBias + 600, VelY: VelBias},
		{EntityID: 3, Type: EntityObstacle, PosX: 50, PosY: 60},
	}}
	data := Encode(in, 7)
	header, got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if int(header.PayloadSize) != 3*16 {
		t.Fatalf("payload size = %d, want 48", header.PayloadSize)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("batched snapshot mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestEncodeIntoReusesBuffer(t *testing.T) {
	buf := NewBuffer()
	EncodeInto(buf, PlayerStats{PlayerID: 1, Lives: 3, Score: 100}, 5)
	first := len(buf.Bytes())
	EncodeInto(buf, ReadyStatus{IsReady: true}, 0)
	if buf.Len() == first+HeaderSize+4 {
		t.Fatalf("buffer was not reset between encodes")
	}
	_, got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode after reuse: %v", err)
	}
	if _, ok := got.(ReadyStatus); !ok {
		t.Fatalf("expected ReadyStatus after reuse, got %T", got)
	}
}
