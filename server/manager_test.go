package server

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"skyclimb/protocol"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = 1
	return NewServer(cfg)
}

// newPipeConn 服务端一侧的 ClientConn 与测试持有的客户端一侧
func newPipeConn(t *testing.T) (*ClientConn, net.Conn) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	c := NewClientConn(serverSide, "pipe", 64)
	go c.writePump()
	t.Cleanup(func() {
		c.Close()
		_ = clientSide.Close()
	})
	return c, clientSide
}

func readMsg(t *testing.T, conn net.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	header := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func writeMsg(t *testing.T, conn net.Conn, payload string) {
	t.Helper()
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(protocol.Encode([]byte(payload))); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestNewServerCreatesInitialRoom(t *testing.T) {
	s := newTestServer(t)
	rooms := s.Rooms()
	if len(rooms) != 1 || rooms[0].ID != 0 {
		t.Fatalf("expected room 0 at start, got %d rooms", len(rooms))
	}
}

func TestJoinFillsRoomBeforeCreatingNext(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < s.cfg.RoomCapacity; i++ {
		pid, rid := s.Join(nil)
		if pid != PlayerID(i) || rid != 0 {
			t.Fatalf("join %d: expected player %d in room 0, got player %d room %d", i, i, pid, rid)
		}
	}

	pid, rid := s.Join(nil)
	if pid != PlayerID(s.cfg.RoomCapacity) || rid != 1 {
		t.Fatalf("expected overflow player in new room 1, got player %d room %d", pid, rid)
	}
	if len(s.Rooms()) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(s.Rooms()))
	}

	// 房间 0 腾出位置后，新玩家回到房间 0
	s.Leave(1)
	if _, rid := s.Join(nil); rid != 0 {
		t.Fatalf("expected join into room 0 after a leave, got room %d", rid)
	}
}

func TestJoinSendsInit(t *testing.T) {
	s := newTestServer(t)
	c, client := newPipeConn(t)

	pid, rid := s.Join(c)
	m := readMsg(t, client)
	if m["type"] != protocol.TypeInit {
		t.Fatalf("expected init, got %v", m["type"])
	}
	if int(m["player_id"].(float64)) != int(pid) || int(m["room_id"].(float64)) != int(rid) {
		t.Fatalf("expected player %d room %d, got %v", pid, rid, m)
	}
}

func TestLeaveDestroysEmptyRoom(t *testing.T) {
	s := newTestServer(t)
	a, _ := s.Join(nil)
	b, _ := s.Join(nil)

	s.Leave(a)
	if len(s.Rooms()) != 1 {
		t.Fatalf("expected room kept while members remain")
	}
	s.Leave(b)
	if len(s.Rooms()) != 0 {
		t.Fatalf("expected empty room destroyed, got %d rooms", len(s.Rooms()))
	}
	if room, _ := s.lookup(b); room != nil {
		t.Fatalf("expected player unregistered")
	}

	// 新连接按递增编号新建房间
	if _, rid := s.Join(nil); rid != 1 {
		t.Fatalf("expected new room 1, got %d", rid)
	}

	// 重复离开是空操作
	s.Leave(b)
}

func TestRegistryMatchesRoomMembership(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 6; i++ {
		s.Join(nil)
	}
	s.ChangeRoom(5, 0)
	s.Leave(2)

	s.mu.Lock()
	defer s.mu.Unlock()
	for pid, e := range s.clients {
		room := s.rooms[e.room]
		if room == nil {
			t.Fatalf("player %d registered in missing room %d", pid, e.room)
		}
		if _, ok := room.conns[pid]; !ok {
			t.Fatalf("player %d missing from room %d", pid, e.room)
		}
	}
	for rid, room := range s.rooms {
		for pid := range room.conns {
			if e, ok := s.clients[pid]; !ok || e.room != rid {
				t.Fatalf("room %d member %d not registered there", rid, pid)
			}
		}
	}
}

func TestRestartRepliesAndResets(t *testing.T) {
	s := newTestServer(t)
	c, client := newPipeConn(t)
	pid, rid := s.Join(c)
	readMsg(t, client) // init

	room := s.Room(rid)
	room.mu.Lock()
	p := room.players[pid]
	p.Score = 4
	p.Health = 20
	room.mu.Unlock()

	if !s.Restart(pid) {
		t.Fatalf("expected restart to succeed")
	}
	if m := readMsg(t, client); m["type"] != protocol.TypeRestartSuccess {
		t.Fatalf("expected restart_success, got %v", m["type"])
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.players[pid] != p || p.Health != startHealth || p.Score != 0 {
		t.Fatalf("expected in-place reset, got %+v", room.players[pid])
	}
}

func TestRestartAfterDeathRecreatesSameID(t *testing.T) {
	s := newTestServer(t)
	pid, rid := s.Join(nil)
	room := s.Room(rid)
	room.mu.Lock()
	delete(room.players, pid)
	room.mu.Unlock()

	if !s.Restart(pid) {
		t.Fatalf("expected restart to succeed")
	}
	st := room.Snapshot()
	p, ok := st.Players[int(pid)]
	if !ok || p.ID != int(pid) || p.Health != startHealth || p.Score != 0 {
		t.Fatalf("expected recreated player %d, got %+v", pid, st.Players)
	}

	if s.Restart(PlayerID(99)) {
		t.Fatalf("expected restart of unknown player to be a no-op")
	}
}

func TestChangeRoomMovesPlayer(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		s.Join(nil)
	}
	// 玩家 4 独占房间 1
	src := s.Room(1)
	src.mu.Lock()
	src.players[4].X = 123
	src.players[4].Score = 2
	src.mu.Unlock()

	if s.ChangeRoom(4, 7) {
		t.Fatalf("expected change to missing room to fail")
	}
	if s.ChangeRoom(4, 1) {
		t.Fatalf("expected change to current room to be a no-op")
	}
	if !s.ChangeRoom(4, 0) {
		t.Fatalf("expected change to room 0")
	}

	if room, _ := s.lookup(4); room == nil || room.ID != 0 {
		t.Fatalf("expected player 4 registered in room 0")
	}
	if s.Room(1) != nil {
		t.Fatalf("expected emptied room 1 destroyed")
	}
	st := s.Room(0).Snapshot()
	p, ok := st.Players[4]
	if !ok || p.X != 123 || p.Score != 2 || p.ID != 4 {
		t.Fatalf("expected player state carried over, got %+v", p)
	}
}

func TestChangeRoomIgnoresDeadPlayer(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		s.Join(nil)
	}
	room := s.Room(0)
	room.mu.Lock()
	delete(room.players, 0)
	room.mu.Unlock()

	if s.ChangeRoom(0, 1) {
		t.Fatalf("expected dead player room change to be a no-op")
	}
	if r, _ := s.lookup(0); r == nil || r.ID != 0 {
		t.Fatalf("expected player 0 to stay in room 0")
	}
}

func TestDispatchRoutesMessages(t *testing.T) {
	s := newTestServer(t)
	pid, rid := s.Join(nil)
	room := s.Room(rid)

	s.Dispatch(pid, protocol.Input{Left: true})
	room.Tick()
	room.mu.Lock()
	vx := room.players[pid].VelX
	room.mu.Unlock()
	if vx != -s.cfg.MoveSpeed {
		t.Fatalf("expected vel_x %v, got %v", -s.cfg.MoveSpeed, vx)
	}

	// 缺少 room_id 与未知玩家都是空操作
	s.Dispatch(pid, protocol.ChangeRoom{})
	s.Dispatch(PlayerID(55), protocol.Input{Right: true})
	s.Dispatch(PlayerID(55), protocol.Restart{})
}

func TestHandleConnLifecycle(t *testing.T) {
	s := newTestServer(t)
	serverSide, client := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		s.HandleConn(serverSide, "pipe")
		close(done)
	}()

	m := readMsg(t, client)
	if m["type"] != protocol.TypeInit || m["player_id"].(float64) != 0 {
		t.Fatalf("expected init for player 0, got %v", m)
	}

	// 未知类型被忽略，连接保持可用
	writeMsg(t, client, `{"type":"dance"}`)
	writeMsg(t, client, `{"type":"restart"}`)
	if m := readMsg(t, client); m["type"] != protocol.TypeRestartSuccess {
		t.Fatalf("expected restart_success, got %v", m["type"])
	}

	// 损坏的 JSON 只关闭这条连接
	writeMsg(t, client, `{"type":`)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected connection handler to exit")
	}

	if room, _ := s.lookup(0); room != nil {
		t.Fatalf("expected player 0 unregistered")
	}
	if len(s.Rooms()) != 0 {
		t.Fatalf("expected empty room destroyed")
	}
	if opened, closed := s.metrics.ConnsOpened, s.metrics.ConnsClosed; opened != 1 || closed != 1 {
		t.Fatalf("expected 1 opened / 1 closed, got %d / %d", opened, closed)
	}
}

func TestHandleConnPeerDisconnect(t *testing.T) {
	s := newTestServer(t)
	serverSide, client := net.Pipe()

	done := make(chan struct{})
	go func() {
		s.HandleConn(serverSide, "pipe")
		close(done)
	}()
	readMsg(t, client)
	_ = client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected connection handler to exit on disconnect")
	}
	if len(s.Rooms()) != 0 {
		t.Fatalf("expected room destroyed after last disconnect")
	}
}
