package server

import (
	"errors"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"skyclimb/protocol"
)

// clientEntry 服务端登记的连接与所属房间
type clientEntry struct {
	conn *ClientConn
	room RoomID
}

// Server 管理房间与连接的生命周期。
// 锁顺序：先 mu 后 Room.mu，临界区内不做网络写（入队除外）
type Server struct {
	cfg     Config
	metrics *Metrics
	seed    int64

	mu           sync.Mutex
	rooms        map[RoomID]*Room
	clients      map[PlayerID]*clientEntry
	nextPlayerID PlayerID
	nextRoomID   RoomID
}

// NewServer 创建服务端并预建第一个房间
func NewServer(cfg Config) *Server {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Server{
		cfg:     cfg,
		metrics: &Metrics{},
		seed:    seed,
		rooms:   make(map[RoomID]*Room),
		clients: make(map[PlayerID]*clientEntry),
	}
	s.mu.Lock()
	s.createRoomLocked()
	s.mu.Unlock()
	return s
}

func (s *Server) Metrics() *Metrics { return s.metrics }

// createRoomLocked 每个房间独立随机源，由种子与房间号派生
func (s *Server) createRoomLocked() *Room {
	id := s.nextRoomID
	s.nextRoomID++
	rng := rand.New(rand.NewSource(s.seed + int64(id)))
	room := NewRoom(id, s.cfg, rng, s.metrics)
	s.rooms[id] = room
	Log.Infow("room created", "room", id, "platforms", len(room.platforms))
	return room
}

func (s *Server) sortedRoomsLocked() []*Room {
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rooms 当前房间列表（按 id 排序的副本）
func (s *Server) Rooms() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedRoomsLocked()
}

func (s *Server) Room(id RoomID) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

// Join 分配玩家 id，进入第一个未满的房间（都满则新建），并发送 init
func (s *Server) Join(conn *ClientConn) (PlayerID, RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid := s.nextPlayerID
	s.nextPlayerID++

	var room *Room
	for _, r := range s.sortedRoomsLocked() {
		if r.MemberCount() < s.cfg.RoomCapacity {
			room = r
			break
		}
	}
	if room == nil {
		room = s.createRoomLocked()
	}

	if _, err := room.Join(pid, conn); err != nil {
		Log.Warnw("send init failed", "player", pid, "room", room.ID, "err", err)
	}
	s.clients[pid] = &clientEntry{conn: conn, room: room.ID}
	Log.Infow("player joined", "player", pid, "room", room.ID)
	return pid, room.ID
}

// Leave 从房间与登记表中移除玩家；房间空了就销毁
func (s *Server) Leave(pid PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.clients[pid]
	if !ok {
		return
	}
	delete(s.clients, pid)
	room, ok := s.rooms[e.room]
	if !ok {
		return
	}
	remaining := room.Leave(pid)
	Log.Infow("player left", "player", pid, "room", room.ID)
	if remaining == 0 {
		delete(s.rooms, room.ID)
		Log.Infow("room destroyed", "room", room.ID)
	}
}

// lookup 查找玩家所在房间；玩家或房间已不存在时返回 nil
func (s *Server) lookup(pid PlayerID) (*Room, *ClientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.clients[pid]
	if !ok {
		return nil, nil
	}
	return s.rooms[e.room], e.conn
}

// Dispatch 处理一条已解析的客户端消息
func (s *Server) Dispatch(pid PlayerID, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.Input:
		if room, _ := s.lookup(pid); room != nil {
			room.OnInput(inputFromMessage(pid, m))
		}
	case protocol.Restart:
		s.Restart(pid)
	case protocol.ChangeRoom:
		if m.RoomID != nil {
			s.ChangeRoom(pid, RoomID(*m.RoomID))
		}
	}
}

// Restart 重开并回复 restart_success
func (s *Server) Restart(pid PlayerID) bool {
	room, conn := s.lookup(pid)
	if room == nil {
		return false
	}
	recreated, ok := room.Restart(pid)
	if !ok {
		return false
	}
	if conn != nil {
		if err := conn.Send(protocol.NewRestartSuccess()); err != nil {
			Log.Warnw("send restart_success failed", "player", pid, "err", err)
		}
	}
	Log.Infow("player restarted", "player", pid, "room", room.ID, "recreated", recreated)
	return true
}

// ChangeRoom 将存活玩家连同连接迁到目标房间，身份与模拟状态不变
func (s *Server) ChangeRoom(pid PlayerID, target RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.clients[pid]
	if !ok || e.room == target {
		return false
	}
	dst, ok := s.rooms[target]
	if !ok {
		return false
	}
	src, ok := s.rooms[e.room]
	if !ok {
		return false
	}
	p, conn, remaining, ok := src.detach(pid)
	if !ok {
		return false
	}
	dst.attach(p, conn)
	e.room = target
	Log.Infow("player changed room", "player", pid, "from", src.ID, "to", dst.ID)
	if remaining == 0 {
		delete(s.rooms, src.ID)
		Log.Infow("room destroyed", "room", src.ID)
	}
	return true
}

// HandleConn 接管一条已建立的字节流直到断开（TCP 与 WebSocket 共用）
func (s *Server) HandleConn(rw io.ReadWriteCloser, remote string) {
	c := NewClientConn(rw, remote, s.cfg.SendQueueSize)
	s.metrics.IncConnsOpened()
	go c.writePump()

	pid, rid := s.Join(c)
	log := Log.With("sid", c.SID, "player", pid)
	log.Infow("connection accepted", "remote", remote, "room", rid)

	err := c.readPump(s.cfg.MaxFrameSize, func(payload []byte) error {
		msg, err := protocol.DecodeClient(payload)
		if errors.Is(err, protocol.ErrUnknownType) {
			log.Debugw("ignored message", "err", err)
			return nil
		}
		if err != nil {
			return err
		}
		s.Dispatch(pid, msg)
		return nil
	})
	if err != nil {
		log.Warnw("connection error", "err", err)
	}

	s.Leave(pid)
	c.Close()
	s.metrics.IncConnsClosed()
	log.Infow("connection closed", "remote", remote)
}
