package server

import (
	"math/rand"
	"sort"
	"sync"

	"skyclimb/protocol"
)

// Room 一局比赛的权威世界。所有字段受 mu 保护；
// 锁顺序：Server.mu 先于 Room.mu，且不同时持有两个房间的锁
type Room struct {
	ID RoomID

	cfg     Config
	rng     *rand.Rand
	metrics *Metrics

	mu        sync.Mutex
	players   map[PlayerID]*Player
	bullets   []*Bullet
	platforms []Platform // 生成后只读
	conns     map[PlayerID]*ClientConn
	tickSeq   uint64

	inputChan chan Input
}

// notice 本帧产生的事件消息；all 为 true 时发给全房间
type notice struct {
	to  PlayerID
	all bool
	msg any
}

// tickResult 一帧的产出：事件、快照与当时的接收方
type tickResult struct {
	notices []notice
	state   protocol.State
	members map[PlayerID]*ClientConn
}

// NewRoom 创建房间并生成平台
func NewRoom(id RoomID, cfg Config, rng *rand.Rand, metrics *Metrics) *Room {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Room{
		ID:        id,
		cfg:       cfg,
		rng:       rng,
		metrics:   metrics,
		players:   make(map[PlayerID]*Player),
		platforms: GeneratePlatforms(cfg, rng),
		conns:     make(map[PlayerID]*ClientConn),
		inputChan: make(chan Input, cfg.InputQueueSize), // 足够缓冲，避免网络读阻塞影响 Tick
	}
}

// Join 以默认出生点创建玩家并登记连接。
// init 在房间锁内入队，保证它先于任何 state 到达客户端
func (r *Room) Join(id PlayerID, conn *ClientConn) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if conn != nil {
		err = conn.Send(protocol.NewInit(int(id), int(r.ID)))
	}
	p := newPlayer(id, r.cfg, r.rng)
	r.players[id] = p
	r.conns[id] = conn
	return p, err
}

// Leave 移除玩家与连接，返回剩余成员数
func (r *Room) Leave(id PlayerID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, id)
	delete(r.conns, id)
	return len(r.conns)
}

// detach 仅当玩家仍存活在本房间时取出其实体与连接
func (r *Room) detach(id PlayerID) (*Player, *ClientConn, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return nil, nil, len(r.conns), false
	}
	conn := r.conns[id]
	delete(r.players, id)
	delete(r.conns, id)
	return p, conn, len(r.conns), true
}

func (r *Room) attach(p *Player, conn *ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.ID] = p
	r.conns[p.ID] = conn
}

// MemberCount 已连接成员数（含已阵亡待重开的玩家）
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// OnInput 入站输入（不立即改变状态），等下一次 Tick 处理
func (r *Room) OnInput(in Input) {
	// 不阻塞：输入拥塞时丢弃，保证 Tick 准时
	select {
	case r.inputChan <- in:
		r.metrics.IncAccepted()
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// Restart 玩家已被移除则按原 id 重建，否则原地重置；非本房间成员返回 false
func (r *Room) Restart(id PlayerID) (recreated, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, member := r.conns[id]; !member {
		return false, false
	}
	if p, alive := r.players[id]; alive {
		p.reset(r.cfg, r.rng)
		return false, true
	}
	r.players[id] = newPlayer(id, r.cfg, r.rng)
	return true, true
}

// Tick 在房间锁内推进一帧并拍下快照
func (r *Room) Tick() tickResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	notices := r.update()
	members := make(map[PlayerID]*ClientConn, len(r.conns))
	for id, c := range r.conns {
		members[id] = c
	}
	r.tickSeq++
	return tickResult{notices: notices, state: protocol.NewState(r.snapshotLocked()), members: members}
}

// Snapshot 房间完整状态
func (r *Room) Snapshot() protocol.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// update 核心循环：处理输入 → 胜利检查 → 玩家物理 → 子弹结算。调用方持有 mu
func (r *Room) update() []notice {
	r.processInputs()

	var out []notice
	for _, id := range r.sortedIDs() {
		p := r.players[id]
		if p.Score >= r.cfg.WinScore && !p.winAnnounced {
			p.winAnnounced = true
			out = append(out, notice{all: true, msg: protocol.NewWinner(int(id))})
		}
	}

	for _, id := range r.sortedIDs() {
		p := r.players[id]
		prev := p.Health
		if fell, _ := stepPlayer(p, r.platforms, r.cfg, r.rng); fell {
			r.metrics.IncFalls()
		}
		out = r.healthNotices(out, p, prev)
	}

	return r.updateBullets(out)
}

// processInputs 非阻塞 drain 当前所有输入
func (r *Room) processInputs() {
	for {
		select {
		case in := <-r.inputChan:
			p, ok := r.players[in.PlayerID]
			if !ok {
				continue
			}
			if b := applyInput(p, in, r.cfg); b != nil {
				r.bullets = append(r.bullets, b)
				r.metrics.IncBulletsFired()
			}
		default:
			return
		}
	}
}

// updateBullets 子弹前进、出界剔除、命中结算；每颗子弹每帧至多命中一次
func (r *Room) updateBullets(out []notice) []notice {
	ids := r.sortedIDs()
	kept := r.bullets[:0]
	size := r.cfg.BulletSize
	for _, b := range r.bullets {
		if !b.advance(r.cfg) {
			continue
		}
		hit := false
		for _, id := range ids {
			victim, ok := r.players[id]
			if !ok || id == b.OwnerID {
				continue
			}
			if !overlaps(b.X, b.Y, size, size, victim.X, victim.Y, r.cfg.PlayerSize, r.cfg.PlayerSize) {
				continue
			}
			hit = true
			r.metrics.IncHits()
			prev := victim.Health
			victim.Health -= hitDamage
			out = r.healthNotices(out, victim, prev)
			if shooter, ok := r.players[b.OwnerID]; ok {
				shooter.Score++
				if shooter.Score >= r.cfg.WinScore && !shooter.winAnnounced {
					shooter.winAnnounced = true
					out = append(out, notice{all: true, msg: protocol.NewWinner(int(shooter.ID))})
				}
			}
			break
		}
		if !hit {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(r.bullets); i++ {
		r.bullets[i] = nil
	}
	r.bullets = kept
	return out
}

// healthNotices 对比变更前后的生命值：跌破 30 提醒一次，≤0 通知死亡并移出房间
func (r *Room) healthNotices(out []notice, p *Player, prev int) []notice {
	if prev > lowHealthMark && p.Health <= lowHealthMark && p.Health > 0 {
		out = append(out, notice{to: p.ID, msg: protocol.NewLowHealth(int(p.ID))})
	}
	if p.Health <= 0 {
		out = append(out, notice{to: p.ID, msg: protocol.NewDeath(int(p.ID))})
		delete(r.players, p.ID)
		r.metrics.IncDeaths()
	}
	return out
}

func (r *Room) snapshotLocked() protocol.RoomState {
	st := protocol.RoomState{
		ID:        int(r.ID),
		Players:   make(map[int]protocol.PlayerState, len(r.players)),
		Bullets:   make([]protocol.BulletState, 0, len(r.bullets)),
		Platforms: make([]protocol.PlatformState, 0, len(r.platforms)),
	}
	for id, p := range r.players {
		st.Players[int(id)] = p.state()
	}
	for _, b := range r.bullets {
		st.Bullets = append(st.Bullets, b.state())
	}
	for _, pl := range r.platforms {
		st.Platforms = append(st.Platforms, pl.state())
	}
	return st
}

// sortedIDs 固定遍历顺序，命中判定可复现
func (r *Room) sortedIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
