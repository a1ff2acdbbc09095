package server

import (
	"math/rand"

	"skyclimb/protocol"
)

// PlayerID 服务器生命周期内唯一，从 0 递增
type PlayerID int

// RoomID 房间编号，从 0 递增
type RoomID int

// Player 房间内的玩家实体（服务端权威状态）
type Player struct {
	ID     PlayerID
	X      float64
	Y      float64
	VelX   float64
	VelY   float64
	Health int
	Score  int

	// Jumping 每帧由落地检测重新计算：本帧未落地即为 true
	Jumping bool
	// winAnnounced 已广播过本轮胜利，重开后清零
	winAnnounced bool
}

// Bullet 子弹只属于发射它的房间，出界或命中即销毁
type Bullet struct {
	OwnerID PlayerID
	X       float64
	Y       float64
	VelX    float64
	VelY    float64
}

// Platform 生成后不可变
type Platform struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// spawnX 在 [50, width-50] 内取整数随机横坐标
func spawnX(cfg Config, rng *rand.Rand) float64 {
	span := int(cfg.ScreenWidth) - 2*spawnMargin
	return float64(spawnMargin + rng.Intn(span+1))
}

func newPlayer(id PlayerID, cfg Config, rng *rand.Rand) *Player {
	return &Player{
		ID:     id,
		X:      spawnX(cfg, rng),
		Y:      cfg.ScreenHeight - spawnAboveFloor,
		Health: startHealth,
	}
}

// reset 原地重置状态，保留身份
func (p *Player) reset(cfg Config, rng *rand.Rand) {
	p.Health = startHealth
	p.Score = 0
	p.X = spawnX(cfg, rng)
	p.Y = cfg.ScreenHeight - spawnAboveFloor
	p.VelX = 0
	p.VelY = 0
	p.winAnnounced = false
}

func (p *Player) state() protocol.PlayerState {
	return protocol.PlayerState{
		ID:     int(p.ID),
		X:      p.X,
		Y:      p.Y,
		VelX:   p.VelX,
		VelY:   p.VelY,
		Health: p.Health,
		Score:  p.Score,
	}
}

func (b *Bullet) state() protocol.BulletState {
	return protocol.BulletState{OwnerID: int(b.OwnerID), X: b.X, Y: b.Y, VelX: b.VelX, VelY: b.VelY}
}

func (pl Platform) state() protocol.PlatformState {
	return protocol.PlatformState{X: pl.X, Y: pl.Y, Width: pl.Width}
}
