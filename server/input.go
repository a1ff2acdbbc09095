package server

import (
	"math"

	"skyclimb/protocol"
)

// Direction 水平移动意图，电平语义：保持到下一条输入为止
type Direction int

const (
	DirNone Direction = iota
	DirLeft
	DirRight
)

// Input 客户端输入（意图），入队后在下一次 Tick 开始时生效
type Input struct {
	PlayerID PlayerID
	Move     Direction
	Jump     bool
	Shoot    bool
	AimX     *float64
	AimY     *float64
}

func inputFromMessage(pid PlayerID, m protocol.Input) Input {
	in := Input{PlayerID: pid, Jump: m.Jump, Shoot: m.Shoot}
	// left 优先于 right
	switch {
	case m.Left:
		in.Move = DirLeft
	case m.Right:
		in.Move = DirRight
	}
	if m.Shoot {
		in.AimX, in.AimY = m.MouseX, m.MouseY
	}
	return in
}

// applyInput 作用于玩家；射击时返回新子弹
func applyInput(p *Player, in Input, cfg Config) *Bullet {
	switch in.Move {
	case DirLeft:
		p.VelX = -cfg.MoveSpeed
	case DirRight:
		p.VelX = cfg.MoveSpeed
	default:
		p.VelX = 0
	}

	if in.Jump && !p.Jumping {
		p.VelY = cfg.JumpImpulse
		p.Jumping = true
	}

	if !in.Shoot {
		return nil
	}
	targetX, targetY := p.X, p.Y-100
	if in.AimX != nil {
		targetX = *in.AimX
	}
	if in.AimY != nil {
		targetY = *in.AimY
	}
	startX := p.X + cfg.PlayerSize/2
	startY := p.Y + cfg.PlayerSize/2
	dx, dy := targetX-startX, targetY-startY
	if dx == 0 && dy == 0 {
		return nil
	}
	dist := math.Max(1, math.Hypot(dx, dy))
	return &Bullet{
		OwnerID: p.ID,
		X:       startX,
		Y:       startY,
		VelX:    dx / dist * cfg.BulletSpeed,
		VelY:    dy / dist * cfg.BulletSpeed,
	}
}
