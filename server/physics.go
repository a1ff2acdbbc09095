package server

import "math/rand"

// stepPlayer 推进单个玩家一帧：积分、边界裁剪、落地、掉出与触顶
func stepPlayer(p *Player, platforms []Platform, cfg Config, rng *rand.Rand) (fell, scored bool) {
	p.VelY += cfg.Gravity
	p.X += p.VelX
	p.Y += p.VelY

	if p.X < 0 {
		p.X = 0
	}
	if maxX := cfg.ScreenWidth - cfg.PlayerSize; p.X > maxX {
		p.X = maxX
	}

	onGround := false
	for _, pl := range platforms {
		bottom := p.Y + cfg.PlayerSize
		if bottom >= pl.Y && bottom <= pl.Y+landingBand &&
			p.X+cfg.PlayerSize > pl.X && p.X < pl.X+pl.Width &&
			p.VelY > 0 {
			p.Y = pl.Y - cfg.PlayerSize
			p.VelY = 0
			onGround = true
		}
	}
	p.Jumping = !onGround

	if p.Y > cfg.ScreenHeight {
		p.X = spawnX(cfg, rng)
		p.Y = 0
		p.VelY = 0
		p.Health -= fallDamage
		fell = true
	}

	// 重生点在带外，同一次停留不会重复计分
	if p.Y > 0 && p.Y < scoreBand {
		p.Score++
		p.X = spawnX(cfg, rng)
		p.Y = cfg.ScreenHeight - spawnAboveFloor
		p.VelY = 0
		scored = true
	}
	return fell, scored
}

// advance 子弹匀速前进；返回 false 表示已出界
func (b *Bullet) advance(cfg Config) bool {
	b.X += b.VelX
	b.Y += b.VelY
	return b.X >= 0 && b.X <= cfg.ScreenWidth && b.Y >= 0 && b.Y <= cfg.ScreenHeight
}

// overlaps 轴对齐矩形相交（边缘相接不算）
func overlaps(ax, ay, aw, ah, bx, by, bw, bh float64) bool {
	return ax < bx+bw && ax+aw > bx && ay < by+bh && ay+ah > by
}
