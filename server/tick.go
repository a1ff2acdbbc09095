package server

import (
	"context"
	"time"

	"skyclimb/protocol"
)

// RunBroadcastLoop 按固定节拍推进所有房间并单播快照，直到 ctx 取消。
// Ticker 以单调时钟为基准，本周期耗时不会累积成漂移；超时的周期被合并
func (s *Server) RunBroadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 核心循环：推进世界 → 广播结果
			start := time.Now()
			s.BroadcastTick()
			elapsed := time.Since(start)
			s.metrics.AddTick(elapsed.Nanoseconds())
			if elapsed > s.cfg.TickInterval {
				s.metrics.IncTickOverruns()
				Log.Warnw("tick overrun", "elapsed", elapsed, "interval", s.cfg.TickInterval)
			}
		}
	}
}

// BroadcastTick 一个周期：每个房间 update 一次，再把事件与快照发给成员
func (s *Server) BroadcastTick() {
	for _, room := range s.Rooms() {
		s.deliver(room.ID, room.Tick())
	}
}

func (s *Server) deliver(rid RoomID, res tickResult) {
	for _, n := range res.notices {
		frame, err := protocol.Marshal(n.msg)
		if err != nil {
			Log.Errorw("encode notice failed", "room", rid, "err", err)
			continue
		}
		if n.all {
			for pid, c := range res.members {
				s.sendFrame(rid, pid, c, frame)
			}
			continue
		}
		if c, ok := res.members[n.to]; ok {
			s.sendFrame(rid, n.to, c, frame)
		}
	}

	frame, err := protocol.Marshal(res.state)
	if err != nil {
		Log.Errorw("encode state failed", "room", rid, "err", err)
		return
	}
	for pid, c := range res.members {
		s.sendFrame(rid, pid, c, frame)
	}
}

// sendFrame 单个接收方失败只记录，不影响本周期其他人
func (s *Server) sendFrame(rid RoomID, pid PlayerID, c *ClientConn, frame []byte) {
	if c == nil {
		return
	}
	if err := c.SendFrame(frame); err != nil {
		s.metrics.IncSendFailures()
		Log.Warnw("send failed", "room", rid, "player", pid, "sid", c.SID, "err", err)
	}
}
