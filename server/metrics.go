package server

import (
	"sync/atomic"
)

// Metrics 记录服务端运行期的关键指标（全部房间共享，用于监控与调试）
type Metrics struct {
	TickCount         int64 // 广播循环周期数
	TickOverruns      int64 // 单周期耗时超过 Tick 间隔的次数
	TotalTickNs       int64 // 周期累计耗时（纳秒）
	InputsAccepted    int64 // 入队成功的输入数
	ChanFullDiscarded int64 // 因房间输入通道满被丢弃的输入数
	BulletsFired      int64
	Hits              int64
	Deaths            int64
	Falls             int64
	SendFailures      int64 // 单个接收方发送失败次数
	ConnsOpened       int64
	ConnsClosed       int64
}

func (m *Metrics) IncAccepted()          { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *Metrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *Metrics) IncBulletsFired()      { atomic.AddInt64(&m.BulletsFired, 1) }
func (m *Metrics) IncHits()              { atomic.AddInt64(&m.Hits, 1) }
func (m *Metrics) IncDeaths()            { atomic.AddInt64(&m.Deaths, 1) }
func (m *Metrics) IncFalls()             { atomic.AddInt64(&m.Falls, 1) }
func (m *Metrics) IncSendFailures()      { atomic.AddInt64(&m.SendFailures, 1) }
func (m *Metrics) IncConnsOpened()       { atomic.AddInt64(&m.ConnsOpened, 1) }
func (m *Metrics) IncConnsClosed()       { atomic.AddInt64(&m.ConnsClosed, 1) }
func (m *Metrics) IncTickOverruns()      { atomic.AddInt64(&m.TickOverruns, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"tick_overruns":       atomic.LoadInt64(&m.TickOverruns),
		"avg_tick_ms":         avgMs,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"bullets_fired":       atomic.LoadInt64(&m.BulletsFired),
		"hits":                atomic.LoadInt64(&m.Hits),
		"deaths":              atomic.LoadInt64(&m.Deaths),
		"falls":               atomic.LoadInt64(&m.Falls),
		"send_failures":       atomic.LoadInt64(&m.SendFailures),
		"conns_opened":        atomic.LoadInt64(&m.ConnsOpened),
		"conns_closed":        atomic.LoadInt64(&m.ConnsClosed),
	}
}
