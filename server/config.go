package server

import "time"

// Config 世界与服务端参数；除 Seed 外均为固定常量，不与客户端协商
type Config struct {
	ScreenWidth    float64
	ScreenHeight   float64
	PlayerSize     float64
	BulletSize     float64
	Gravity        float64
	JumpImpulse    float64 // 负值，向上
	MoveSpeed      float64
	BulletSpeed    float64
	PlatformHeight float64

	RoomCapacity int
	WinScore     int
	TickInterval time.Duration

	MaxFrameSize   int
	SendQueueSize  int
	InputQueueSize int

	// Seed 为 0 时按启动时间取随机种子
	Seed int64
}

const (
	startHealth     = 100
	lowHealthMark   = 30
	hitDamage       = 10
	fallDamage      = 25
	landingBand     = 10
	scoreBand       = 10
	spawnMargin     = 50
	spawnAboveFloor = 100
)

func DefaultConfig() Config {
	return Config{
		ScreenWidth:    800,
		ScreenHeight:   600,
		PlayerSize:     32,
		BulletSize:     8,
		Gravity:        0.5,
		JumpImpulse:    -10,
		MoveSpeed:      5,
		BulletSpeed:    10,
		PlatformHeight: 20,
		RoomCapacity:   4,
		WinScore:       5,
		TickInterval:   33 * time.Millisecond,
		MaxFrameSize:   1 << 20,
		SendQueueSize:  64,
		InputQueueSize: 256,
	}
}
