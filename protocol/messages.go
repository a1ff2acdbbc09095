package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 消息类型（JSON 中的 type 字段）
const (
	TypeInput      = "input"
	TypeRestart    = "restart"
	TypeChangeRoom = "change_room"

	TypeInit           = "init"
	TypeState          = "state"
	TypeLowHealth      = "low_health"
	TypeDeath          = "death"
	TypeWinner         = "winner"
	TypeRestartSuccess = "restart_success"
)

var ErrUnknownType = errors.New("protocol: unknown message type")

// ClientMessage 客户端 → 服务端的消息，每种 type 一个具体类型
type ClientMessage interface {
	Kind() string
}

// Input 方向键为电平语义：每条消息覆盖上一条
// 示例：{"type":"input","left":true,"right":false,"jump":false,"shoot":true,"mouse_x":400,"mouse_y":120}
type Input struct {
	Left   bool     `json:"left"`
	Right  bool     `json:"right"`
	Jump   bool     `json:"jump"`
	Shoot  bool     `json:"shoot"`
	MouseX *float64 `json:"mouse_x,omitempty"`
	MouseY *float64 `json:"mouse_y,omitempty"`
}

type Restart struct{}

// ChangeRoom 缺少 room_id 时 RoomID 为 nil
type ChangeRoom struct {
	RoomID *int `json:"room_id"`
}

func (Input) Kind() string      { return TypeInput }
func (Restart) Kind() string    { return TypeRestart }
func (ChangeRoom) Kind() string { return TypeChangeRoom }

// DecodeClient 解析一帧负载。JSON 损坏返回普通错误；未知 type 返回 ErrUnknownType
func DecodeClient(payload []byte) (ClientMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	switch head.Type {
	case TypeInput:
		var m Input
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		return m, nil
	case TypeRestart:
		return Restart{}, nil
	case TypeChangeRoom:
		var m ChangeRoom
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode change_room: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

// ---- 服务端 → 客户端 ----

type Init struct {
	Type     string `json:"type"`
	PlayerID int    `json:"player_id"`
	RoomID   int    `json:"room_id"`
}

// Event low_health / death / winner 共用的形状
type Event struct {
	Type     string `json:"type"`
	PlayerID int    `json:"player_id"`
}

type RestartSuccess struct {
	Type string `json:"type"`
}

type PlayerState struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VelX   float64 `json:"vel_x"`
	VelY   float64 `json:"vel_y"`
	Health int     `json:"health"`
	Score  int     `json:"score"`
}

type BulletState struct {
	OwnerID int     `json:"owner_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VelX    float64 `json:"vel_x"`
	VelY    float64 `json:"vel_y"`
}

type PlatformState struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Width float64 `json:"width"`
}

// RoomState 房间完整快照；players 以玩家 id 为键
type RoomState struct {
	ID        int                 `json:"id"`
	Players   map[int]PlayerState `json:"players"`
	Bullets   []BulletState       `json:"bullets"`
	Platforms []PlatformState     `json:"platforms"`
}

type State struct {
	Type string    `json:"type"`
	Room RoomState `json:"room"`
}

func NewInit(playerID, roomID int) Init {
	return Init{Type: TypeInit, PlayerID: playerID, RoomID: roomID}
}

func NewState(room RoomState) State { return State{Type: TypeState, Room: room} }

func NewLowHealth(playerID int) Event { return Event{Type: TypeLowHealth, PlayerID: playerID} }
func NewDeath(playerID int) Event     { return Event{Type: TypeDeath, PlayerID: playerID} }
func NewWinner(playerID int) Event    { return Event{Type: TypeWinner, PlayerID: playerID} }

func NewRestartSuccess() RestartSuccess { return RestartSuccess{Type: TypeRestartSuccess} }

// Marshal 编码为带长度前缀的完整帧
func Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return Encode(b), nil
}
