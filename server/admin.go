package server

import (
	"encoding/json"
	"net/http"
	"sort"
)

// roomInfo 管理接口中单个房间的摘要
type roomInfo struct {
	ID        RoomID     `json:"id"`
	Tick      uint64     `json:"tick"`
	Members   []PlayerID `json:"members"`
	Alive     []PlayerID `json:"alive"`
	Bullets   int        `json:"bullets"`
	Platforms int        `json:"platforms"`
}

func (r *Room) info() roomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	ri := roomInfo{ID: r.ID, Tick: r.tickSeq, Bullets: len(r.bullets), Platforms: len(r.platforms)}
	for id := range r.conns {
		ri.Members = append(ri.Members, id)
	}
	ri.Alive = r.sortedIDs()
	sort.Slice(ri.Members, func(i, j int) bool { return ri.Members[i] < ri.Members[j] })
	return ri
}

// HandleRooms 列出所有房间
// GET /admin/rooms
func (s *Server) HandleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rooms := s.Rooms()
	out := make([]roomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.info())
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"rooms":   len(s.Rooms()),
		"metrics": s.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
