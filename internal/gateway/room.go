package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"Campus_Hub/internal/pkg"

	"golang.org/x/net/websocket"
)

// RoomName 由频道 id 决定，所有实例得到同一个房间名
func RoomName(channelID uint64) string {
	return "channel:" + pkg.FormatID(channelID)
}

// Broadcaster 把帧投递给房间内的所有连接
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, frame Frame, exclude string) error
}

// peer 单个连接，写操作串行
type peer struct {
	id       string
	identity pkg.Identity

	mu sync.Mutex
	ws *websocket.Conn
}

func (p *peer) authenticated() bool {
	return p.identity.UserID != 0
}

func (p *peer) write(frame Frame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return p.writeRaw(b)
}

func (p *peer) writeRaw(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.Message.Send(p.ws, string(b))
}

// Hub 进程内的房间表，多实例之间不共享
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*peer]struct{}
	joined map[*peer]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*peer]struct{}),
		joined: make(map[*peer]map[string]struct{}),
	}
}

func (h *Hub) join(room string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*peer]struct{})
		h.rooms[room] = subs
	}
	subs[p] = struct{}{}

	rs, ok := h.joined[p]
	if !ok {
		rs = make(map[string]struct{})
		h.joined[p] = rs
	}
	rs[room] = struct{}{}
}

func (h *Hub) leave(room string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, p)
}

func (h *Hub) leaveLocked(room string, p *peer) {
	if subs, ok := h.rooms[room]; ok {
		delete(subs, p)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
	if rs, ok := h.joined[p]; ok {
		delete(rs, room)
		if len(rs) == 0 {
			delete(h.joined, p)
		}
	}
}

// leaveAll 断开连接时退出所有房间
func (h *Hub) leaveAll(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.joined[p] {
		h.leaveLocked(room, p)
	}
}

func (h *Hub) subscribers(room string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.rooms[room]
	out := make([]*peer, 0, len(subs))
	for p := range subs {
		out = append(out, p)
	}
	return out
}

// Rooms 当前有订阅者的房间数
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Broadcast 本地投递；exclude 为连接 id，空串表示不排除
func (h *Hub) Broadcast(_ context.Context, room string, frame Frame, exclude string) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	for _, p := range h.subscribers(room) {
		if exclude != "" && p.id == exclude {
			continue
		}
		// 单个连接写失败不影响其他订阅者，读循环会发现断开
		_ = p.writeRaw(b)
	}
	return nil
}
