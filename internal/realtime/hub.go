// Package realtime はWebSocketによるリアルタイム配信（ルーム単位・全体）を提供する。
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// UserRoom はユーザー本人の全接続が参加するルーム名を返す。
func UserRoom(userID int64) string { return fmt.Sprintf("user:%d", userID) }

// TweetRoom はツイート詳細を閲覧中の接続が参加するルーム名を返す。
func TweetRoom(tweetID string) string { return "tweet:" + tweetID }

// ProfileRoom はプロフィールを閲覧中の接続が参加するルーム名を返す。
func ProfileRoom(username string) string { return "profile:" + username }

// サーバーから送るイベント名
const (
	EventUserStatus        = "user_status"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
)

// Frame はWebSocket上でやり取りするメッセージ。
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserStatus はuser_statusのデータ。
type UserStatus struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

// TypingSignal はuser_typing/user_stopped_typingのデータ。
type TypingSignal struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	TweetID  string `json:"tweetId"`
}

// ConnectionGauge は接続数を記録する。
type ConnectionGauge interface {
	SetLiveConnections(count int)
}

// Hub は接続とルームの対応を管理し、配信を行う。
// ルームの所属はメモリ上のみで、再接続時には引き継がない。
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool

	gauge  ConnectionGauge
	logger *slog.Logger
}

// NewHub はHubを生成する。gaugeはnilでもよい。
func NewHub(gauge ConnectionGauge, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		gauge:   gauge,
		logger:  logger,
	}
}

// register は接続を登録し、本人のユーザールームに参加させる。
// 他の接続へオンライン状態を通知する。シャットダウン後はfalseを返す。
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.joinLocked(c, UserRoom(c.userID))
	count := len(h.clients)
	h.mu.Unlock()

	h.setGauge(count)
	h.logger.Info("live connection opened",
		slog.String("client_id", c.id),
		slog.Int64("user_id", c.userID),
	)
	h.broadcastExcept(c, EventUserStatus, UserStatus{UserID: c.userID, Username: c.username, Status: "online"})
	return true
}

// unregister は接続を全ルームから外し、オフライン状態を通知する。
// Client.closeから1回だけ呼ばれる。
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		for room := range c.rooms {
			h.leaveLocked(c, room)
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.setGauge(count)
	h.logger.Info("live connection closed",
		slog.String("client_id", c.id),
		slog.Int64("user_id", c.userID),
	)
	h.broadcastExcept(c, EventUserStatus, UserStatus{UserID: c.userID, Username: c.username, Status: "offline"})
}

// Join は接続をルームに参加させる。
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.joinLocked(c, room)
	}
}

// Leave は接続をルームから外す。
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// BroadcastAll は全接続にイベントを送る。
func (h *Hub) BroadcastAll(event string, data any) {
	h.broadcastExcept(nil, event, data)
}

// EmitToRoom はルームの接続にイベントを送る。exceptがnilでなければその接続を除く。
func (h *Hub) EmitToRoom(room string, except *Client, event string, data any) {
	frame, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

// EmitToUser はユーザーの全接続にイベントを送る。
func (h *Hub) EmitToUser(userID int64, event string, data any) {
	h.EmitToRoom(UserRoom(userID), nil, event, data)
}

func (h *Hub) broadcastExcept(except *Client, event string, data any) {
	frame, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode live event", slog.String("event", event), slog.String("error", err.Error()))
		return nil, false
	}
	frame, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		h.logger.Error("failed to encode live frame", slog.String("event", event), slog.String("error", err.Error()))
		return nil, false
	}
	return frame, true
}

func (h *Hub) connectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) roomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close は新規接続の受付を止め、全接続を閉じる。
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.close()
	}
}

func (h *Hub) setGauge(count int) {
	if h.gauge != nil {
		h.gauge.SetLiveConnections(count)
	}
}
