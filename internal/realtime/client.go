package realtime

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// クライアントから受け付けるイベント名
const (
	clientJoinTweet   = "join_tweet"
	clientLeaveTweet  = "leave_tweet"
	clientJoinUser    = "join_user"
	clientLeaveUser   = "leave_user"
	clientTypingStart = "typing_start"
	clientTypingStop  = "typing_stop"
	clientUserOnline  = "user_online"
)

// Client は1本のWebSocket接続。
// 読み取りと書き込みはそれぞれ専用のgoroutineで行う。
type Client struct {
	id       string
	userID   int64
	username string

	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	rooms     map[string]struct{} // Hub.muで保護
	logger    *slog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, userID int64, username string) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		userID:   userID,
		username: username,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
		logger:   hub.logger.With(slog.String("client_id", id), slog.Int64("user_id", userID)),
	}
}

// enqueue はフレームを送信キューに積む。キューが満杯なら破棄する。
func (c *Client) enqueue(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- frame:
	default:
		c.logger.Warn("dropping live frame for slow client")
	}
}

// close は接続を閉じてHubから外す。何度呼んでも1回だけ実行される。
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = c.conn.Close()
		}
	})
}

// readPump はクライアントからのフレームを読み、切断時に接続を閉じる。
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("live connection read error", slog.String("error", err.Error()))
			}
			return
		}
		c.handleFrame(bytes.TrimSpace(data))
	}
}

// writePump は送信キューのフレームを書き込み、定期的にpingを送る。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("live connection write error", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleFrame はクライアントから受け取った1フレームを処理する。
// 不正なフレームは読み捨てる。
func (c *Client) handleFrame(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Debug("ignoring malformed live frame", slog.String("error", err.Error()))
		return
	}

	switch f.Event {
	case clientJoinTweet, clientLeaveTweet:
		id, ok := parseKey(f.Data)
		if !ok {
			return
		}
		if f.Event == clientJoinTweet {
			c.hub.Join(c, TweetRoom(id))
		} else {
			c.hub.Leave(c, TweetRoom(id))
		}

	case clientJoinUser, clientLeaveUser:
		name, ok := parseKey(f.Data)
		if !ok {
			return
		}
		if f.Event == clientJoinUser {
			c.hub.Join(c, ProfileRoom(name))
		} else {
			c.hub.Leave(c, ProfileRoom(name))
		}

	case clientTypingStart, clientTypingStop:
		var payload struct {
			TweetID json.RawMessage `json:"tweetId"`
		}
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return
		}
		id, ok := parseKey(payload.TweetID)
		if !ok {
			return
		}
		event := EventUserTyping
		if f.Event == clientTypingStop {
			event = EventUserStoppedTyping
		}
		c.hub.EmitToRoom(TweetRoom(id), c, event, TypingSignal{UserID: c.userID, Username: c.username, TweetID: id})

	case clientUserOnline:
		c.hub.broadcastExcept(c, EventUserStatus, UserStatus{UserID: c.userID, Username: c.username, Status: "online"})

	default:
		c.logger.Debug("ignoring unknown live event", slog.String("event", f.Event))
	}
}

// parseKey は文字列または数値のJSON値をルームキーに変換する。
func parseKey(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
