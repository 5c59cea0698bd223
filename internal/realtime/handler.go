package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/tweetstream/internal/auth"
)

// Authenticator はハンドシェイク時のトークンを認証する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// Handler はWebSocketのハンドシェイクを処理する。
// 認証に失敗した接続はアップグレード前に401で拒否し、ルームには参加させない。
type Handler struct {
	hub      *Hub
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler はHandlerを生成する。allowedOriginsはカンマ区切りで複数指定でき、
// 空の場合はOriginを検査しない。
func NewHandler(hub *Hub, authenticator Authenticator, allowedOrigins string, logger *slog.Logger) *Handler {
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins[o] = true
		}
	}

	return &Handler{
		hub:  hub,
		auth: authenticator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
		logger: logger,
	}
}

// ServeHTTP はトークンを検証してからWebSocketにアップグレードする。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Authenticate(r.Context(), handshakeToken(r))
	if err != nil {
		if auth.IsRejection(err) {
			writeHandshakeError(w, http.StatusUnauthorized, "Authentication error: "+auth.RejectionMessage(err))
			return
		}
		h.logger.Error("failed to authenticate live connection", slog.String("error", err.Error()))
		writeHandshakeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Warn("failed to upgrade live connection", slog.String("error", err.Error()))
		return
	}

	c := newClient(h.hub, conn, identity.UserID, identity.Username)
	if !h.hub.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// handshakeToken はクエリのtokenまたはAuthorizationヘッダーからトークンを取り出す。
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func writeHandshakeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
