package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/tweetstream/internal/model"
)

var (
	// ErrNoToken はトークンが提示されなかったことを表す。
	ErrNoToken = errors.New("no token provided")
	// ErrSessionExpired は署名は有効だがセッションが存在しないことを表す。
	// ログアウト済み、またはTTL切れ。
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore はトークン単位のセッションマーカーを保持するストア。
type SessionStore interface {
	// Put はマーカーをTTL付きで保存する。既存のキーは上書きする。
	Put(ctx context.Context, userID int64, token string, ttl time.Duration) error
	// Get はマーカーを取得する。存在しない場合はnilを返す。
	Get(ctx context.Context, userID int64, token string) (*model.SessionMarker, error)
	// Delete はマーカーを削除する。
	Delete(ctx context.Context, userID int64, token string) error
}

// TokenVerifier はトークンの署名・期限を検証する。
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Identity は認証済みの呼び出し元を表す。
type Identity struct {
	UserID   int64
	Username string
}

// Gate はトークン検証とセッション照合を組み合わせた認証チェック。
// HTTPの認証ミドルウェアとWebSocketのハンドシェイクの両方で使う。
type Gate struct {
	verifier TokenVerifier
	sessions SessionStore
}

// NewGate はGateを生成する。
func NewGate(verifier TokenVerifier, sessions SessionStore) *Gate {
	return &Gate{verifier: verifier, sessions: sessions}
}

// Authenticate はトークンを検証し、対応するセッションが生きていれば呼び出し元を返す。
// 副作用はない。
func (g *Gate) Authenticate(ctx context.Context, token string) (*Identity, error) {
	// 1. トークンの有無
	if token == "" {
		return nil, ErrNoToken
	}

	// 2. 署名と有効期限
	claims, err := g.verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	// 3. (userId, token) の組に対するセッションの存在
	marker, err := g.sessions.Get(ctx, claims.UserID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if marker == nil || marker.UserID != claims.UserID {
		return nil, ErrSessionExpired
	}

	return &Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// IsRejection はerrが認証拒否（401で返すべきもの）であればtrueを返す。
// セッションストア障害などの上流エラーはfalse。
func IsRejection(err error) bool {
	return errors.Is(err, ErrNoToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrSessionExpired)
}

// RejectionMessage は認証拒否の理由をクライアント向けメッセージに変換する。
func RejectionMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "No token provided"
	case errors.Is(err, ErrSessionExpired):
		return "Session expired"
	default:
		return "Invalid token"
	}
}
