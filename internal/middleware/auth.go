// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/tweetstream/internal/auth"
	"github.com/hitoshi/tweetstream/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みの呼び出し元を格納するためのキー。
var identityContextKey = contextKey("identity")

// Authenticator はトークンから呼び出し元を特定する。auth.Gateが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない場合は空文字列を返す。
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// NewAuthMiddleware はBearerトークンを認証ゲートで検証するミドルウェアを返す。
// 認証済みの呼び出し元をリクエストコンテキストに注入する。
// 認証拒否には401、セッションストア障害には500を返す。
func NewAuthMiddleware(authenticator Authenticator, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticator.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				if auth.IsRejection(err) {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(auth.RejectionMessage(err)))
					return
				}
				logger.ErrorContext(r.Context(), "failed to authenticate request",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			setRequestUserID(r.Context(), identity.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから呼び出し元を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*auth.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (int64, error) {
	identity, err := IdentityFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return identity.UserID, nil
}

// ContextWithIdentity はコンテキストに呼び出し元を注入する。
func ContextWithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// ContextWithUserID はユーザーIDのみを持つ呼び出し元をコンテキストに注入する。テスト用。
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return ContextWithIdentity(ctx, &auth.Identity{UserID: userID})
}

func unauthorized() *model.APIError {
	return model.NewUnauthorizedError(auth.RejectionMessage(auth.ErrNoToken))
}
