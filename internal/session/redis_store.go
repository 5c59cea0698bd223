// Package session はトークン単位のログインセッションをRedisに保持する。
//
// キーは session:<userId>:<token> 形式で、値はユーザーIDを含むJSON。
// 有効期限はRedisのTTLに任せ、アプリケーション側では期限切れを判定しない。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL はセッションの既定の有効期間（604800秒）。
const DefaultTTL = 7 * 24 * time.Hour

// Key はユーザーIDとトークン文字列からセッションキーを組み立てる。
func Key(userID int64, token string) string {
	return fmt.Sprintf("session:%d:%s", userID, token)
}

// RedisStore はRedisを使ったセッションストア。
// 同一ユーザーの複数トークンはそれぞれ独立したキーとして保存される。
type RedisStore struct {
	client *redis.Client
}

// NewClient はRedisクライアントを生成する。
// 接続は最初のコマンド実行時に確立される。
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put はセッションマーカーをTTL付きで保存する。
// 同じキーへの再保存は値とTTLを上書きする。
func (s *RedisStore) Put(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	data, err := json.Marshal(model.SessionMarker{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal session marker: %w", err)
	}

	if err := s.client.Set(ctx, Key(userID, token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get はセッションマーカーを取得する。存在しない場合はnilを返す。
func (s *RedisStore) Get(ctx context.Context, userID int64, token string) (*model.SessionMarker, error) {
	data, err := s.client.Get(ctx, Key(userID, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var marker model.SessionMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("failed to decode session marker: %w", err)
	}
	return &marker, nil
}

// Delete はセッションマーカーを削除する。存在しない場合もエラーにしない。
func (s *RedisStore) Delete(ctx context.Context, userID int64, token string) error {
	if err := s.client.Del(ctx, Key(userID, token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。ヘルスチェックで使用する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
