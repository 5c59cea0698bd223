package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/tweetstream/internal/model"
)

// memSessionStore はSessionStoreのインメモリ実装。
type memSessionStore struct {
	mu      sync.Mutex
	entries map[string]int64
	getErr  error
	putErr  error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{entries: make(map[string]int64)}
}

func memKey(userID int64, token string) string {
	return strconv.FormatInt(userID, 10) + ":" + token
}

func (m *memSessionStore) Put(_ context.Context, userID int64, token string, _ time.Duration) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memKey(userID, token)] = userID
	return nil
}

func (m *memSessionStore) Get(_ context.Context, userID int64, token string) (*model.SessionMarker, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.entries[memKey(userID, token)]
	if !ok {
		return nil, nil
	}
	return &model.SessionMarker{UserID: id}, nil
}

func (m *memSessionStore) Delete(_ context.Context, userID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memKey(userID, token))
	return nil
}

func (m *memSessionStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestGate_Authenticate_NoToken(t *testing.T) {
	g := NewGate(NewCodec("s", time.Hour), newMemSessionStore())

	_, err := g.Authenticate(context.Background(), "")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
	if RejectionMessage(err) != "No token provided" {
		t.Errorf("RejectionMessage = %q", RejectionMessage(err))
	}
}

func TestGate_Authenticate_InvalidToken(t *testing.T) {
	g := NewGate(NewCodec("s", time.Hour), newMemSessionStore())

	_, err := g.Authenticate(context.Background(), "garbage")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if RejectionMessage(err) != "Invalid token" {
		t.Errorf("RejectionMessage = %q", RejectionMessage(err))
	}
}

// 署名が有効でもセッションがなければ拒否する
func TestGate_Authenticate_ValidSignatureWithoutSession(t *testing.T) {
	codec := NewCodec("s", time.Hour)
	g := NewGate(codec, newMemSessionStore())

	token, _ := codec.Issue(1, "alice")
	_, err := g.Authenticate(context.Background(), token)
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
	if RejectionMessage(err) != "Session expired" {
		t.Errorf("RejectionMessage = %q", RejectionMessage(err))
	}
}

// ログアウトで削除したトークンだけが無効になり、同一ユーザーの他のトークンは有効なまま
func TestGate_Authenticate_PerTokenRevocation(t *testing.T) {
	ctx := context.Background()
	codec := NewCodec("s", time.Hour)
	store := newMemSessionStore()
	g := NewGate(codec, store)

	phone, _ := codec.Issue(1, "alice")
	laptop, _ := codec.Issue(1, "alice")
	_ = store.Put(ctx, 1, phone, time.Hour)
	_ = store.Put(ctx, 1, laptop, time.Hour)

	for _, tok := range []string{phone, laptop} {
		id, err := g.Authenticate(ctx, tok)
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if id.UserID != 1 || id.Username != "alice" {
			t.Errorf("identity = %+v, want {1 alice}", id)
		}
	}

	_ = store.Delete(ctx, 1, phone)

	if _, err := g.Authenticate(ctx, phone); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("revoked token err = %v, want ErrSessionExpired", err)
	}
	if _, err := g.Authenticate(ctx, laptop); err != nil {
		t.Errorf("other token should remain valid, got %v", err)
	}
}

// セッションストア障害は認証拒否ではなく上流エラーとして返す
func TestGate_Authenticate_StoreError_IsNotRejection(t *testing.T) {
	codec := NewCodec("s", time.Hour)
	store := newMemSessionStore()
	store.getErr = errors.New("connection refused")
	g := NewGate(codec, store)

	token, _ := codec.Issue(1, "alice")
	_, err := g.Authenticate(context.Background(), token)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRejection(err) {
		t.Errorf("store failure should not be classified as rejection: %v", err)
	}
}

func TestIsRejection(t *testing.T) {
	for _, err := range []error{ErrNoToken, ErrInvalidToken, ErrTokenExpired, ErrSessionExpired} {
		if !IsRejection(err) {
			t.Errorf("IsRejection(%v) = false, want true", err)
		}
	}
	if IsRejection(errors.New("boom")) {
		t.Error("IsRejection(generic) = true, want false")
	}
}
