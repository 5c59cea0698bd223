package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestKey_Format(t *testing.T) {
	if got := Key(42, "abc.def.ghi"); got != "session:42:abc.def.ghi" {
		t.Errorf("Key() = %q, want %q", got, "session:42:abc.def.ghi")
	}
}

func TestRedisStore_PutAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, 7, "token-1", DefaultTTL); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	// 値はユーザーIDを含むJSON
	raw, err := mr.Get("session:7:token-1")
	if err != nil {
		t.Fatalf("key should exist in redis: %v", err)
	}
	if raw != `{"userId":7}` {
		t.Errorf("stored value = %q, want %q", raw, `{"userId":7}`)
	}
	if ttl := mr.TTL("session:7:token-1"); ttl != 604800*time.Second {
		t.Errorf("TTL = %v, want %v", ttl, 604800*time.Second)
	}

	marker, err := store.Get(ctx, 7, "token-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if marker == nil || marker.UserID != 7 {
		t.Errorf("marker = %+v, want UserID 7", marker)
	}
}

func TestRedisStore_Get_Absent_ReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	marker, err := store.Get(context.Background(), 1, "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if marker != nil {
		t.Errorf("expected nil marker, got %+v", marker)
	}
}

func TestRedisStore_Get_Expired_ReturnsNil(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, 1, "tok", time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	marker, err := store.Get(ctx, 1, "tok")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if marker != nil {
		t.Error("expired session should not be returned")
	}
}

func TestRedisStore_Delete_OnlyRevokesThatToken(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, 5, "phone", DefaultTTL); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.Put(ctx, 5, "laptop", DefaultTTL); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if err := store.Delete(ctx, 5, "phone"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if m, _ := store.Get(ctx, 5, "phone"); m != nil {
		t.Error("deleted session should be absent")
	}
	if m, _ := store.Get(ctx, 5, "laptop"); m == nil {
		t.Error("other session of the same user should remain")
	}
}

func TestRedisStore_Delete_Absent_NoError(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Delete(context.Background(), 9, "never-stored"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRedisStore_Put_OverwritesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, 3, "tok", time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.Put(ctx, 3, "tok", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if ttl := mr.TTL("session:3:tok"); ttl != time.Hour {
		t.Errorf("TTL = %v, want %v", ttl, time.Hour)
	}
}

func TestRedisStore_Get_CorruptedValue_ReturnsError(t *testing.T) {
	store, mr := newTestStore(t)

	if err := mr.Set("session:4:tok", "not-json"); err != nil {
		t.Fatalf("failed to seed redis: %v", err)
	}

	if _, err := store.Get(context.Background(), 4, "tok"); err == nil {
		t.Error("expected decode error for corrupted value")
	}
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newTestStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}

	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping should fail after redis is closed")
	}
}
