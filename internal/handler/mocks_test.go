package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tweetstream/internal/auth"
	"github.com/hitoshi/tweetstream/internal/middleware"
	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/notification"
	"github.com/hitoshi/tweetstream/internal/tweet"
	"github.com/hitoshi/tweetstream/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	loginFn    func(ctx context.Context, login, password string) (*auth.AuthResult, error)
	logoutFn   func(ctx context.Context, token string) error
	verifyFn   func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error) {
	return m.registerFn(ctx, in)
}

func (m *mockAuthService) Login(ctx context.Context, login, password string) (*auth.AuthResult, error) {
	return m.loginFn(ctx, login, password)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	return m.verifyFn(ctx, token)
}

type mockTweetService struct {
	createFn        func(ctx context.Context, userID int64, in tweet.CreateInput) (*model.Tweet, error)
	listFn          func(ctx context.Context, page model.Page) ([]model.Tweet, int, error)
	feedFn          func(ctx context.Context, viewerID int64, page model.Page) ([]model.Tweet, error)
	publicFn        func(ctx context.Context, page model.Page) ([]model.Tweet, error)
	getFn           func(ctx context.Context, id int64) (*model.TweetDetail, error)
	toggleLikeFn    func(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error)
	toggleRetweetFn func(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error)
	deleteFn        func(ctx context.Context, userID, tweetID int64) error
}

func (m *mockTweetService) Create(ctx context.Context, userID int64, in tweet.CreateInput) (*model.Tweet, error) {
	return m.createFn(ctx, userID, in)
}

func (m *mockTweetService) List(ctx context.Context, page model.Page) ([]model.Tweet, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, page)
	}
	return []model.Tweet{}, 0, nil
}

func (m *mockTweetService) Feed(ctx context.Context, viewerID int64, page model.Page) ([]model.Tweet, error) {
	if m.feedFn != nil {
		return m.feedFn(ctx, viewerID, page)
	}
	return []model.Tweet{}, nil
}

func (m *mockTweetService) Public(ctx context.Context, page model.Page) ([]model.Tweet, error) {
	if m.publicFn != nil {
		return m.publicFn(ctx, page)
	}
	return []model.Tweet{}, nil
}

func (m *mockTweetService) Get(ctx context.Context, id int64) (*model.TweetDetail, error) {
	return m.getFn(ctx, id)
}

func (m *mockTweetService) ToggleLike(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error) {
	return m.toggleLikeFn(ctx, userID, tweetID)
}

func (m *mockTweetService) ToggleRetweet(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error) {
	return m.toggleRetweetFn(ctx, userID, tweetID)
}

func (m *mockTweetService) Delete(ctx context.Context, userID, tweetID int64) error {
	return m.deleteFn(ctx, userID, tweetID)
}

type mockUserService struct {
	profileFn       func(ctx context.Context, username string) (*user.Profile, error)
	updateProfileFn func(ctx context.Context, userID int64, upd model.ProfileUpdate) (*model.User, error)
	followFn        func(ctx context.Context, followerID, targetID int64) (*model.User, error)
	unfollowFn      func(ctx context.Context, followerID, targetID int64) error
	followersFn     func(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error)
	followingFn     func(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error)
	searchFn        func(ctx context.Context, query string, page model.Page) ([]model.UserSummary, error)
}

func (m *mockUserService) Profile(ctx context.Context, username string) (*user.Profile, error) {
	return m.profileFn(ctx, username)
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID int64, upd model.ProfileUpdate) (*model.User, error) {
	return m.updateProfileFn(ctx, userID, upd)
}

func (m *mockUserService) Follow(ctx context.Context, followerID, targetID int64) (*model.User, error) {
	return m.followFn(ctx, followerID, targetID)
}

func (m *mockUserService) Unfollow(ctx context.Context, followerID, targetID int64) error {
	return m.unfollowFn(ctx, followerID, targetID)
}

func (m *mockUserService) Followers(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error) {
	return m.followersFn(ctx, userID, page)
}

func (m *mockUserService) Following(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error) {
	return m.followingFn(ctx, userID, page)
}

func (m *mockUserService) Search(ctx context.Context, query string, page model.Page) ([]model.UserSummary, error) {
	return m.searchFn(ctx, query, page)
}

type mockNotificationService struct {
	listFn        func(ctx context.Context, userID int64, unreadOnly bool, page model.Page) (*notification.ListResult, error)
	markReadFn    func(ctx context.Context, userID, id int64) (bool, error)
	markAllReadFn func(ctx context.Context, userID int64) (int64, error)
	deleteFn      func(ctx context.Context, userID, id int64) error
	statsFn       func(ctx context.Context, userID int64) (*model.NotificationStats, error)
}

func (m *mockNotificationService) List(ctx context.Context, userID int64, unreadOnly bool, page model.Page) (*notification.ListResult, error) {
	return m.listFn(ctx, userID, unreadOnly, page)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	return m.markReadFn(ctx, userID, id)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return m.markAllReadFn(ctx, userID)
}

func (m *mockNotificationService) Delete(ctx context.Context, userID, id int64) error {
	return m.deleteFn(ctx, userID, id)
}

func (m *mockNotificationService) Stats(ctx context.Context, userID int64) (*model.NotificationStats, error) {
	return m.statsFn(ctx, userID)
}

// --- テストヘルパー ---

// testEnvelope はレスポンスエンベロープのデコード先。
type testEnvelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Error      string             `json:"error"`
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Details    []model.FieldError `json:"details"`
	Pagination *pagination        `json:"pagination"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID int64) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	return buf
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}
