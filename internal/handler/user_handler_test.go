package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/user"
)

func TestUserHandler_Profile(t *testing.T) {
	svc := &mockUserService{
		profileFn: func(ctx context.Context, username string) (*user.Profile, error) {
			if username != "alice" {
				return nil, model.NewUserNotFoundError()
			}
			return &user.Profile{User: &model.User{ID: 1, Username: "alice"}, Tweets: []model.Tweet{}}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Profile(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/users/profile/alice", nil), "username", "alice"))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	h.Profile(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/users/profile/bob", nil), "username", "bob"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q", env.Code)
	}
}

// 指定されていないフィールドはnilのままサービスに渡る
func TestUserHandler_UpdateProfile_PartialFields(t *testing.T) {
	var got model.ProfileUpdate
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID int64, upd model.ProfileUpdate) (*model.User, error) {
			got = upd
			return &model.User{ID: userID, DisplayName: *upd.DisplayName}, nil
		},
	}
	h := NewUserHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/users/profile", strings.NewReader(`{"display_name":"Alice"}`)), 1)
	w := httptest.NewRecorder()
	h.UpdateProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.DisplayName == nil || *got.DisplayName != "Alice" || got.Bio != nil || got.AvatarURL != nil {
		t.Errorf("update = %+v", got)
	}
	if env := decodeEnvelope(t, w); env.Message != "Profile updated successfully" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestUserHandler_Follow(t *testing.T) {
	tests := []struct {
		name       string
		param      string
		followErr  error
		wantStatus int
		wantMsg    string
	}{
		{"成功", "2", nil, http.StatusOK, "Now following bob"},
		{"自分自身", "1", model.NewValidationError("Cannot follow yourself"), http.StatusBadRequest, ""},
		{"フォロー済み", "2", model.NewAlreadyFollowingError(), http.StatusConflict, ""},
		{"存在しないユーザー", "3", model.NewUserNotFoundError(), http.StatusNotFound, ""},
		{"不正なID", "x", nil, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				followFn: func(ctx context.Context, followerID, targetID int64) (*model.User, error) {
					if tt.followErr != nil {
						return nil, tt.followErr
					}
					return &model.User{ID: targetID, Username: "bob"}, nil
				},
			}
			h := NewUserHandler(svc)

			req := withUserID(withChiURLParam(httptest.NewRequest(http.MethodPost, "/api/users/follow/"+tt.param, nil), "userId", tt.param), 1)
			w := httptest.NewRecorder()
			h.Follow(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, w)
			if tt.wantMsg != "" && env.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", env.Message, tt.wantMsg)
			}
			if tt.wantStatus == http.StatusOK {
				var data followResponse
				json.Unmarshal(env.Data, &data)
				if !data.Following {
					t.Error("following should be true")
				}
			}
		})
	}
}

func TestUserHandler_Unfollow_NotFollowing(t *testing.T) {
	svc := &mockUserService{
		unfollowFn: func(ctx context.Context, followerID, targetID int64) error {
			return model.NewNotFollowingError()
		},
	}
	h := NewUserHandler(svc)

	req := withUserID(withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/users/follow/2", nil), "userId", "2"), 1)
	w := httptest.NewRecorder()
	h.Unfollow(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUserHandler_Followers(t *testing.T) {
	svc := &mockUserService{
		followersFn: func(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error) {
			if userID != 5 || page.Limit != model.DefaultPageLimit {
				t.Errorf("Followers(%d, %+v)", userID, page)
			}
			return []model.UserSummary{{ID: 1, Username: "alice"}}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Followers(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/users/5/followers", nil), "userId", "5"))

	env := decodeEnvelope(t, w)
	if env.Pagination == nil || env.Pagination.Total != 1 || env.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Pagination)
	}
}

func TestUserHandler_Following_InvalidUserID(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	w := httptest.NewRecorder()
	h.Following(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/users/abc/following", nil), "userId", "abc"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error != "Invalid user ID" {
		t.Errorf("error = %q", env.Error)
	}
}

func TestUserHandler_Search_PassesQuery(t *testing.T) {
	var gotQuery string
	svc := &mockUserService{
		searchFn: func(ctx context.Context, query string, page model.Page) ([]model.UserSummary, error) {
			gotQuery = query
			return []model.UserSummary{}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Search(w, httptest.NewRequest(http.MethodGet, "/api/users/search?q=ali", nil))

	if w.Code != http.StatusOK || gotQuery != "ali" {
		t.Errorf("status = %d, query = %q", w.Code, gotQuery)
	}
}
