package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, username string) (*user.Profile, error)
	UpdateProfile(ctx context.Context, userID int64, upd model.ProfileUpdate) (*model.User, error)
	Follow(ctx context.Context, followerID, targetID int64) (*model.User, error)
	Unfollow(ctx context.Context, followerID, targetID int64) error
	Followers(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error)
	Following(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error)
	Search(ctx context.Context, query string, page model.Page) ([]model.UserSummary, error)
}

// UserHandler はプロフィールとフォロー関係のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

type followResponse struct {
	Following bool `json:"following"`
}

const invalidUserID = "Invalid user ID"

// Profile はユーザー名でプロフィールを返す。
// GET /api/users/profile/{username}
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, "")
}

// UpdateProfile は本人のプロフィールを更新する。
// PUT /api/users/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, model.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, u, "Profile updated successfully")
}

// Follow はユーザーをフォローする。
// POST /api/users/follow/{userId}
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	targetID, err := pathID(r, "userId", invalidUserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	target, err := h.service.Follow(r.Context(), userID, targetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, followResponse{Following: true}, fmt.Sprintf("Now following %s", target.Username))
}

// Unfollow はフォローを解除する。
// DELETE /api/users/follow/{userId}
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	targetID, err := pathID(r, "userId", invalidUserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Unfollow(r.Context(), userID, targetID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, followResponse{Following: false}, "Unfollowed successfully")
}

// Followers はフォロワー一覧を返す。
// GET /api/users/{userId}/followers
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.listRelations(w, r, h.service.Followers)
}

// Following はフォロー中のユーザー一覧を返す。
// GET /api/users/{userId}/following
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.listRelations(w, r, h.service.Following)
}

func (h *UserHandler) listRelations(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error)) {
	userID, err := pathID(r, "userId", invalidUserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	users, err := list(r.Context(), userID, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeList(w, users, pageOf(page, len(users)), "")
}

// Search はユーザーを検索する。
// GET /api/users/search?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	users, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeList(w, users, pageOf(page, len(users)), "")
}
