// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/tweetstream/internal/auth"
	"github.com/hitoshi/tweetstream/internal/middleware"
	"github.com/hitoshi/tweetstream/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, login, password string) (*auth.AuthResult, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*model.User, error)
}

// AuthHandler はアカウント登録とトークン認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName string  `json:"display_name"`
	Bio         *string `json:"bio"`
}

// loginRequest のusernameにはメールアドレスも指定できる。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register はユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result, "Registration successful")
}

// Login はログインしてトークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, "Login successful")
}

// Logout はリクエストのトークンに対応するセッションを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Logged out successfully")
}

// Verify はトークンを検証し、現在のユーザーを返す。
// GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)

	user, err := h.service.Verify(r.Context(), token)
	if err != nil {
		if auth.IsRejection(err) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(auth.RejectionMessage(err)))
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, &auth.AuthResult{User: user, Token: token}, "Token valid")
}
