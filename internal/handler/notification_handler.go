package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/notification"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context, userID int64, unreadOnly bool, page model.Page) (*notification.ListResult, error)
	MarkRead(ctx context.Context, userID, id int64) (alreadyRead bool, err error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
	Stats(ctx context.Context, userID int64) (*model.NotificationStats, error)
}

// NotificationHandler は通知のHTTPハンドラー。全エンドポイントで認証が必要。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type markAllReadResponse struct {
	MarkedCount int64 `json:"markedCount"`
}

const invalidNotificationID = "Invalid notification ID"

// List は通知一覧と未読件数を返す。
// GET /api/notifications?page=&limit=&unread_only=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	page, err := queryPage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	unreadOnly := false
	if v := r.URL.Query().Get("unread_only"); v != "" {
		unreadOnly, err = strconv.ParseBool(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Validation failed", model.FieldError{
				Field: "unread_only", Message: "Unread only must be a boolean",
			}))
			return
		}
	}

	result, err := h.service.List(r.Context(), userID, unreadOnly, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeList(w, result, pageOf(page, len(result.Notifications)), "")
}

// MarkRead は通知を既読にする。
// PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id", invalidNotificationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	alreadyRead, err := h.service.MarkRead(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if alreadyRead {
		writeSuccess(w, http.StatusOK, nil, "Notification already marked as read")
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Notification marked as read")
}

// MarkAllRead は未読通知をすべて既読にする。
// PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	n, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, markAllReadResponse{MarkedCount: n},
		fmt.Sprintf("Marked %d notifications as read", n))
}

// Delete は本人の通知を削除する。
// DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id", invalidNotificationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Notification deleted successfully")
}

// Stats は通知の種別ごとの件数を返す。
// GET /api/notifications/stats
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats, "")
}
