// Package notification は通知の一覧、既読化、削除、集計を提供する。
// 通知の作成はツイート・フォローの更新と同じトランザクションでリポジトリが行う。
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/repository"
)

// ListResult は通知一覧と未読件数。
type ListResult struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

// Service は通知に関するビジネスロジックを提供する。
type Service struct {
	notifications repository.NotificationRepository
	logger        *slog.Logger
}

// NewService はServiceを生成する。
func NewService(notifications repository.NotificationRepository, logger *slog.Logger) *Service {
	return &Service{notifications: notifications, logger: logger}
}

// List はユーザーの通知を新しい順に返す。
func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, page model.Page) (*ListResult, error) {
	list, err := s.notifications.List(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return &ListResult{Notifications: list, UnreadCount: unread}, nil
}

// MarkRead は本人の通知を既読にする。既に既読だった場合はalreadyRead=trueを返す。
func (s *Service) MarkRead(ctx context.Context, userID, id int64) (alreadyRead bool, err error) {
	n, err := s.findOwned(ctx, userID, id, "You can only mark your own notifications as read")
	if err != nil {
		return false, err
	}
	if n.Read {
		return true, nil
	}

	if err := s.notifications.MarkRead(ctx, id); err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return false, nil
}

// MarkAllRead は本人の未読通知をすべて既読にし、件数を返す。
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	count, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	s.logger.DebugContext(ctx, "notifications marked as read",
		slog.Int64("user_id", userID),
		slog.Int64("count", count),
	)
	return count, nil
}

// Delete は本人の通知を削除する。
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.findOwned(ctx, userID, id, "You can only delete your own notifications"); err != nil {
		return err
	}

	if err := s.notifications.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// Stats は通知の種別ごとの件数を返す。
func (s *Service) Stats(ctx context.Context, userID int64) (*model.NotificationStats, error) {
	stats, err := s.notifications.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification stats: %w", err)
	}
	return stats, nil
}

// findOwned は通知を取得し、所有者を確認する。
func (s *Service) findOwned(ctx context.Context, userID, id int64, forbidden string) (*model.Notification, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	if n == nil {
		return nil, model.NewNotificationNotFoundError()
	}
	if n.UserID != userID {
		return nil, model.NewForbiddenError(forbidden)
	}
	return n, nil
}
