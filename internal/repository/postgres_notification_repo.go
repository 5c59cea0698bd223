package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/tweetstream/internal/model"
)

const notificationColumns = `id, user_id, type, from_user_id, tweet_id, message, read, created_at`

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.FromUserID, &n.TweetID, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// insertNotification はトランザクション内で通知を作成する。
// いいね・リツイート・フォロー・返信の各更新と同じトランザクションで呼ぶ。
func insertNotification(ctx context.Context, tx *sql.Tx, d *model.NotificationDraft) (*model.Notification, error) {
	n, err := scanNotification(tx.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, type, from_user_id, tweet_id, message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+notificationColumns,
		d.UserID, d.Type, d.FromUserID, d.TweetID, d.Message,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	return n, nil
}

// List はユーザーの通知を新しい順に返す。送信者とツイートの要約を結合する。
func (r *PostgresNotificationRepo) List(ctx context.Context, userID int64, unreadOnly bool, page model.Page) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, n.user_id, n.type, n.from_user_id, n.tweet_id, n.message, n.read, n.created_at,
		        fu.id, fu.username, fu.display_name, fu.avatar_url, fu.verified,
		        t.id, t.content, t.created_at
		 FROM notifications n
		 LEFT JOIN users fu ON fu.id = n.from_user_id
		 LEFT JOIN tweets t ON t.id = n.tweet_id
		 WHERE n.user_id = $1 AND ($2 = false OR n.read = false)
		 ORDER BY n.created_at DESC, n.id DESC
		 LIMIT $3 OFFSET $4`,
		userID, unreadOnly, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var fromID sql.NullInt64
		var fromUsername, fromDisplayName sql.NullString
		var fromAvatar *string
		var fromVerified sql.NullBool
		var tweetID sql.NullInt64
		var tweetContent sql.NullString
		var tweetCreatedAt sql.NullTime

		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.FromUserID, &n.TweetID, &n.Message, &n.Read, &n.CreatedAt,
			&fromID, &fromUsername, &fromDisplayName, &fromAvatar, &fromVerified,
			&tweetID, &tweetContent, &tweetCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if fromID.Valid {
			n.FromUser = &model.UserSummary{
				ID:          fromID.Int64,
				Username:    fromUsername.String,
				DisplayName: fromDisplayName.String,
				AvatarURL:   fromAvatar,
				Verified:    fromVerified.Bool,
			}
		}
		if tweetID.Valid {
			n.Tweet = &model.NotifiedTweet{
				ID:        tweetID.Int64,
				Content:   tweetContent.String,
				CreatedAt: tweetCreatedAt.Time,
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnread は未読通知の件数を返す。
func (r *PostgresNotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
func (r *PostgresNotificationRepo) FindByID(ctx context.Context, id int64) (*model.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	return n, nil
}

// MarkRead は通知を既読にする。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

// MarkAllRead はユーザーの未読通知をすべて既読にし、更新件数を返す。
func (r *PostgresNotificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Delete は通知を削除する。
func (r *PostgresNotificationRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// Stats は種別ごとの通知件数を返す。
func (r *PostgresNotificationRepo) Stats(ctx context.Context, userID int64) (*model.NotificationStats, error) {
	s := &model.NotificationStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE read = false),
		        COUNT(*) FILTER (WHERE type = 'like'),
		        COUNT(*) FILTER (WHERE type = 'retweet'),
		        COUNT(*) FILTER (WHERE type = 'follow'),
		        COUNT(*) FILTER (WHERE type = 'reply'),
		        COUNT(*) FILTER (WHERE type = 'mention')
		 FROM notifications WHERE user_id = $1`,
		userID,
	).Scan(&s.TotalCount, &s.UnreadCount, &s.LikesCount, &s.RetweetsCount,
		&s.FollowsCount, &s.RepliesCount, &s.MentionsCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification stats: %w", err)
	}
	return s, nil
}

// DeleteReadBefore はcutoffより古い既読通知を削除し、削除件数を返す。
func (r *PostgresNotificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read = true AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
