package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tweetstream/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用したフォロー関係リポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Follow はフォロー関係を作成し、双方のカウンタを加算する。
func (r *PostgresFollowRepo) Follow(ctx context.Context, followerID, followingID int64, notify *model.NotificationDraft) (bool, *model.Notification, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)
		 ON CONFLICT (follower_id, following_id) DO NOTHING`,
		followerID, followingID,
	)
	if err != nil {
		return false, nil, fmt.Errorf("failed to insert follow: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		return false, nil, nil
	}

	if err := adjustFollowCounts(ctx, tx, followerID, followingID, "+ 1"); err != nil {
		return false, nil, err
	}

	var n *model.Notification
	if notify != nil {
		if n, err = insertNotification(ctx, tx, notify); err != nil {
			return false, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, n, nil
}

// Unfollow はフォロー関係を削除し、双方のカウンタを減算する。
func (r *PostgresFollowRepo) Unfollow(ctx context.Context, followerID, followingID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`,
		followerID, followingID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete follow: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if removed == 0 {
		return false, nil
	}

	if err := adjustFollowCounts(ctx, tx, followerID, followingID, "- 1"); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

func adjustFollowCounts(ctx context.Context, tx *sql.Tx, followerID, followingID int64, delta string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET following_count = GREATEST(following_count `+delta+`, 0) WHERE id = $1`,
		followerID,
	); err != nil {
		return fmt.Errorf("failed to update following_count: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET followers_count = GREATEST(followers_count `+delta+`, 0) WHERE id = $1`,
		followingID,
	); err != nil {
		return fmt.Errorf("failed to update followers_count: %w", err)
	}
	return nil
}

// ListFollowers は指定ユーザーのフォロワーをフォロー日時の新しい順に返す。
func (r *PostgresFollowRepo) ListFollowers(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error) {
	return r.listRelated(ctx,
		`SELECT u.id, u.username, u.display_name, u.avatar_url, u.verified, u.bio,
		        u.followers_count, u.following_count, u.tweets_count, f.created_at
		 FROM follows f
		 JOIN users u ON u.id = f.follower_id
		 WHERE f.following_id = $1
		 ORDER BY f.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, page,
	)
}

// ListFollowing は指定ユーザーがフォローしているユーザーをフォロー日時の新しい順に返す。
func (r *PostgresFollowRepo) ListFollowing(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error) {
	return r.listRelated(ctx,
		`SELECT u.id, u.username, u.display_name, u.avatar_url, u.verified, u.bio,
		        u.followers_count, u.following_count, u.tweets_count, f.created_at
		 FROM follows f
		 JOIN users u ON u.id = f.following_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, page,
	)
}

func (r *PostgresFollowRepo) listRelated(ctx context.Context, query string, userID int64, page model.Page) ([]model.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	defer rows.Close()

	users := []model.UserSummary{}
	for rows.Next() {
		var followedAt sql.NullTime
		s, err := scanUserSummary(rows, &followedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		if followedAt.Valid {
			s.FollowedAt = &followedAt.Time
		}
		users = append(users, s)
	}
	return users, rows.Err()
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
