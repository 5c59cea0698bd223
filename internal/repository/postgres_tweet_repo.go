package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tweetstream/internal/model"
)

// tweetSelect はツイート本体、投稿者、返信先の要約を結合するSELECT句。
const tweetSelect = `SELECT t.id, t.user_id, t.content, t.image_url, t.reply_to_id,
	        t.likes_count, t.retweets_count, t.replies_count, t.created_at,
	        u.username, u.display_name, u.avatar_url, u.verified,
	        rt.id, rt.content, ru.username, ru.display_name`

const tweetFrom = `
	 FROM tweets t
	 JOIN users u ON u.id = t.user_id
	 LEFT JOIN tweets rt ON rt.id = t.reply_to_id
	 LEFT JOIN users ru ON ru.id = rt.user_id`

// PostgresTweetRepo はPostgreSQLを使用したツイートリポジトリ。
type PostgresTweetRepo struct {
	db *sql.DB
}

// NewPostgresTweetRepo はPostgresTweetRepoを生成する。
func NewPostgresTweetRepo(db *sql.DB) *PostgresTweetRepo {
	return &PostgresTweetRepo{db: db}
}

// scanTweet はtweetSelectの列を読み取る。extraは末尾の追加列の格納先。
func scanTweet(row rowScanner, extra ...any) (*model.Tweet, error) {
	t := &model.Tweet{}
	var replyID sql.NullInt64
	var replyContent, replyUsername, replyDisplayName sql.NullString

	dest := []any{
		&t.ID, &t.UserID, &t.Content, &t.ImageURL, &t.ReplyToID,
		&t.LikesCount, &t.RetweetsCount, &t.RepliesCount, &t.CreatedAt,
		&t.Username, &t.DisplayName, &t.AvatarURL, &t.Verified,
		&replyID, &replyContent, &replyUsername, &replyDisplayName,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if replyID.Valid {
		t.ReplyTo = &model.ReplyRef{
			ID:      replyID.Int64,
			Content: replyContent.String,
			User: model.ReplyAuthor{
				Username:    replyUsername.String,
				DisplayName: replyDisplayName.String,
			},
		}
	}
	return t, nil
}

func (r *PostgresTweetRepo) queryTweets(ctx context.Context, query string, args ...any) ([]model.Tweet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tweets := []model.Tweet{}
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, *t)
	}
	return tweets, rows.Err()
}

// FindByID は指定IDのツイートを取得する。見つからない場合はnilを返す。
func (r *PostgresTweetRepo) FindByID(ctx context.Context, id int64) (*model.Tweet, error) {
	t, err := scanTweet(r.db.QueryRowContext(ctx, tweetSelect+tweetFrom+` WHERE t.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tweet: %w", err)
	}
	return t, nil
}

// ListAll は全ユーザーのツイートを新しい順に返す。総件数も返す。
func (r *PostgresTweetRepo) ListAll(ctx context.Context, page model.Page) ([]model.Tweet, int, error) {
	tweets, err := r.queryTweets(ctx,
		tweetSelect+tweetFrom+`
		 ORDER BY t.created_at DESC, t.id DESC
		 LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tweets: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tweets: %w", err)
	}
	return tweets, total, nil
}

// ListFeed は閲覧者本人とフォロー中ユーザーのツイートを新しい順に返す。
func (r *PostgresTweetRepo) ListFeed(ctx context.Context, viewerID int64, page model.Page) ([]model.Tweet, error) {
	rows, err := r.db.QueryContext(ctx,
		tweetSelect+`,
		        EXISTS(SELECT 1 FROM likes l WHERE l.tweet_id = t.id AND l.user_id = $1),
		        EXISTS(SELECT 1 FROM retweets rw WHERE rw.tweet_id = t.id AND rw.user_id = $1)`+
			tweetFrom+`
		 WHERE t.user_id = $1
		    OR t.user_id IN (SELECT following_id FROM follows WHERE follower_id = $1)
		 ORDER BY t.created_at DESC, t.id DESC
		 LIMIT $2 OFFSET $3`,
		viewerID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()

	tweets := []model.Tweet{}
	for rows.Next() {
		var liked, retweeted bool
		t, err := scanTweet(rows, &liked, &retweeted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed tweet: %w", err)
		}
		t.LikedByUser = &liked
		t.RetweetedByUser = &retweeted
		tweets = append(tweets, *t)
	}
	return tweets, rows.Err()
}

// ListPublic はいいね数+リツイート数×2の降順でツイートを返す。
func (r *PostgresTweetRepo) ListPublic(ctx context.Context, page model.Page) ([]model.Tweet, error) {
	tweets, err := r.queryTweets(ctx,
		tweetSelect+tweetFrom+`
		 ORDER BY (t.likes_count + t.retweets_count * 2) DESC, t.created_at DESC
		 LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public tweets: %w", err)
	}
	return tweets, nil
}

// ListReplies は指定ツイートへの返信を古い順に返す。
func (r *PostgresTweetRepo) ListReplies(ctx context.Context, tweetID int64) ([]model.Tweet, error) {
	tweets, err := r.queryTweets(ctx,
		tweetSelect+tweetFrom+`
		 WHERE t.reply_to_id = $1
		 ORDER BY t.created_at ASC, t.id ASC`,
		tweetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	return tweets, nil
}

// ListByUser は指定ユーザーのツイートを新しい順にlimit件返す。
func (r *PostgresTweetRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Tweet, error) {
	tweets, err := r.queryTweets(ctx,
		tweetSelect+tweetFrom+`
		 WHERE t.user_id = $1
		 ORDER BY t.created_at DESC, t.id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user tweets: %w", err)
	}
	return tweets, nil
}

// Create はツイートを作成し、関連カウンタ、ハッシュタグ、通知を同一トランザクションで更新する。
func (r *PostgresTweetRepo) Create(ctx context.Context, in *model.NewTweet, hashtags []string, notify *model.NotificationDraft) (*model.Tweet, *model.Notification, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO tweets (user_id, content, image_url, reply_to_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		in.UserID, in.Content, in.ImageURL, in.ReplyToID,
	).Scan(&id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert tweet: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET tweets_count = tweets_count + 1 WHERE id = $1`, in.UserID,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to increment tweets_count: %w", err)
	}

	if in.ReplyToID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tweets SET replies_count = replies_count + 1 WHERE id = $1`, *in.ReplyToID,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to increment replies_count: %w", err)
		}
	}

	for _, tag := range hashtags {
		if err := attachHashtag(ctx, tx, id, tag); err != nil {
			return nil, nil, err
		}
	}

	var n *model.Notification
	if notify != nil {
		d := *notify
		if d.TweetID == nil {
			d.TweetID = &id
		}
		if n, err = insertNotification(ctx, tx, &d); err != nil {
			return nil, nil, err
		}
	}

	t, err := scanTweet(tx.QueryRowContext(ctx, tweetSelect+tweetFrom+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load created tweet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, n, nil
}

// attachHashtag はタグを登録（既存なら使用回数を加算）し、ツイートと紐付ける。
func attachHashtag(ctx context.Context, tx *sql.Tx, tweetID int64, tag string) error {
	var hashtagID int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO hashtags (tag, usage_count) VALUES ($1, 1)
		 ON CONFLICT (tag) DO UPDATE SET usage_count = hashtags.usage_count + 1
		 RETURNING id`,
		tag,
	).Scan(&hashtagID)
	if err != nil {
		return fmt.Errorf("failed to upsert hashtag: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tweet_hashtags (tweet_id, hashtag_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		tweetID, hashtagID,
	)
	if err != nil {
		return fmt.Errorf("failed to link hashtag: %w", err)
	}
	return nil
}

// Delete はツイートを削除し、投稿者のtweets_countと返信先のreplies_countを減算する。
func (r *PostgresTweetRepo) Delete(ctx context.Context, tweet *model.Tweet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM tweets WHERE id = $1`, tweet.ID)
	if err != nil {
		return fmt.Errorf("failed to delete tweet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// 並行して削除済み
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET tweets_count = GREATEST(tweets_count - 1, 0) WHERE id = $1`, tweet.UserID,
	); err != nil {
		return fmt.Errorf("failed to decrement tweets_count: %w", err)
	}

	if tweet.ReplyToID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tweets SET replies_count = GREATEST(replies_count - 1, 0) WHERE id = $1`, *tweet.ReplyToID,
		); err != nil {
			return fmt.Errorf("failed to decrement replies_count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// toggleTarget はいいね・リツイートで異なるテーブル名と列名。
type toggleTarget struct {
	table   string
	counter string
}

var (
	likeToggle    = toggleTarget{table: "likes", counter: "likes_count"}
	retweetToggle = toggleTarget{table: "retweets", counter: "retweets_count"}
)

// ToggleLike はいいねの有無を反転する。
func (r *PostgresTweetRepo) ToggleLike(ctx context.Context, userID, tweetID int64, notify *model.NotificationDraft) (*model.ToggleResult, error) {
	return r.toggle(ctx, likeToggle, userID, tweetID, notify)
}

// ToggleRetweet はリツイートの有無を反転する。
func (r *PostgresTweetRepo) ToggleRetweet(ctx context.Context, userID, tweetID int64, notify *model.NotificationDraft) (*model.ToggleResult, error) {
	return r.toggle(ctx, retweetToggle, userID, tweetID, notify)
}

// toggle は関連行の削除を試み、削除できなければ挿入する。
// 一意制約とカウンタの加減算を同一トランザクションで行うため、同時実行でも二重計上しない。
func (r *PostgresTweetRepo) toggle(ctx context.Context, target toggleTarget, userID, tweetID int64, notify *model.NotificationDraft) (*model.ToggleResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. 既存行の削除
	result, err := tx.ExecContext(ctx,
		`DELETE FROM `+target.table+` WHERE user_id = $1 AND tweet_id = $2`,
		userID, tweetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete from %s: %w", target.table, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	res := &model.ToggleResult{}
	delta := "- 1"
	if removed == 0 {
		// 2. 存在しなければ挿入
		result, err = tx.ExecContext(ctx,
			`INSERT INTO `+target.table+` (user_id, tweet_id) VALUES ($1, $2)
			 ON CONFLICT (user_id, tweet_id) DO NOTHING`,
			userID, tweetID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", target.table, err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		res.Active = true
		if inserted == 0 {
			// 並行トランザクションが先に挿入した。カウンタはそちらで加算済み。
			delta = "+ 0"
		} else {
			delta = "+ 1"
		}
	}

	// 3. カウンタの更新
	err = tx.QueryRowContext(ctx,
		`UPDATE tweets SET `+target.counter+` = GREATEST(`+target.counter+` `+delta+`, 0)
		 WHERE id = $1 RETURNING `+target.counter,
		tweetID,
	).Scan(&res.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", target.counter, err)
	}

	// 4. 追加時のみ通知
	if res.Active && delta == "+ 1" && notify != nil {
		if res.Notification, err = insertNotification(ctx, tx, notify); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return res, nil
}

// compile-time interface check
var _ TweetRepository = (*PostgresTweetRepo)(nil)
