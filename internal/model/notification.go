package model

import "time"

// NotificationType は通知の種別。
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationRetweet NotificationType = "retweet"
	NotificationFollow  NotificationType = "follow"
	NotificationReply   NotificationType = "reply"
	NotificationMention NotificationType = "mention"
)

// Notification はユーザーへの通知を表す。
// FromUser/Tweetは一覧取得時に結合される。
type Notification struct {
	ID         int64            `json:"id"`
	UserID     int64            `json:"user_id"`
	Type       NotificationType `json:"type"`
	FromUserID *int64           `json:"from_user_id,omitempty"`
	TweetID    *int64           `json:"tweet_id"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	CreatedAt  time.Time        `json:"created_at"`
	FromUser   *UserSummary     `json:"from_user,omitempty"`
	Tweet      *NotifiedTweet   `json:"tweet,omitempty"`
}

// NotifiedTweet は通知に紐づくツイートの要約。
type NotifiedTweet struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationDraft はリポジトリに作成を依頼する通知の内容。
// 自分自身への通知はサービス層で除外してから渡す。
type NotificationDraft struct {
	UserID     int64
	FromUserID int64
	Type       NotificationType
	TweetID    *int64
	Message    string
}

// NotificationStats は通知の種別ごとの件数。
type NotificationStats struct {
	TotalCount    int `json:"total_count"`
	UnreadCount   int `json:"unread_count"`
	LikesCount    int `json:"likes_count"`
	RetweetsCount int `json:"retweets_count"`
	FollowsCount  int `json:"follows_count"`
	RepliesCount  int `json:"replies_count"`
	MentionsCount int `json:"mentions_count"`
}
