package model

import "time"

// TweetMaxLength はツイート本文の最大文字数。
const TweetMaxLength = 280

// Tweet は投稿と投稿者情報を結合したビューを表す。
// LikedByUser/RetweetedByUserはフィード取得時のみ設定される。
type Tweet struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Content         string    `json:"content"`
	ImageURL        *string   `json:"image_url"`
	ReplyToID       *int64    `json:"reply_to_id"`
	LikesCount      int       `json:"likes_count"`
	RetweetsCount   int       `json:"retweets_count"`
	RepliesCount    int       `json:"replies_count"`
	CreatedAt       time.Time `json:"created_at"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	AvatarURL       *string   `json:"avatar_url"`
	Verified        bool      `json:"verified"`
	ReplyTo         *ReplyRef `json:"reply_to,omitempty"`
	LikedByUser     *bool     `json:"liked_by_user,omitempty"`
	RetweetedByUser *bool     `json:"retweeted_by_user,omitempty"`
}

// ReplyRef は返信先ツイートの要約。
type ReplyRef struct {
	ID      int64       `json:"id"`
	Content string      `json:"content"`
	User    ReplyAuthor `json:"user"`
}

// ReplyAuthor は返信先ツイートの投稿者。
type ReplyAuthor struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// TweetDetail はツイート本体と返信一覧。
type TweetDetail struct {
	Tweet   *Tweet  `json:"tweet"`
	Replies []Tweet `json:"replies"`
}

// NewTweet はツイート投稿時の入力値を表す。
type NewTweet struct {
	UserID    int64
	Content   string
	ImageURL  *string
	ReplyToID *int64
}

// ToggleResult はいいね・リツイートのトグル結果を表す。
// Activeはトグル後の状態、Countはトグル後のカウンタ値。
// Notificationは通知を作成した場合のみ設定される。
type ToggleResult struct {
	Active       bool
	Count        int
	Notification *Notification
}

// Page はページネーションの要求値を表す。
type Page struct {
	Page  int
	Limit int
}

// ページネーションの既定値
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 50
	MaxPage          = 1_000_000 // OFFSETは最大(MaxPage-1)*MaxPageLimit
)

// Offset はSQLのOFFSET値を返す。
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}
