// Package event はドメインイベントのエンベロープ、ブローカーへの送信、
// ブローカーからリアルタイム配信への中継を提供する。
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tweetstream/internal/model"
)

// ブローカーのチャネル名
const (
	ChannelTweets        = "tweets"
	ChannelUserActivity  = "user-activity"
	ChannelNotifications = "notifications"
)

// Channels はリレーが購読するチャネルの一覧。
var Channels = []string{ChannelTweets, ChannelUserActivity, ChannelNotifications}

// イベント種別
const (
	TypeTweetCreated        = "tweet_created"
	TypeTweetDeleted        = "tweet_deleted"
	TypeTweetLiked          = "tweet_liked"
	TypeTweetUnliked        = "tweet_unliked"
	TypeTweetRetweeted      = "tweet_retweeted"
	TypeTweetUnretweeted    = "tweet_unretweeted"
	TypeUserFollowed        = "user_followed"
	TypeUserUnfollowed      = "user_unfollowed"
	TypeNotificationCreated = "notification_created"
)

// BroadcastEventName はチャネル名をWebSocketの配信イベント名に変換する。
// 未知のチャネルはokがfalseになる。
func BroadcastEventName(channel string) (name string, ok bool) {
	switch channel {
	case ChannelTweets:
		return "tweet_update", true
	case ChannelUserActivity:
		return "activity_update", true
	case ChannelNotifications:
		return "notification", true
	}
	return "", false
}

// Envelope はブローカーに流すイベントの共通形式。
// Payloadのフィールドはトップレベルに展開して送る。
type Envelope struct {
	ID        string
	Type      string
	Payload   any
	Timestamp time.Time
}

// New は新しいIDと現在時刻でEnvelopeを生成する。
func New(eventType string, payload any) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// MarshalJSON はペイロードのフィールドとid/type/timestampを1つのオブジェクトにまとめる。
func (e Envelope) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			// オブジェクト以外のペイロードはdataに入れる
			fields = map[string]json.RawMessage{"data": raw}
		}
	}

	var err error
	if fields["id"], err = json.Marshal(e.ID); err != nil {
		return nil, err
	}
	if fields["type"], err = json.Marshal(e.Type); err != nil {
		return nil, err
	}
	if fields["timestamp"], err = json.Marshal(e.Timestamp.Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// TweetCreated はtweet_createdのペイロード。
type TweetCreated struct {
	Tweet *model.Tweet `json:"tweet"`
}

// TweetDeleted はtweet_deletedのペイロード。
type TweetDeleted struct {
	TweetID int64 `json:"tweetId"`
	UserID  int64 `json:"userId"`
}

// LikeToggled はtweet_liked/tweet_unlikedのペイロード。
type LikeToggled struct {
	UserID       int64 `json:"userId"`
	TweetID      int64 `json:"tweetId"`
	TweetOwnerID int64 `json:"tweetOwnerId"`
	LikesCount   int   `json:"likesCount"`
}

// RetweetToggled はtweet_retweeted/tweet_unretweetedのペイロード。
type RetweetToggled struct {
	UserID        int64 `json:"userId"`
	TweetID       int64 `json:"tweetId"`
	TweetOwnerID  int64 `json:"tweetOwnerId"`
	RetweetsCount int   `json:"retweetsCount"`
}

// FollowChanged はuser_followed/user_unfollowedのペイロード。
type FollowChanged struct {
	FollowerID  int64 `json:"followerId"`
	FollowingID int64 `json:"followingId"`
}

// NotificationCreated はnotification_createdのペイロード。
type NotificationCreated struct {
	UserID       int64               `json:"userId"`
	Notification *model.Notification `json:"notification"`
}
