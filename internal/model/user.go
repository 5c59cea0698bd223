package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはJSONに出力しない。
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	PasswordHash   string    `json:"-"`
	DisplayName    string    `json:"display_name"`
	Bio            *string   `json:"bio"`
	AvatarURL      *string   `json:"avatar_url"`
	Verified       bool      `json:"verified"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	TweetsCount    int       `json:"tweets_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserSummary はフォロワー一覧や検索結果で使う公開プロフィールの要約。
type UserSummary struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	DisplayName    string     `json:"display_name"`
	AvatarURL      *string    `json:"avatar_url"`
	Verified       bool       `json:"verified"`
	Bio            *string    `json:"bio,omitempty"`
	FollowersCount int        `json:"followers_count"`
	FollowingCount int        `json:"following_count"`
	TweetsCount    int        `json:"tweets_count"`
	FollowedAt     *time.Time `json:"followed_at,omitempty"`
}

// NewUser はユーザー登録時の入力値を表す。
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Bio          *string
}

// ProfileUpdate はプロフィール更新の差分を表す。
// nilのフィールドは更新しない。
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p ProfileUpdate) IsEmpty() bool {
	return p.DisplayName == nil && p.Bio == nil && p.AvatarURL == nil
}

// SessionMarker はセッションストアに保存される値。
// トークン文字列とユーザーIDの組が有効であることを示す。
type SessionMarker struct {
	UserID int64 `json:"userId"`
}
