// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/tweetstream/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByLogin はユーザー名またはメールアドレスでユーザーを取得する。
	// パスワードハッシュを含む。見つからない場合はnilを返す。
	FindByLogin(ctx context.Context, login string) (*model.User, error)

	// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが登録済みかを返す。
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプを含むユーザーを返す。
	Create(ctx context.Context, in *model.NewUser) (*model.User, error)

	// UpdateProfile はnilでないフィールドのみ更新する。見つからない場合はnilを返す。
	UpdateProfile(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.User, error)

	// Search はユーザー名、表示名、自己紹介の部分一致でユーザーを検索する。
	Search(ctx context.Context, query string, page model.Page) ([]model.UserSummary, error)
}

// TweetRepository はツイートとその関連行（いいね、リツイート）の永続化インターフェース。
// 複数行にまたがる更新はすべて1トランザクションで実行する。
type TweetRepository interface {
	// FindByID は指定IDのツイートを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Tweet, error)

	// ListAll は全ユーザーのツイートを新しい順に返す。総件数も返す。
	ListAll(ctx context.Context, page model.Page) ([]model.Tweet, int, error)

	// ListFeed は閲覧者本人とフォロー中ユーザーのツイートを新しい順に返す。
	// 閲覧者のいいね・リツイート状態を含む。
	ListFeed(ctx context.Context, viewerID int64, page model.Page) ([]model.Tweet, error)

	// ListPublic はいいね数+リツイート数×2の降順でツイートを返す。
	ListPublic(ctx context.Context, page model.Page) ([]model.Tweet, error)

	// ListReplies は指定ツイートへの返信を古い順に返す。
	ListReplies(ctx context.Context, tweetID int64) ([]model.Tweet, error)

	// ListByUser は指定ユーザーのツイートを新しい順にlimit件返す。
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Tweet, error)

	// Create はツイートを作成し、投稿者のtweets_countと返信先のreplies_countを加算する。
	// hashtagsはタグ表に登録し、ツイートと紐付ける。
	// notifyがnilでなければ通知を作成する（TweetIDがnilなら作成したツイートのIDを使う）。
	Create(ctx context.Context, in *model.NewTweet, hashtags []string, notify *model.NotificationDraft) (*model.Tweet, *model.Notification, error)

	// Delete はツイートを削除し、投稿者のtweets_countと返信先のreplies_countを減算する。
	Delete(ctx context.Context, tweet *model.Tweet) error

	// ToggleLike はいいねの有無を反転する。
	// いいねを追加した場合のみnotifyの通知を作成する。
	ToggleLike(ctx context.Context, userID, tweetID int64, notify *model.NotificationDraft) (*model.ToggleResult, error)

	// ToggleRetweet はリツイートの有無を反転する。
	// リツイートを追加した場合のみnotifyの通知を作成する。
	ToggleRetweet(ctx context.Context, userID, tweetID int64, notify *model.NotificationDraft) (*model.ToggleResult, error)
}

// FollowRepository はフォロー関係の永続化インターフェース。
type FollowRepository interface {
	// Follow はフォロー関係を作成し、双方のカウンタを加算する。
	// 既にフォロー済みの場合はcreated=falseを返し、何も変更しない。
	Follow(ctx context.Context, followerID, followingID int64, notify *model.NotificationDraft) (created bool, n *model.Notification, err error)

	// Unfollow はフォロー関係を削除し、双方のカウンタを減算する。
	// フォローしていなかった場合はremoved=falseを返す。
	Unfollow(ctx context.Context, followerID, followingID int64) (removed bool, err error)

	// ListFollowers は指定ユーザーのフォロワーをフォロー日時の新しい順に返す。
	ListFollowers(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error)

	// ListFollowing は指定ユーザーがフォローしているユーザーを返す。
	ListFollowing(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error)
}

// NotificationRepository は通知の永続化インターフェース。
// 通知の作成はTweetRepository/FollowRepositoryのトランザクション内で行う。
type NotificationRepository interface {
	// List はユーザーの通知を新しい順に返す。unreadOnlyがtrueなら未読のみ。
	List(ctx context.Context, userID int64, unreadOnly bool, page model.Page) ([]model.Notification, error)

	// CountUnread は未読通知の件数を返す。
	CountUnread(ctx context.Context, userID int64) (int, error)

	// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Notification, error)

	// MarkRead は通知を既読にする。
	MarkRead(ctx context.Context, id int64) error

	// MarkAllRead はユーザーの未読通知をすべて既読にし、更新件数を返す。
	MarkAllRead(ctx context.Context, userID int64) (int64, error)

	// Delete は通知を削除する。
	Delete(ctx context.Context, id int64) error

	// Stats は種別ごとの通知件数を返す。
	Stats(ctx context.Context, userID int64) (*model.NotificationStats, error)
}
