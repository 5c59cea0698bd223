// Package user はプロフィール、フォロー関係、ユーザー検索のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/tweetstream/internal/event"
	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/repository"
	"github.com/hitoshi/tweetstream/internal/security"
	"github.com/hitoshi/tweetstream/internal/validation"
)

// ProfileTweetLimit はプロフィールに含める最新ツイートの件数。
const ProfileTweetLimit = 20

const messageFollowed = "started following you"

// URLValidator は外部URLの静的検証を行う。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Profile はプロフィール画面のユーザー情報と最新ツイート。
type Profile struct {
	User   *model.User   `json:"user"`
	Tweets []model.Tweet `json:"tweets"`
}

// Service はユーザーに関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	follows   repository.FollowRepository
	tweets    repository.TweetRepository
	sanitizer security.TextSanitizer
	urls      URLValidator
	publisher event.Publisher
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	tweets repository.TweetRepository,
	sanitizer security.TextSanitizer,
	urls URLValidator,
	publisher event.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:     users,
		follows:   follows,
		tweets:    tweets,
		sanitizer: sanitizer,
		urls:      urls,
		publisher: publisher,
		logger:    logger,
	}
}

// Profile はユーザー名でプロフィールと最新ツイートを取得する。
// メールアドレスは公開しない。
func (s *Service) Profile(ctx context.Context, username string) (*Profile, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	u.Email = ""

	tweets, err := s.tweets.ListByUser(ctx, u.ID, ProfileTweetLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user tweets: %w", err)
	}
	return &Profile{User: u, Tweets: tweets}, nil
}

// UpdateProfile は本人のプロフィールを更新する。
// 指定されたフィールドのみ更新し、1つもなければバリデーションエラーを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID int64, upd model.ProfileUpdate) (*model.User, error) {
	if upd.IsEmpty() {
		return nil, model.NewValidationError("No fields to update")
	}

	if upd.DisplayName != nil {
		v := s.sanitizer.SanitizeText(*upd.DisplayName)
		upd.DisplayName = &v
	}
	if upd.Bio != nil {
		v := s.sanitizer.SanitizeText(*upd.Bio)
		upd.Bio = &v
	}
	if upd.AvatarURL != nil {
		v := strings.TrimSpace(*upd.AvatarURL)
		upd.AvatarURL = &v
	}

	var errs validation.Errors
	if upd.DisplayName != nil {
		errs.Check(validation.Length(*upd.DisplayName, 1, 100), "display_name",
			"Display name must be between 1 and 100 characters")
	}
	if upd.Bio != nil {
		errs.Check(validation.Length(*upd.Bio, 0, 500), "bio", "Bio must be less than 500 characters")
	}
	if upd.AvatarURL != nil {
		errs.Check(validation.Length(*upd.AvatarURL, 1, 500) && validation.IsHTTPURL(*upd.AvatarURL) &&
			s.urls.ValidateURL(*upd.AvatarURL) == nil, "avatar_url", "Avatar URL must be a valid URL")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	u, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	s.logger.InfoContext(ctx, "profile updated", slog.Int64("user_id", userID))
	return u, nil
}

// Follow はtargetIDのユーザーをフォローし、フォロー先のユーザーを返す。
func (s *Service) Follow(ctx context.Context, followerID, targetID int64) (*model.User, error) {
	if followerID == targetID {
		return nil, model.NewValidationError("Cannot follow yourself")
	}

	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError()
	}

	created, n, err := s.follows.Follow(ctx, followerID, targetID, &model.NotificationDraft{
		UserID:     targetID,
		FromUserID: followerID,
		Type:       model.NotificationFollow,
		Message:    messageFollowed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to follow user: %w", err)
	}
	if !created {
		return nil, model.NewAlreadyFollowingError()
	}

	s.logger.InfoContext(ctx, "user followed",
		slog.Int64("follower_id", followerID),
		slog.Int64("following_id", targetID),
	)

	s.publisher.Publish(ctx, event.ChannelUserActivity, event.New(event.TypeUserFollowed, event.FollowChanged{
		FollowerID:  followerID,
		FollowingID: targetID,
	}))
	event.PublishNotification(ctx, s.publisher, n)

	return target, nil
}

// Unfollow はフォローを解除する。フォローしていない場合はNotFoundを返す。
func (s *Service) Unfollow(ctx context.Context, followerID, targetID int64) error {
	removed, err := s.follows.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return fmt.Errorf("failed to unfollow user: %w", err)
	}
	if !removed {
		return model.NewNotFollowingError()
	}

	s.logger.InfoContext(ctx, "user unfollowed",
		slog.Int64("follower_id", followerID),
		slog.Int64("following_id", targetID),
	)

	s.publisher.Publish(ctx, event.ChannelUserActivity, event.New(event.TypeUserUnfollowed, event.FollowChanged{
		FollowerID:  followerID,
		FollowingID: targetID,
	}))
	return nil
}

// Followers はフォロワー一覧を返す。存在しないユーザーには空の一覧を返す。
func (s *Service) Followers(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error) {
	users, err := s.follows.ListFollowers(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return users, nil
}

// Following はフォロー中のユーザー一覧を返す。
func (s *Service) Following(ctx context.Context, userID int64, page model.Page) ([]model.UserSummary, error) {
	users, err := s.follows.ListFollowing(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	return users, nil
}

// Search はユーザーを部分一致で検索する。
func (s *Service) Search(ctx context.Context, query string, page model.Page) ([]model.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewValidationError("Validation failed", model.FieldError{
			Field: "q", Message: "Search query is required",
		})
	}

	users, err := s.users.Search(ctx, query, page)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}
