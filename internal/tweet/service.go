// Package tweet はツイートの投稿・取得・削除といいね、リツイートのドメインロジックを提供する。
package tweet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/tweetstream/internal/event"
	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/repository"
	"github.com/hitoshi/tweetstream/internal/security"
	"github.com/hitoshi/tweetstream/internal/validation"
)

// 通知メッセージ
const (
	messageLiked     = "liked your tweet"
	messageRetweeted = "retweeted your tweet"
	messageReplied   = "replied to your tweet"
)

const maxHashtagLength = 100

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// URLValidator は外部URLの静的検証を行う。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// CreateInput はツイート投稿の入力値。
type CreateInput struct {
	Content   string
	ImageURL  *string
	ReplyToID *int64
}

// Service はツイートに関するビジネスロジックを提供する。
type Service struct {
	tweets    repository.TweetRepository
	sanitizer security.TextSanitizer
	urls      URLValidator
	prober    security.MediaProber
	publisher event.Publisher
	logger    *slog.Logger
}

// NewService はServiceを生成する。
// proberがnilの場合、画像URLの取得確認は行わない。
func NewService(
	tweets repository.TweetRepository,
	sanitizer security.TextSanitizer,
	urls URLValidator,
	prober security.MediaProber,
	publisher event.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		tweets:    tweets,
		sanitizer: sanitizer,
		urls:      urls,
		prober:    prober,
		publisher: publisher,
		logger:    logger,
	}
}

// Create はツイートを投稿する。
// 返信の場合は返信先の存在を確認し、返信先の投稿者が本人以外なら通知を作成する。
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*model.Tweet, error) {
	// 1. 入力値の検証
	content := s.sanitizer.SanitizeText(in.Content)
	imageURL := in.ImageURL
	if imageURL != nil && strings.TrimSpace(*imageURL) == "" {
		imageURL = nil
	}

	var errs validation.Errors
	errs.Check(validation.Length(content, 1, model.TweetMaxLength), "content",
		"Tweet content must be between 1 and 280 characters")
	if in.ReplyToID != nil {
		errs.Check(*in.ReplyToID >= 1, "reply_to_id", "Reply to ID must be a valid tweet ID")
	}
	if imageURL != nil {
		errs.Check(validation.Length(*imageURL, 1, 500) && validation.IsHTTPURL(*imageURL) &&
			s.urls.ValidateURL(*imageURL) == nil, "image_url", "Image URL must be a valid URL")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if imageURL != nil && s.prober != nil {
		if err := s.prober.Probe(ctx, *imageURL); err != nil {
			s.logger.InfoContext(ctx, "image URL rejected",
				slog.String("image_url", *imageURL),
				slog.String("error", err.Error()),
			)
			return nil, model.NewValidationError("Validation failed", model.FieldError{
				Field: "image_url", Message: "Image URL must point to an image",
			})
		}
	}

	// 2. 返信先の確認
	var notify *model.NotificationDraft
	if in.ReplyToID != nil {
		parent, err := s.tweets.FindByID(ctx, *in.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("failed to find reply target: %w", err)
		}
		if parent == nil {
			return nil, model.NewReplyTargetNotFoundError()
		}
		notify = draftFor(userID, parent.UserID, model.NotificationReply, nil, messageReplied)
	}

	// 3. 作成（カウンタ・ハッシュタグ・通知は同一トランザクション）
	t, n, err := s.tweets.Create(ctx, &model.NewTweet{
		UserID:    userID,
		Content:   content,
		ImageURL:  imageURL,
		ReplyToID: in.ReplyToID,
	}, ExtractHashtags(content), notify)
	if err != nil {
		return nil, fmt.Errorf("failed to create tweet: %w", err)
	}

	s.logger.InfoContext(ctx, "tweet created",
		slog.Int64("tweet_id", t.ID),
		slog.Int64("user_id", userID),
	)

	// 4. イベント送信
	s.publisher.Publish(ctx, event.ChannelTweets, event.New(event.TypeTweetCreated, event.TweetCreated{Tweet: t}))
	event.PublishNotification(ctx, s.publisher, n)

	return t, nil
}

// List は全ユーザーのツイートを新しい順に返す。総件数も返す。
func (s *Service) List(ctx context.Context, page model.Page) ([]model.Tweet, int, error) {
	tweets, total, err := s.tweets.ListAll(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tweets: %w", err)
	}
	return tweets, total, nil
}

// Feed は閲覧者とフォロー中ユーザーのツイートを返す。
func (s *Service) Feed(ctx context.Context, viewerID int64, page model.Page) ([]model.Tweet, error) {
	tweets, err := s.tweets.ListFeed(ctx, viewerID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	return tweets, nil
}

// Public は反応の多い順にツイートを返す。
func (s *Service) Public(ctx context.Context, page model.Page) ([]model.Tweet, error) {
	tweets, err := s.tweets.ListPublic(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list public tweets: %w", err)
	}
	return tweets, nil
}

// Get はツイートと返信一覧を返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.TweetDetail, error) {
	t, err := s.findTweet(ctx, id)
	if err != nil {
		return nil, err
	}

	replies, err := s.tweets.ListReplies(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	return &model.TweetDetail{Tweet: t, Replies: replies}, nil
}

// ToggleLike はいいねを反転する。追加時のみ投稿者に通知する。
func (s *Service) ToggleLike(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error) {
	t, err := s.findTweet(ctx, tweetID)
	if err != nil {
		return nil, err
	}

	notify := draftFor(userID, t.UserID, model.NotificationLike, &t.ID, messageLiked)
	result, err := s.tweets.ToggleLike(ctx, userID, tweetID, notify)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}

	eventType := event.TypeTweetUnliked
	if result.Active {
		eventType = event.TypeTweetLiked
	}
	s.publisher.Publish(ctx, event.ChannelUserActivity, event.New(eventType, event.LikeToggled{
		UserID:       userID,
		TweetID:      tweetID,
		TweetOwnerID: t.UserID,
		LikesCount:   result.Count,
	}))
	event.PublishNotification(ctx, s.publisher, result.Notification)

	return result, nil
}

// ToggleRetweet はリツイートを反転する。追加時のみ投稿者に通知する。
func (s *Service) ToggleRetweet(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error) {
	t, err := s.findTweet(ctx, tweetID)
	if err != nil {
		return nil, err
	}

	notify := draftFor(userID, t.UserID, model.NotificationRetweet, &t.ID, messageRetweeted)
	result, err := s.tweets.ToggleRetweet(ctx, userID, tweetID, notify)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle retweet: %w", err)
	}

	eventType := event.TypeTweetUnretweeted
	if result.Active {
		eventType = event.TypeTweetRetweeted
	}
	s.publisher.Publish(ctx, event.ChannelUserActivity, event.New(eventType, event.RetweetToggled{
		UserID:        userID,
		TweetID:       tweetID,
		TweetOwnerID:  t.UserID,
		RetweetsCount: result.Count,
	}))
	event.PublishNotification(ctx, s.publisher, result.Notification)

	return result, nil
}

// Delete は本人のツイートを削除する。
func (s *Service) Delete(ctx context.Context, userID, tweetID int64) error {
	t, err := s.findTweet(ctx, tweetID)
	if err != nil {
		return err
	}
	if t.UserID != userID {
		return model.NewForbiddenError("You can only delete your own tweets")
	}

	if err := s.tweets.Delete(ctx, t); err != nil {
		return fmt.Errorf("failed to delete tweet: %w", err)
	}

	s.logger.InfoContext(ctx, "tweet deleted",
		slog.Int64("tweet_id", tweetID),
		slog.Int64("user_id", userID),
	)

	s.publisher.Publish(ctx, event.ChannelTweets, event.New(event.TypeTweetDeleted, event.TweetDeleted{
		TweetID: tweetID,
		UserID:  userID,
	}))
	return nil
}

func (s *Service) findTweet(ctx context.Context, id int64) (*model.Tweet, error) {
	t, err := s.tweets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find tweet: %w", err)
	}
	if t == nil {
		return nil, model.NewTweetNotFoundError()
	}
	return t, nil
}

// draftFor は通知の下書きを作る。actorとrecipientが同一ならnilを返す。
func draftFor(actorID, recipientID int64, typ model.NotificationType, tweetID *int64, message string) *model.NotificationDraft {
	if actorID == recipientID {
		return nil
	}
	return &model.NotificationDraft{
		UserID:     recipientID,
		FromUserID: actorID,
		Type:       typ,
		TweetID:    tweetID,
		Message:    message,
	}
}

// ExtractHashtags は本文中の#タグを小文字化し、重複を除いて出現順に返す。
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if utf8.RuneCountInString(tag) > maxHashtagLength || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
