package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/tweet"
)

// TweetServiceInterface はツイートハンドラーが必要とするサービスインターフェース。
type TweetServiceInterface interface {
	Create(ctx context.Context, userID int64, in tweet.CreateInput) (*model.Tweet, error)
	List(ctx context.Context, page model.Page) ([]model.Tweet, int, error)
	Feed(ctx context.Context, viewerID int64, page model.Page) ([]model.Tweet, error)
	Public(ctx context.Context, page model.Page) ([]model.Tweet, error)
	Get(ctx context.Context, id int64) (*model.TweetDetail, error)
	ToggleLike(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error)
	ToggleRetweet(ctx context.Context, userID, tweetID int64) (*model.ToggleResult, error)
	Delete(ctx context.Context, userID, tweetID int64) error
}

// TweetHandler はツイートのHTTPハンドラー。
type TweetHandler struct {
	service TweetServiceInterface
}

// NewTweetHandler はTweetHandlerを生成する。
func NewTweetHandler(service TweetServiceInterface) *TweetHandler {
	return &TweetHandler{service: service}
}

type createTweetRequest struct {
	Content   string  `json:"content"`
	ImageURL  *string `json:"image_url"`
	ReplyToID *int64  `json:"reply_to_id"`
}

type likeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

type retweetResponse struct {
	Retweeted     bool `json:"retweeted"`
	RetweetsCount int  `json:"retweetsCount"`
}

const invalidTweetID = "Invalid tweet ID"

// List は全ユーザーのツイートを新しい順に返す。
// GET /api/tweets
func (h *TweetHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	tweets, total, err := h.service.List(r.Context(), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeList(w, tweets, pageWithTotal(page, len(tweets), total),
		fmt.Sprintf("Retrieved %d tweets from all users", len(tweets)))
}

// Feed は閲覧者とフォロー中ユーザーのツイートを返す。
// GET /api/tweets/feed
func (h *TweetHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	page, err := queryPage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	tweets, err := h.service.Feed(r.Context(), userID, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeList(w, tweets, pageOf(page, len(tweets)), "")
}

// Public は反応の多い順にツイートを返す。
// GET /api/tweets/public
func (h *TweetHandler) Public(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	tweets, err := h.service.Public(r.Context(), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeList(w, tweets, pageOf(page, len(tweets)), "")
}

// Create はツイートを投稿する。
// POST /api/tweets
func (h *TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createTweetRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	t, err := h.service.Create(r.Context(), userID, tweet.CreateInput{
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, t, "Tweet created successfully")
}

// Get はツイートと返信一覧を返す。
// GET /api/tweets/{id}
func (h *TweetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", invalidTweetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, detail, "")
}

// ToggleLike はいいねを反転する。
// POST /api/tweets/{id}/like
func (h *TweetHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id", invalidTweetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.ToggleLike(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	message := "Tweet unliked"
	if result.Active {
		message = "Tweet liked"
	}
	writeSuccess(w, http.StatusOK, likeResponse{Liked: result.Active, LikesCount: result.Count}, message)
}

// ToggleRetweet はリツイートを反転する。
// POST /api/tweets/{id}/retweet
func (h *TweetHandler) ToggleRetweet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id", invalidTweetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.ToggleRetweet(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	message := "Tweet unretweeted"
	if result.Active {
		message = "Tweet retweeted"
	}
	writeSuccess(w, http.StatusOK, retweetResponse{Retweeted: result.Active, RetweetsCount: result.Count}, message)
}

// Delete は本人のツイートを削除する。
// DELETE /api/tweets/{id}
func (h *TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id", invalidTweetID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Tweet deleted successfully")
}
