// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Categoryはハンドラー層でHTTPステータスに変換される。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // クライアント向けエラーメッセージ
	Category string       // カテゴリ: validation, auth, forbidden, not_found, conflict, system
	Details  []FieldError // バリデーション失敗時のフィールド単位の詳細
}

// FieldError はバリデーションエラーの1フィールド分の詳細。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryForbidden  = "forbidden"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeTweetNotFound        = "TWEET_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeDuplicateUser        = "DUPLICATE_USER"
	ErrCodeAlreadyFollowing     = "ALREADY_FOLLOWING"
	ErrCodeNotFollowing         = "NOT_FOLLOWING"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewValidationError はバリデーションエラーを生成する。
func NewValidationError(message string, details ...FieldError) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: CategoryValidation,
		Details:  details,
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: CategoryAuth,
	}
}

// NewInvalidCredentialsError はログイン失敗時のエラーを生成する。
// ユーザー名とパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: CategoryAuth,
	}
}

// NewForbiddenError は他人のリソースを操作しようとした場合のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: CategoryForbidden,
	}
}

// NewTweetNotFoundError はツイート未検出エラーを生成する。
func NewTweetNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTweetNotFound,
		Message:  "Tweet not found",
		Category: CategoryNotFound,
	}
}

// NewReplyTargetNotFoundError は返信先ツイートが存在しない場合のエラーを生成する。
func NewReplyTargetNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTweetNotFound,
		Message:  "Tweet to reply to not found",
		Category: CategoryNotFound,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: CategoryNotFound,
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  "Notification not found",
		Category: CategoryNotFound,
	}
}

// NewDuplicateUserError はユーザー名またはメールアドレスが登録済みの場合のエラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "Username or email already exists",
		Category: CategoryConflict,
	}
}

// NewAlreadyFollowingError は既にフォロー済みのユーザーを再度フォローした場合のエラーを生成する。
func NewAlreadyFollowingError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFollowing,
		Message:  "Already following this user",
		Category: CategoryConflict,
	}
}

// NewNotFollowingError はフォローしていないユーザーのフォロー解除エラーを生成する。
func NewNotFollowingError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFollowing,
		Message:  "Not following this user",
		Category: CategoryNotFound,
	}
}
