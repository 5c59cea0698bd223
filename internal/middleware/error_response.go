package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/tweetstream/internal/model"
)

// ErrorResponseBody はエラーレスポンスの統一フォーマット。
// 成功レスポンスと同じくsuccessフィールドを持つ。
type ErrorResponseBody struct {
	Success bool               `json:"success"`
	Error   string             `json:"error"`
	Code    string             `json:"code,omitempty"`
	Details []model.FieldError `json:"details,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Success: false,
		Error:   apiErr.Message,
		Code:    apiErr.Code,
		Details: apiErr.Details,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "Internal server error",
		Category: model.CategorySystem,
	})
}
