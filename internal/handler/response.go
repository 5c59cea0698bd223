package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tweetstream/internal/middleware"
	"github.com/hitoshi/tweetstream/internal/model"
	"github.com/hitoshi/tweetstream/internal/validation"
)

// successResponse は成功時のレスポンスエンベロープ。
type successResponse struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

// pagination は一覧系レスポンスのページ情報。
type pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// pageOf は総件数が分からない一覧のページ情報を返す。
// 取得件数がlimitに達していれば続きがあるとみなす。
func pageOf(p model.Page, n int) *pagination {
	return &pagination{Page: p.Page, Limit: p.Limit, Total: n, HasMore: n == p.Limit}
}

// pageWithTotal は総件数が分かる一覧のページ情報を返す。
func pageWithTotal(p model.Page, n, total int) *pagination {
	return &pagination{Page: p.Page, Limit: p.Limit, Total: total, HasMore: p.Offset()+n < total}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeSuccess は成功エンベロープを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	writeJSON(w, statusCode, successResponse{Success: true, Data: data, Message: message})
}

// writeList はページ情報付きの成功エンベロープを書き込む。
func writeList(w http.ResponseWriter, data any, p *pagination, message string) {
	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: data, Message: message, Pagination: p})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorのカテゴリからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Category {
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryAuth:
		return http.StatusUnauthorized
	case model.CategoryForbidden:
		return http.StatusForbidden
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON はリクエストボディをvにデコードする。
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("Invalid request body")
	}
	return nil
}

// pathID はURLパラメータkeyを正の整数として取り出す。
// 不正な値の場合はmessageを持つバリデーションエラーを返す。
func pathID(r *http.Request, key, message string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id < 1 {
		return 0, model.NewValidationError(message)
	}
	return id, nil
}

// queryPage はクエリ文字列のpageとlimitを解析する。
func queryPage(r *http.Request) (model.Page, error) {
	q := r.URL.Query()
	return validation.ParsePage(q.Get("page"), q.Get("limit"))
}

// currentUserID は認証済みユーザーIDを返す。未認証なら401を書き込みfalseを返す。
func currentUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("No token provided"))
		return 0, false
	}
	return userID, true
}
