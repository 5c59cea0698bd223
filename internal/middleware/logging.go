package middleware

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// Hijack はWebSocketへのアップグレード用に下位の接続を引き渡す。
// アップグレード成功時は101として記録する。
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	conn, rw, err := h.Hijack()
	if err == nil && !sr.written {
		sr.statusCode = http.StatusSwitchingProtocols
		sr.written = true
	}
	return conn, rw, err
}

// Unwrap はhttp.ResponseControllerのために元のResponseWriterを返す。
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// requestInfo は後段のミドルウェアが書き込むリクエスト単位の情報。
type requestInfo struct {
	userID int64
}

var requestInfoContextKey = contextKey("request_info")

// setRequestUserID はログ出力用に認証済みユーザーIDを記録する。
func setRequestUserID(ctx context.Context, userID int64) {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// HTTPRecorder はHTTPリクエストのメトリクスを記録する。
type HTTPRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、user_id（認証済みの場合）を含む。
// recorderがnilでなければステータスコードと処理時間も記録する。
func NewLoggingMiddleware(logger *slog.Logger, recorder HTTPRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			info := &requestInfo{}
			ctx := context.WithValue(r.Context(), requestInfoContextKey, info)

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			if recorder != nil {
				recorder.RecordHTTPStatus(rec.statusCode)
				recorder.RecordRequestLatency(duration)
			}

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
			}
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				args = append(args, slog.String("request_id", id))
			}
			if info.userID != 0 {
				args = append(args, slog.Int64("user_id", info.userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
