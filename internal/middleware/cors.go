package middleware

import (
	"net/http"
	"strings"
)

// corsMethods はプリフライトで許可するメソッド。
const corsMethods = "GET, POST, PUT, DELETE, OPTIONS"

// NewCORSMiddleware はフロントエンドのオリジンに対するCORSミドルウェアを返す。
// allowedOriginsはカンマ区切りで複数指定できる。
// リクエストのOriginが一覧にあればそのOriginを返し、なければCORSヘッダーを付けない。
// Originのないリクエストには先頭のオリジンを返す。
// credentials送信と共存するため、ワイルドカード(*)は使用しない。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := splitOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			if origin, ok := matchOrigin(origins, r.Header.Get("Origin")); ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", corsMethods)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Expose-Headers", "Retry-After")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// プリフライトは後続に渡さない
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func matchOrigin(origins []string, origin string) (string, bool) {
	if len(origins) == 0 {
		return "", false
	}
	if origin == "" {
		return origins[0], true
	}
	for _, o := range origins {
		if o == origin {
			return origin, true
		}
	}
	return "", false
}
