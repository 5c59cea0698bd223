package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	IPRate          rate.Limit    // API全般のクライアントIPごとのレート（req/sec）
	IPBurst         int           // API全般のバーストサイズ
	WriteRate       rate.Limit    // 書き込み系のユーザーごとのレート（req/sec）
	WriteBurst      int           // 書き込み系のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig は「window内にmax件」の形式の設定からRateLimiterConfigを生成する。
func NewRateLimiterConfig(apiMax, writeMax int, window time.Duration) RateLimiterConfig {
	return RateLimiterConfig{
		IPRate:          rate.Limit(float64(apiMax) / window.Seconds()),
		IPBurst:         apiMax,
		WriteRate:       rate.Limit(float64(writeMax) / window.Seconds()),
		WriteBurst:      writeMax,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 100 req/15min/IP、書き込み 30 req/15min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(100, 30, 15*time.Minute)
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はキー（IPまたはユーザーID）ごとのリミッターの集合。
type limiterSet struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	limiters map[string]*keyedLimiter
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{rate: r, burst: burst, limiters: make(map[string]*keyedLimiter)}
}

// allow はキーのリミッターからトークンを1つ消費できればtrueを返す。
func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	kl, ok := s.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.limiters[key] = kl
	}
	kl.lastAccess = time.Now()
	s.mu.Unlock()

	return kl.limiter.Allow()
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// expire は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) expire(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はクライアントIP単位とユーザー単位のレート制限を管理する。
type RateLimiter struct {
	config RateLimiterConfig
	ip     *limiterSet
	write  *limiterSet
	logger *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		ip:     newLimiterSet(config.IPRate, config.IPBurst),
		write:  newLimiterSet(config.WriteRate, config.WriteBurst),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// IPMiddleware はクライアントIPごとのレート制限ミドルウェアを返す。
// RemoteAddrのIPで制限する。信頼できるプロキシの背後ではchiのRealIPを前段に置く。
func (rl *RateLimiter) IPMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.ip.allow(ip) {
				writeRateLimitResponse(w, rl.config.IPRate, "Too many requests from this IP, please try again later.")
				rl.logger.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "ip"),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteMiddleware は書き込み系エンドポイントのユーザーごとのレート制限ミドルウェアを返す。
// 認証ミドルウェアの後に配置する。
func (rl *RateLimiter) WriteMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, unauthorized())
				return
			}

			if !rl.write.allow(strconv.FormatInt(userID, 10)) {
				writeRateLimitResponse(w, rl.config.WriteRate, "Too many requests. Please try again later.")
				rl.logger.Warn("rate limit exceeded",
					slog.Int64("user_id", userID),
					slog.String("limit_type", "write"),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPLimiterCount は現在管理されているIPリミッターのエントリ数を返す。
func (rl *RateLimiter) IPLimiterCount() int {
	return rl.ip.size()
}

// WriteLimiterCount は現在管理されている書き込みリミッターのエントリ数を返す。
func (rl *RateLimiter) WriteLimiterCount() int {
	return rl.write.size()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	now := time.Now()
	ttl := rl.config.CleanupInterval * 2
	rl.ip.expire(now, ttl)
	rl.write.expire(now, ttl)
}

// clientIP はRemoteAddrからポートを除いたIPを返す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit, message string) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(ErrorResponseBody{
		Success: false,
		Error:   message,
		Code:    "RATE_LIMIT_EXCEEDED",
	})
}
