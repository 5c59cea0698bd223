package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger は依存サービスの疎通確認を行う。
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc は関数をPingerとして使うためのアダプター。
type PingFunc func(ctx context.Context) error

// Ping はf(ctx)を呼ぶ。
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthDeps はヘルスチェック対象の依存サービス。nilのものは確認しない。
type HealthDeps struct {
	Database Pinger
	Redis    Pinger
	Broker   Pinger
	Timeout  time.Duration // 0の場合は2秒
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// NewHealthHandler はGET /healthのハンドラーを返す。
// すべての依存サービスが応答すれば200 healthy、いずれかが失敗すれば503 unhealthy。
func NewHealthHandler(deps HealthDeps, logger *slog.Logger) http.HandlerFunc {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	checks := []struct {
		name   string
		pinger Pinger
	}{
		{"database", deps.Database},
		{"redis", deps.Redis},
		{"broker", deps.Broker},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := healthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  make(map[string]string, len(checks)),
		}
		for _, c := range checks {
			if c.pinger == nil {
				continue
			}
			if err := c.pinger.Ping(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					slog.String("service", c.name),
					slog.String("error", err.Error()),
				)
				resp.Services[c.name] = "disconnected"
				resp.Status = "unhealthy"
				continue
			}
			resp.Services[c.name] = "connected"
		}

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
