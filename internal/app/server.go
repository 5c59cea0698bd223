package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/tweetstream/internal/auth"
	"github.com/hitoshi/tweetstream/internal/config"
	"github.com/hitoshi/tweetstream/internal/database"
	"github.com/hitoshi/tweetstream/internal/event"
	"github.com/hitoshi/tweetstream/internal/handler"
	"github.com/hitoshi/tweetstream/internal/metrics"
	"github.com/hitoshi/tweetstream/internal/middleware"
	"github.com/hitoshi/tweetstream/internal/notification"
	"github.com/hitoshi/tweetstream/internal/realtime"
	"github.com/hitoshi/tweetstream/internal/repository"
	"github.com/hitoshi/tweetstream/internal/security"
	"github.com/hitoshi/tweetstream/internal/session"
	"github.com/hitoshi/tweetstream/internal/tweet"
	"github.com/hitoshi/tweetstream/internal/user"
)

// relayRetryInterval はリレーが停止した後に再購読するまでの待ち時間。
const relayRetryInterval = 2 * time.Second

// Server はAPIサーバーと、それが所有する外部接続をまとめたもの。
// Shutdownは何度呼んでも1回だけ実行される。
type Server struct {
	logger *slog.Logger

	db       *sql.DB
	sessions *session.RedisStore
	broker   *event.NATSBroker
	hub      *realtime.Hub
	limiter  *middleware.RateLimiter
	relay    *event.Relay
	http     *http.Server

	relayCancel context.CancelFunc
	relayDone   chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewServer は設定から全依存関係を組み立てる。
// 途中で失敗した場合は、それまでに開いた接続を閉じてからエラーを返す。
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.db = db
	logger.Info("database connection established")

	// 2. セッションストア
	s.sessions = session.NewRedisStore(session.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
	if err := s.sessions.Ping(ctx); err != nil {
		return nil, s.abort(fmt.Errorf("failed to connect to redis: %w", err))
	}
	logger.Info("redis connection established")

	// 3. ブローカー
	s.broker, err = event.ConnectNATS(event.BrokerConfig{
		URL:           cfg.NATSURL,
		SubjectPrefix: cfg.BrokerSubjectPrefix,
		ClientName:    cfg.BrokerClientName,
		DrainTimeout:  cfg.ShutdownTimeout / 2,
	}, logger)
	if err != nil {
		return nil, s.abort(fmt.Errorf("failed to connect to broker: %w", err))
	}
	logger.Info("broker connection established", slog.String("url", cfg.NATSURL))

	// 4. メトリクス
	collector, registry := newMetrics()

	// 5. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	tweetRepo := repository.NewPostgresTweetRepo(db)
	followRepo := repository.NewPostgresFollowRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	// 6. セキュリティ
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()
	var prober security.MediaProber
	if cfg.MediaProbeEnabled {
		prober = security.NewMediaProber(ssrfGuard, cfg.MediaProbeTimeout)
	}

	// 7. ドメインサービス
	publisher := event.NewBrokerPublisher(s.broker, collector, logger)
	authService := auth.NewService(
		userRepo, auth.NewCodec(cfg.JWTSecret, cfg.JWTExpiresIn), s.sessions,
		auth.ServiceConfig{SessionTTL: cfg.SessionTTL},
		logger,
	)
	tweetService := tweet.NewService(tweetRepo, sanitizer, ssrfGuard, prober, publisher, logger)
	userService := user.NewService(userRepo, followRepo, tweetRepo, sanitizer, ssrfGuard, publisher, logger)
	notificationService := notification.NewService(notificationRepo, logger)

	// 8. ライブ配信
	s.hub = realtime.NewHub(collector, logger)
	s.relay = event.NewRelay(s.broker, s.hub, collector, logger)

	// 9. ルーター
	s.limiter = middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitAPI, cfg.RateLimitWrite, cfg.RateLimitWindow),
		logger,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		Authenticator:     authService.Gate(),
		CORSAllowedOrigin: cfg.FrontendURL,
		TrustProxy:        cfg.TrustedProxy,
		RateLimiter:       s.limiter,
		HTTPRecorder:      collector,

		AuthService:         authService,
		TweetService:        tweetService,
		UserService:         userService,
		NotificationService: notificationService,

		Health: handler.HealthDeps{
			Database: handler.PingFunc(db.PingContext),
			Redis:    s.sessions,
			Broker:   s.broker,
		},
		LiveHandler:    realtime.NewHandler(s.hub, authService.Gate(), cfg.FrontendURL, logger),
		MetricsHandler: metrics.Handler(registry),
	})

	s.http = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Addr はHTTPサーバーの待ち受けアドレスを返す。
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start はリレーをバックグラウンドで起動する。
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.relayCancel = cancel
	s.relayDone = make(chan struct{})
	go s.runRelay(ctx)
}

// runRelay はctxがキャンセルされるまでリレーを動かし続ける。
// 購読が切れた場合は間隔をあけて再購読する。
func (s *Server) runRelay(ctx context.Context) {
	defer close(s.relayDone)

	for {
		err := s.relay.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Error("relay stopped", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryInterval):
		}
	}
}

// ListenAndServe はHTTPサーバーを起動する。Shutdownによる停止ではnilを返す。
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return nil
}

// Shutdown は次の順に停止する。
// HTTP受付停止と処理中リクエストの完了待ち、WebSocket接続の切断、
// リレー停止とブローカーのドレイン、Redis、DB。
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	var errs []error

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.relayCancel != nil {
		s.relayCancel()
		select {
		case <-s.relayDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("relay: %w", ctx.Err()))
		}
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broker: %w", err))
		}
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("all connections closed")
	return nil
}

// abort は組み立て途中で失敗したときに開いた接続を閉じ、errを返す。
func (s *Server) abort(err error) error {
	if closeErr := s.shutdown(context.Background()); closeErr != nil {
		s.logger.Warn("cleanup after startup failure", slog.String("error", closeErr.Error()))
	}
	return err
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newMetrics は専用レジストリにプロセス情報とアプリケーションのメトリクスを登録する。
func newMetrics() (*metrics.Collector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewCollector(registry), registry
}
