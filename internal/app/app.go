// Package app はtweetstreamの起動処理と依存関係の組み立てを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hitoshi/tweetstream/internal/config"
	"github.com/hitoshi/tweetstream/internal/database"
	"github.com/hitoshi/tweetstream/internal/logger"
	"github.com/hitoshi/tweetstream/internal/metrics"
	"github.com/hitoshi/tweetstream/internal/repository"
	"github.com/hitoshi/tweetstream/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// signalContext はSIGINTまたはSIGTERMの受信でキャンセルされるcontextを返す。
// 2回目以降のシグナルはログに残して無視する。
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			slog.Info("shutdown signal received", slog.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}
		for {
			select {
			case sig := <-sigs:
				slog.Warn("shutdown already in progress, signal ignored", slog.String("signal", sig.String()))
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
			cancel()
		})
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングしてHTTPサーバーを起動し、
// シグナルを受信するとグレースフルシャットダウンを行う。
func runServe(parent context.Context, cfg *config.Config) error {
	srv, err := NewServer(cfg, slog.Default())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(parent)
	defer stop()

	srv.Start()

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", srv.Addr()),
			slog.String("env", cfg.AppEnv),
		)
		listenErr <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down API server...")
	case serveErr = <-listenErr:
		if serveErr != nil {
			slog.Error("server listen error", slog.String("error", serveErr.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("server shutdown failed: %w", err))
	}
	if serveErr != nil {
		return serveErr
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 既読通知のクリーンアップジョブをctxがキャンセルされるまで定期実行する。
// WORKER_METRICS_PORTが設定されていれば/metricsを公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. メトリクス
	collector, registry := newMetrics()
	var metricsServer *http.Server
	if cfg.WorkerMetricsPort != "" {
		metricsServer = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker metrics listen error", slog.String("error", err.Error()))
			}
		}()
	}

	// 3. ジョブの初期化
	job := cleanup.NewCleanupJob(repository.NewPostgresNotificationRepo(db), collector, slog.Default())
	if cfg.NotificationRetentionDays > 0 {
		job.RetentionDays = cfg.NotificationRetentionDays
	}

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
		slog.String("metrics_port", cfg.WorkerMetricsPort),
	)

	// 4. ctxがキャンセルされるまでブロック
	job.Start(ctx, cfg.CleanupInterval)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("worker metrics shutdown failed", slog.String("error", err.Error()))
		}
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrateUp は未適用のマイグレーションをすべて適用する。
func runMigrateUp(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runMigrateDown は直近stepsバージョン分のマイグレーションを戻す。
func runMigrateDown(cfg *config.Config, steps int) error {
	slog.Info("rolling back database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", steps),
	)

	if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	slog.Info("database rollback completed successfully")
	return nil
}

// runMigrateVersion は現在のスキーマバージョンをoutに書き出す。
func runMigrateVersion(cfg *config.Config, out io.Writer) error {
	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	_, err = fmt.Fprintf(out, "version=%d dirty=%t\n", version, dirty)
	return err
}

// healthcheckURL はローカルの/healthのURLを返す。portが空の場合は5000を使う。
func healthcheckURL(port string) string {
	if port == "" {
		port = "5000"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、200以外ならエラーを返す。
func runHealthcheck(ctx context.Context, url string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
