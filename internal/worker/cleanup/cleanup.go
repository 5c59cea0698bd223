// Package cleanup は既読通知の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した既読通知を日次バッチで削除する。
// 未読通知は保持期間に関係なく残す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は既読通知の既定の保持日数。
const DefaultRetentionDays = 90

// NotificationPurger は指定時刻より古い既読通知を削除する。
// repository.PostgresNotificationRepoが実装する。
type NotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordNotificationsCleaned(count int64)
}

// CleanupJob は保持期間を超過した既読通知の自動削除ジョブ。
// 冪等な削除処理のため、重複実行しても結果は変わらない。
type CleanupJob struct {
	purger        NotificationPurger
	recorder      Recorder
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 既読通知の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(purger NotificationPurger, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		purger:        purger,
		recorder:      recorder,
		logger:        logger,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run は保持期間を超過した既読通知を削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.purger.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("通知クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("通知クリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordNotificationsCleaned(deletedCount)
	}

	j.logger.Info("通知クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降はintervalごとにRunを繰り返す。
// ctxがキャンセルされるまでブロックする。失敗はログに記録して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
