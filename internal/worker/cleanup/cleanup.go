// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 有効期限を過ぎたセッション行を定期バッチで削除する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/bookman/internal/repository"
)

// defaultInterval は削除ジョブの既定の実行間隔。
const defaultInterval = time.Hour

// SessionCleanupJob は期限切れセッションの自動削除ジョブ。
// 冪等な削除処理であり、対象がない場合でもエラーにならない。
type SessionCleanupJob struct {
	sessions repository.SessionRepository
	logger   *slog.Logger
	Interval time.Duration
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(sessions repository.SessionRepository, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		sessions: sessions,
		logger:   logger,
		Interval: defaultInterval,
	}
}

// Start は定期実行ループを起動する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。
func (j *SessionCleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップジョブを開始しました",
		slog.Duration("interval", j.Interval),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("セッションクリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は期限切れセッションを1回削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
