// Package libsync は蔵書スナップショットの定期更新ジョブを提供する。
// 1時間間隔のティッカーで蔵書サーバーから全アイテムを再取得し、
// 重複チェック用キャッシュを最新に保つ。
package libsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/bookman/internal/metrics"
)

// LibraryCache は蔵書キャッシュの更新インターフェース。
// library.Cacheの部分集合として定義する。
type LibraryCache interface {
	// Configured は蔵書サーバーが設定されているかを返す。
	Configured() bool
	// Refresh はスナップショットを再取得し、取得件数を返す。
	Refresh(ctx context.Context) (int, error)
}

// Refresher は蔵書キャッシュの定期更新を行う。
type Refresher struct {
	cache     LibraryCache
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewRefresher はRefresherの新しいインスタンスを生成する。
func NewRefresher(cache LibraryCache, collector metrics.MetricsCollector, logger *slog.Logger) *Refresher {
	return &Refresher{
		cache:     cache,
		collector: collector,
		logger:    logger,
	}
}

// Start は指定間隔のティッカーで定期更新を起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
// 蔵書サーバーが未設定の場合は何もせず即座に戻る。
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	if !r.cache.Configured() {
		r.logger.Info("蔵書サーバーが未設定のため定期更新をスキップします")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("蔵書スナップショットの定期更新を開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("蔵書スナップショットの定期更新を停止しました")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce はスナップショットを1回更新し、結果をメトリクスに記録する。
// 失敗しても前回のスナップショットは保持されるため、エラーはログのみに記録する。
func (r *Refresher) RunOnce(ctx context.Context) {
	start := time.Now()

	count, err := r.cache.Refresh(ctx)
	if err != nil {
		r.collector.RecordLibraryRefreshFailure()
		r.logger.Error("蔵書スナップショットの更新に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	r.collector.RecordLibraryRefreshItems(count)
	r.logger.Info("蔵書スナップショットを更新しました",
		slog.Int("item_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
