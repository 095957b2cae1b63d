package download

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookman/internal/metrics"
	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/notify"
	"github.com/hitoshi/bookman/internal/provider"
	"github.com/hitoshi/bookman/internal/repository"
	"github.com/hitoshi/bookman/internal/source"
)

// 失敗時にadmin_noteへ記録されるメッセージ。
const (
	noteNoProviderInfo = "No metadata provider info"
	noteBookNotFound   = "Book not found in provider"
	noteNoSources      = "No release sources available"
	noteNoReleases     = "No releases found"
)

// EventPublisher はライフサイクルイベントの発行インターフェース。
type EventPublisher interface {
	Publish(event notify.Event)
}

// Orchestrator は承認済みリクエストのダウンロード実行を担う。
// メタデータ解決、リリース検索、外部キューへの投入を順に行い、
// 各ステップの失敗は admin_note 付きの failed 状態で終端する。
// 呼び出し元へエラーを再送出することはない。
type Orchestrator struct {
	requests  repository.RequestRepository
	providers *provider.Registry
	sources   *source.Registry
	queue     Queue
	bus       EventPublisher
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(
	requests repository.RequestRepository,
	providers *provider.Registry,
	sources *source.Registry,
	queue Queue,
	bus EventPublisher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		requests:  requests,
		providers: providers,
		sources:   sources,
		queue:     queue,
		bus:       bus,
		collector: collector,
		logger:    logger,
	}
}

// Run は1件のリクエストに対するオーケストレーター実行を行う。
// 呼び出し元はGuardで実行を許可し、終了時にReleaseすること。
// このメソッドはエラーを返さない。全ての失敗はリクエストの
// failed 状態として記録される。
func (o *Orchestrator) Run(ctx context.Context, req *model.Request, actor model.Identity) {
	start := time.Now()
	defer func() {
		o.collector.RecordOrchestratorLatency(time.Since(start))
	}()

	// run_id は1回のオーケストレーター実行のログを突き合わせるための相関ID
	logger := o.logger.With(
		slog.String("run_id", uuid.NewString()),
		slog.Int64("request_id", req.ID),
		slog.String("title", req.Title),
	)

	// ステップ1: プロバイダ情報の確認
	if req.Provider == "" || req.ProviderID == "" {
		logger.Warn("プロバイダ情報がないためダウンロードを中止します")
		o.fail(ctx, req, noteNoProviderInfo, "no_provider_info")
		return
	}
	prov := o.providers.Get(req.Provider)
	if prov == nil {
		logger.Warn("未登録のプロバイダが指定されています",
			slog.String("provider", req.Provider),
		)
		o.fail(ctx, req, noteNoProviderInfo, "no_provider_info")
		return
	}

	// ステップ2: メタデータの解決
	book, err := prov.GetBook(ctx, req.ProviderID)
	if err != nil {
		logger.Error("プロバイダからの書籍解決に失敗しました",
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()),
		)
		o.fail(ctx, req, noteBookNotFound, "book_not_found")
		return
	}
	if book == nil {
		logger.Warn("プロバイダに書籍が見つかりません",
			slog.String("provider", req.Provider),
			slog.String("provider_id", req.ProviderID),
		)
		o.fail(ctx, req, noteBookNotFound, "book_not_found")
		return
	}

	// ステップ3: 有効なリリースソースの列挙
	var enabled []source.Source
	for _, s := range o.sources.Enabled() {
		if s.SupportsContentType(req.ContentType) {
			enabled = append(enabled, s)
		}
	}
	if len(enabled) == 0 {
		logger.Warn("有効なリリースソースがありません")
		o.fail(ctx, req, noteNoSources, "no_sources")
		return
	}

	// ステップ4: 全ソースを検索して集約。単一ソースの失敗は致命的ではない。
	plan := source.BuildSearchPlan(book)
	var releases []*model.Release
	for _, s := range enabled {
		found, err := s.Search(ctx, book, plan, req.ContentType)
		if err != nil {
			logger.Warn("リリースソースの検索に失敗したためスキップします",
				slog.String("source", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		releases = append(releases, found...)
	}

	// ステップ5: リリースなしは終端
	if len(releases) == 0 {
		logger.Warn("リリースが見つかりませんでした")
		o.fail(ctx, req, noteNoReleases, "no_releases")
		return
	}

	// 集約順の先頭を選択する。ランキングは行わない。
	chosen := releases[0]

	// ステップ6: リクエスト者向けフィールドの補完
	queued := &model.QueuedRelease{
		Release:          *chosen,
		Author:           book.FirstAuthor(),
		CoverURL:         book.CoverURL,
		ContentType:      req.ContentType,
		SeriesName:       book.SeriesName,
		SeriesPosition:   book.SeriesPosition,
		QueuedByUserID:   actor.UserID,
		QueuedByUsername: actor.Username,
	}
	if book.PublishYear > 0 {
		queued.Year = strconv.Itoa(book.PublishYear)
	} else {
		queued.Year = req.Year
	}
	if queued.Author == "" {
		queued.Author = req.Author
	}
	if queued.CoverURL == "" {
		queued.CoverURL = req.CoverURL
	}

	// ステップ7: 外部キューへの投入
	taskID, err := o.queue.Enqueue(ctx, queued)
	if err != nil {
		logger.Error("ダウンロードキューへの投入に失敗しました",
			slog.String("error", err.Error()),
		)
		o.fail(ctx, req, err.Error(), "queue_error")
		return
	}

	o.updateStatus(ctx, req, model.StatusUpdate{
		Status:         model.StatusDownloading,
		DownloadTaskID: &taskID,
	})
	o.collector.RecordOrchestratorOutcome("queued")

	logger.Info("ダウンロードを開始しました",
		slog.String("task_id", taskID),
		slog.String("source", chosen.SourceName),
	)
}

// fail はリクエストをadmin_note付きのfailed状態で終端する。
func (o *Orchestrator) fail(ctx context.Context, req *model.Request, note, outcome string) {
	o.updateStatus(ctx, req, model.StatusUpdate{
		Status:    model.StatusFailed,
		AdminNote: &note,
	})
	o.collector.RecordOrchestratorOutcome(outcome)
}

// updateStatus はステータスを更新してイベントを発行する。
// リクエストが実行中に削除されていた場合は何もしない。
func (o *Orchestrator) updateStatus(ctx context.Context, req *model.Request, update model.StatusUpdate) {
	updated, err := o.requests.UpdateStatus(ctx, req.ID, update)
	if err != nil {
		o.logger.Error("オーケストレーターのステータス更新に失敗しました",
			slog.Int64("request_id", req.ID),
			slog.String("status", string(update.Status)),
			slog.String("error", err.Error()),
		)
		return
	}
	if updated == nil {
		// 実行中に削除された。更新はスキップする。
		o.logger.Debug("リクエストが削除済みのためステータス更新をスキップします",
			slog.Int64("request_id", req.ID),
		)
		return
	}

	o.collector.RecordStatusTransition(string(updated.Status))
	o.bus.Publish(notify.NewStatusChanged(updated, req.Status))
}
