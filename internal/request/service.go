// Package request はリクエストライフサイクルのドメインロジックを提供する。
//
// Service はリクエストの作成・一覧・承認・却下・再試行などの全遷移を
// 管理する。遷移の完了ごとにイベントバスへ発行し、電子書籍の承認時は
// ガード経由でダウンロードオーケストレーターの実行を開始する。
package request

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/bookman/internal/download"
	"github.com/hitoshi/bookman/internal/metrics"
	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/notify"
	"github.com/hitoshi/bookman/internal/provider"
	"github.com/hitoshi/bookman/internal/repository"
	"github.com/hitoshi/bookman/internal/security"
)

const (
	// defaultListLimit は一覧取得のデフォルト件数。
	defaultListLimit = 100
	// maxListLimit は一覧取得の最大件数。
	maxListLimit = 1000
	// activeScanLimit は重複判定で走査する自分のアクティブリクエストの上限。
	activeScanLimit = 500
	// orchestratorTimeout は1回のオーケストレーター実行の上限時間。
	orchestratorTimeout = 5 * time.Minute
)

// Runner はオーケストレーター実行のインターフェース。
// テスト時にモックに差し替え可能。
type Runner interface {
	Run(ctx context.Context, req *model.Request, actor model.Identity)
}

// EventPublisher はライフサイクルイベントの発行インターフェース。
type EventPublisher interface {
	Publish(event notify.Event)
}

// CreateInput はリクエスト作成の入力。
type CreateInput struct {
	Title          string
	ContentType    string
	Author         string
	Year           string
	CoverURL       string
	Description    string
	ISBN10         string
	ISBN13         string
	Provider       string
	ProviderID     string
	SeriesName     string
	SeriesPosition *float64
}

// Service はリクエストライフサイクルのサービス層。
type Service struct {
	requests        repository.RequestRepository
	users           repository.UserRepository
	providers       *provider.Registry
	defaultProvider string
	runner          Runner
	guard           *download.Guard
	bus             EventPublisher
	sanitizer       security.MetadataSanitizerService
	collector       metrics.MetricsCollector
	logger          *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	requests repository.RequestRepository,
	users repository.UserRepository,
	providers *provider.Registry,
	defaultProvider string,
	runner Runner,
	guard *download.Guard,
	bus EventPublisher,
	sanitizer security.MetadataSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		requests:        requests,
		users:           users,
		providers:       providers,
		defaultProvider: defaultProvider,
		runner:          runner,
		guard:           guard,
		bus:             bus,
		sanitizer:       sanitizer,
		collector:       collector,
		logger:          logger,
	}
}

// Create は新しいリクエストを作成する。
// タイトル必須、コンテンツ種別は列挙値のみ。説明文とカバーURLは
// サニタイズされる。同一ユーザーのアクティブリクエストと重複する
// 場合はDUPLICATE_REQUESTエラーを返す。
func (s *Service) Create(ctx context.Context, identity model.Identity, input CreateInput) (*model.Request, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewTitleRequiredError()
	}

	contentType := model.ContentType(input.ContentType)
	if input.ContentType == "" {
		contentType = model.ContentTypeEbook
	}
	if !contentType.IsValid() {
		return nil, model.NewInvalidContentTypeError(input.ContentType)
	}

	if err := s.checkDuplicate(ctx, identity.UserID, title, contentType, input.Provider, input.ProviderID); err != nil {
		return nil, err
	}

	req := &model.Request{
		UserID:         identity.UserID,
		Status:         model.StatusPending,
		ContentType:    contentType,
		Title:          title,
		Author:         strings.TrimSpace(input.Author),
		Year:           strings.TrimSpace(input.Year),
		CoverURL:       s.sanitizer.SanitizeCoverURL(input.CoverURL),
		Description:    s.sanitizer.SanitizeDescription(input.Description),
		ISBN10:         strings.TrimSpace(input.ISBN10),
		ISBN13:         strings.TrimSpace(input.ISBN13),
		Provider:       strings.TrimSpace(input.Provider),
		ProviderID:     strings.TrimSpace(input.ProviderID),
		SeriesName:     strings.TrimSpace(input.SeriesName),
		SeriesPosition: input.SeriesPosition,
	}

	created, err := s.requests.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.collector.RecordRequestCreated(string(created.ContentType))
	s.bus.Publish(notify.NewRequestCreated(created))

	return created, nil
}

// checkDuplicate は同一ユーザーのアクティブリクエストとの重複を判定する。
// provider+provider_idが両方揃っていればその一致、どちらかに識別子が
// なければ大文字小文字を無視したタイトル一致で判定する。
func (s *Service) checkDuplicate(ctx context.Context, userID int64, title string, contentType model.ContentType, providerName, providerID string) error {
	for _, status := range []model.RequestStatus{model.StatusPending, model.StatusApproved, model.StatusDownloading} {
		active, err := s.requests.List(ctx, repository.RequestFilter{
			UserID: &userID,
			Status: &status,
			Limit:  activeScanLimit,
		})
		if err != nil {
			return err
		}

		for _, existing := range active {
			if existing.ContentType != contentType {
				continue
			}
			if providerName != "" && providerID != "" &&
				existing.Provider == providerName && existing.ProviderID == providerID {
				return model.NewDuplicateRequestError()
			}
			if (providerName == "" || providerID == "" || existing.Provider == "" || existing.ProviderID == "") &&
				strings.EqualFold(existing.Title, title) {
				return model.NewDuplicateRequestError()
			}
		}
	}
	return nil
}

// ListResult は一覧取得の結果。
type ListResult struct {
	Requests []*model.Request
	Total    int
	Limit    int
	Offset   int
}

// List はリクエスト一覧を返す。非管理者は自分のリクエストのみに
// スコープされる。管理者ビューは非表示フラグ付きの行を除外する。
func (s *Service) List(ctx context.Context, identity model.Identity, statusFilter string, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	filter := repository.RequestFilter{Limit: limit, Offset: offset}

	if statusFilter != "" {
		status := model.RequestStatus(statusFilter)
		if !status.IsValid() {
			return nil, model.NewInvalidStatusError(statusFilter)
		}
		filter.Status = &status
	}

	var countUserID *int64
	if !identity.IsAdmin {
		uid := identity.UserID
		filter.UserID = &uid
		countUserID = &uid
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.requests.Count(ctx, countUserID, filter.Status)
	if err != nil {
		return nil, err
	}

	return &ListResult{Requests: requests, Total: total, Limit: limit, Offset: offset}, nil
}

// CountsResult はステータス別件数の結果。
type CountsResult struct {
	Counts map[model.RequestStatus]int
	Total  int
	// Unviewed は非管理者にのみ含まれる未閲覧件数。
	Unviewed        int
	IncludeUnviewed bool
}

// Counts はステータス別件数を返す。非管理者は自分のリクエストのみが
// 対象となり、最終閲覧時刻以降の未閲覧件数も含まれる。
func (s *Service) Counts(ctx context.Context, identity model.Identity) (*CountsResult, error) {
	var userID *int64
	if !identity.IsAdmin {
		uid := identity.UserID
		userID = &uid
	}

	counts, total, err := s.requests.CountsByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &CountsResult{Counts: counts, Total: total}
	if !identity.IsAdmin {
		unviewed, err := s.requests.UnviewedCount(ctx, identity.UserID)
		if err != nil {
			return nil, err
		}
		result.Unviewed = unviewed
		result.IncludeUnviewed = true
	}

	return result, nil
}

// MarkViewed は呼び出しユーザーの最終閲覧時刻を現在時刻に更新する。
func (s *Service) MarkViewed(ctx context.Context, identity model.Identity) error {
	return s.users.UpdateRequestsLastViewedAt(ctx, identity.UserID, time.Now())
}

// Get は単一リクエストを返す。所有者と管理者以外はアクセスできない。
func (s *Service) Get(ctx context.Context, identity model.Identity, id int64) (*model.Request, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(id)
	}
	if req.UserID != identity.UserID && !identity.IsAdmin {
		return nil, model.NewAccessDeniedError()
	}
	return req, nil
}

// Delete はリクエストを削除する。所有者は物理削除、所有者でない
// 管理者は管理者ビューからの非表示化となる。それ以外は拒否される。
func (s *Service) Delete(ctx context.Context, identity model.Identity, id int64) error {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return model.NewRequestNotFoundError(id)
	}

	if req.UserID == identity.UserID {
		_, err := s.requests.Delete(ctx, id)
		return err
	}
	if identity.IsAdmin {
		_, err := s.requests.HideFromAdmin(ctx, id)
		return err
	}
	return model.NewAccessDeniedError()
}

// Approve は保留中のリクエストを承認する。
// pending以外からの承認はINVALID_TRANSITIONエラーとなる。
// 電子書籍の場合はオーケストレーター実行の許可を試みる。
func (s *Service) Approve(ctx context.Context, identity model.Identity, id int64) (*model.Request, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(id)
	}
	if req.Status != model.StatusPending {
		return nil, model.NewInvalidTransitionError("approve", req.Status)
	}

	update := model.StatusUpdate{Status: model.StatusApproved}
	if identity.UserID != 0 {
		approver := identity.UserID
		update.ApprovedBy = &approver
	}

	updated, err := s.transition(ctx, req, update)
	if err != nil {
		return nil, err
	}

	if updated.ContentType == model.ContentTypeEbook {
		s.startDownload(updated, identity)
	}

	return updated, nil
}

// Deny はリクエストを却下する。どのステータスからでも許可される。
func (s *Service) Deny(ctx context.Context, identity model.Identity, id int64, adminNote string) (*model.Request, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(id)
	}

	update := model.StatusUpdate{Status: model.StatusDenied}
	if adminNote != "" {
		update.AdminNote = &adminNote
	}

	return s.transition(ctx, req, update)
}

// SetStatus は管理者によるステータスの手動上書きを行う。
func (s *Service) SetStatus(ctx context.Context, identity model.Identity, id int64, status string, adminNote *string) (*model.Request, error) {
	target := model.RequestStatus(status)
	if !target.IsValid() {
		return nil, model.NewInvalidStatusError(status)
	}

	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(id)
	}

	return s.transition(ctx, req, model.StatusUpdate{Status: target, AdminNote: adminNote})
}

// Retry は失敗・キャンセルなどのリクエストを再承認して再実行する。
// メタデータが欠落している場合はベストエフォートで検索補完を行い、
// 見つからなくても approved へ進む。
func (s *Service) Retry(ctx context.Context, identity model.Identity, id int64) (*model.Request, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(id)
	}
	if !req.Status.IsRetryable() {
		return nil, model.NewInvalidTransitionError("retry", req.Status)
	}

	if req.Provider == "" || req.ProviderID == "" {
		if backfilled := s.backfillMetadata(ctx, req); backfilled != nil {
			req = backfilled
		}
	}

	update := model.StatusUpdate{Status: model.StatusApproved}
	if identity.UserID != 0 {
		approver := identity.UserID
		update.ApprovedBy = &approver
	}

	updated, err := s.transition(ctx, req, update)
	if err != nil {
		return nil, err
	}

	if updated.ContentType == model.ContentTypeEbook {
		s.startDownload(updated, identity)
	}

	return updated, nil
}

// backfillMetadata はタイトル・著者による検索でprovider/provider_idを
// 補完する。失敗や一致なしはnilを返し、呼び出し元は補完なしで続行する。
func (s *Service) backfillMetadata(ctx context.Context, req *model.Request) *model.Request {
	prov := s.providers.Get(s.defaultProvider)
	if prov == nil {
		return nil
	}

	query := req.Title
	if req.Author != "" {
		query = req.Title + " " + req.Author
	}

	results, err := prov.Search(ctx, query)
	if err != nil {
		s.logger.Warn("メタデータ補完の検索に失敗しました",
			slog.Int64("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	match := results[0]
	updated, err := s.requests.UpdateMetadata(ctx, req.ID, match.Provider, match.ProviderID)
	if err != nil {
		s.logger.Warn("メタデータ補完の保存に失敗しました",
			slog.Int64("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.Info("メタデータを補完しました",
		slog.Int64("request_id", req.ID),
		slog.String("provider", match.Provider),
		slog.String("provider_id", match.ProviderID),
	)
	return updated
}

// HandleDownloadTaskStatus は外部ダウンロード実行サービスからの終端報告を
// 適用する。タスクIDに紐づく全リクエストのステータスを更新し、
// fulfilledの場合は書籍利用可能イベントも発行する。
func (s *Service) HandleDownloadTaskStatus(ctx context.Context, taskID, status string) (int, error) {
	target := model.RequestStatus(status)
	if target != model.StatusFulfilled && target != model.StatusCancelled && target != model.StatusFailed {
		return 0, model.NewInvalidStatusError(status)
	}

	linked, err := s.requests.ListByDownloadTaskID(ctx, taskID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, req := range linked {
		result, err := s.transition(ctx, req, model.StatusUpdate{Status: target})
		if err != nil {
			s.logger.Error("タスク報告の適用に失敗しました",
				slog.Int64("request_id", req.ID),
				slog.String("task_id", taskID),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated++

		if target == model.StatusFulfilled {
			s.bus.Publish(notify.NewBookAvailable(result))
		}
	}

	return updated, nil
}

// transition はステータスを更新してイベントを発行する。
func (s *Service) transition(ctx context.Context, req *model.Request, update model.StatusUpdate) (*model.Request, error) {
	updated, err := s.requests.UpdateStatus(ctx, req.ID, update)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, model.NewRequestNotFoundError(req.ID)
	}

	s.collector.RecordStatusTransition(string(updated.Status))
	s.bus.Publish(notify.NewStatusChanged(updated, req.Status))

	return updated, nil
}

// startDownload はガード経由でオーケストレーター実行を開始する。
// 同一リクエストの実行が進行中の場合は何もしない。
// 実行は呼び出し元のリクエストスコープから切り離されたコンテキストで行う。
func (s *Service) startDownload(req *model.Request, actor model.Identity) {
	if !s.guard.Admit(req.ID) {
		s.logger.Info("オーケストレーター実行が進行中のため新規実行をスキップします",
			slog.Int64("request_id", req.ID),
		)
		return
	}

	go func() {
		defer s.guard.Release(req.ID)

		ctx, cancel := context.WithTimeout(context.Background(), orchestratorTimeout)
		defer cancel()

		s.runner.Run(ctx, req, actor)
	}()
}
