package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/bookman/internal/model"
)

// PostgresRequestRepo はPostgreSQLを使用したリクエストリポジトリ。
type PostgresRequestRepo struct {
	db *sql.DB
}

// NewPostgresRequestRepo はPostgresRequestRepoを生成する。
func NewPostgresRequestRepo(db *sql.DB) *PostgresRequestRepo {
	return &PostgresRequestRepo{db: db}
}

// requestColumns はリクエスト取得クエリのSELECT句。
// 表示用のリクエスト者情報をusersテーブルとのJOINで取得する。
const requestColumns = `
	r.id, r.user_id, r.status, r.content_type, r.title,
	r.author, r.year, r.cover_url, r.description, r.isbn_10, r.isbn_13,
	r.provider, r.provider_id, r.series_name, r.series_position,
	r.admin_note, r.approved_by, r.download_task_id, r.hidden_from_admin,
	r.created_at, r.updated_at,
	u.username, u.display_name`

const requestFrom = ` FROM requests r JOIN users u ON r.user_id = u.id`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分を抽象化する。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRequest は1行をmodel.Requestに読み取る。
func scanRequest(row rowScanner) (*model.Request, error) {
	req := &model.Request{}
	var author, year, coverURL, description, isbn10, isbn13 sql.NullString
	var provider, providerID, seriesName, adminNote, taskID sql.NullString
	var seriesPosition sql.NullFloat64
	var approvedBy sql.NullInt64

	err := row.Scan(
		&req.ID, &req.UserID, &req.Status, &req.ContentType, &req.Title,
		&author, &year, &coverURL, &description, &isbn10, &isbn13,
		&provider, &providerID, &seriesName, &seriesPosition,
		&adminNote, &approvedBy, &taskID, &req.HiddenFromAdmin,
		&req.CreatedAt, &req.UpdatedAt,
		&req.RequesterUsername, &req.RequesterDisplayName,
	)
	if err != nil {
		return nil, err
	}

	req.Author = author.String
	req.Year = year.String
	req.CoverURL = coverURL.String
	req.Description = description.String
	req.ISBN10 = isbn10.String
	req.ISBN13 = isbn13.String
	req.Provider = provider.String
	req.ProviderID = providerID.String
	req.SeriesName = seriesName.String
	req.AdminNote = adminNote.String
	req.DownloadTaskID = taskID.String
	if seriesPosition.Valid {
		v := seriesPosition.Float64
		req.SeriesPosition = &v
	}
	if approvedBy.Valid {
		v := approvedBy.Int64
		req.ApprovedBy = &v
	}

	return req, nil
}

// Create はリクエストを作成して採番済みの行を返す。
// statusまたはcontent_typeが列挙値でない場合は書き込み前にエラーを返す。
func (r *PostgresRequestRepo) Create(ctx context.Context, req *model.Request) (*model.Request, error) {
	if req.Status == "" {
		req.Status = model.StatusPending
	}
	if req.ContentType == "" {
		req.ContentType = model.ContentTypeEbook
	}
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("invalid status: %q", req.Status)
	}
	if !req.ContentType.IsValid() {
		return nil, fmt.Errorf("invalid content_type: %q", req.ContentType)
	}

	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO requests
		   (user_id, status, content_type, title, author, year, cover_url,
		    description, isbn_10, isbn_13, provider, provider_id,
		    series_name, series_position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		req.UserID, req.Status, req.ContentType, req.Title,
		nullString(req.Author), nullString(req.Year), nullString(req.CoverURL),
		nullString(req.Description), nullString(req.ISBN10), nullString(req.ISBN13),
		nullString(req.Provider), nullString(req.ProviderID),
		nullString(req.SeriesName), req.SeriesPosition,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}

	return r.FindByID(ctx, id)
}

// FindByID は指定IDのリクエストを取得する。見つからない場合はnilを返す。
func (r *PostgresRequestRepo) FindByID(ctx context.Context, id int64) (*model.Request, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+requestColumns+requestFrom+` WHERE r.id = $1`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リクエストの取得に失敗しました: %w", err)
	}
	return req, nil
}

// List は条件に一致するリクエストをcreated_at降順で返す。
func (r *PostgresRequestRepo) List(ctx context.Context, filter RequestFilter) ([]*model.Request, error) {
	var conditions []string
	var params []any

	if filter.UserID != nil {
		params = append(params, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("r.user_id = $%d", len(params)))
	} else if !filter.IncludeHidden {
		// 管理者ビューでは非表示リクエストを除外する
		conditions = append(conditions, "r.hidden_from_admin = FALSE")
	}
	if filter.Status != nil {
		params = append(params, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(params)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	params = append(params, filter.Limit)
	limitPos := len(params)
	params = append(params, filter.Offset)
	offsetPos := len(params)

	query := fmt.Sprintf(
		`SELECT%s%s%s ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`,
		requestColumns, requestFrom, where, limitPos, offsetPos,
	)

	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("リクエスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var requests []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("リクエスト行の読み取りに失敗しました: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リクエスト一覧の走査に失敗しました: %w", err)
	}

	return requests, nil
}

// Count は条件に一致するリクエスト数を返す。
func (r *PostgresRequestRepo) Count(ctx context.Context, userID *int64, status *model.RequestStatus) (int, error) {
	var conditions []string
	var params []any

	if userID != nil {
		params = append(params, *userID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(params)))
	}
	if status != nil {
		params = append(params, *status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(params)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests"+where, params...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("リクエスト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountsByStatus はステータスごとの件数と合計を返す。
// 全ての列挙ステータスをキーとして含み、該当なしのステータスは0となる。
func (r *PostgresRequestRepo) CountsByStatus(ctx context.Context, userID *int64) (map[model.RequestStatus]int, int, error) {
	query := `SELECT status, COUNT(*) FROM requests GROUP BY status`
	var params []any
	if userID != nil {
		query = `SELECT status, COUNT(*) FROM requests WHERE user_id = $1 GROUP BY status`
		params = append(params, *userID)
	}

	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, 0, fmt.Errorf("ステータス別件数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.RequestStatus]int, len(model.ValidStatuses))
	for _, s := range model.ValidStatuses {
		counts[s] = 0
	}

	total := 0
	for rows.Next() {
		var status model.RequestStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, 0, fmt.Errorf("ステータス別件数の読み取りに失敗しました: %w", err)
		}
		counts[status] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ステータス別件数の走査に失敗しました: %w", err)
	}

	return counts, total, nil
}

// UnviewedCount はユーザーの最終閲覧時刻より後に更新されたリクエスト数を返す。
// 一度も閲覧していない場合はそのユーザーの全リクエスト数を返す。
func (r *PostgresRequestRepo) UnviewedCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM requests r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.user_id = $1
		   AND (u.requests_last_viewed_at IS NULL
		        OR r.updated_at > u.requests_last_viewed_at)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未閲覧件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// UpdateStatus はステータスと指定されたフィールドのみを更新し、更新後の行を返す。
// 行が存在しない場合はnilを返す。statusが列挙値でない場合は書き込み前にエラーを返す。
func (r *PostgresRequestRepo) UpdateStatus(ctx context.Context, id int64, update model.StatusUpdate) (*model.Request, error) {
	if !update.Status.IsValid() {
		return nil, fmt.Errorf("invalid status: %q", update.Status)
	}

	sets := []string{"status = $1", "updated_at = now()"}
	params := []any{update.Status}

	if update.AdminNote != nil {
		params = append(params, *update.AdminNote)
		sets = append(sets, fmt.Sprintf("admin_note = $%d", len(params)))
	}
	if update.ApprovedBy != nil {
		params = append(params, *update.ApprovedBy)
		sets = append(sets, fmt.Sprintf("approved_by = $%d", len(params)))
	}
	if update.DownloadTaskID != nil {
		params = append(params, *update.DownloadTaskID)
		sets = append(sets, fmt.Sprintf("download_task_id = $%d", len(params)))
	}

	params = append(params, id)
	query := fmt.Sprintf("UPDATE requests SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(params))

	result, err := r.db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("リクエストステータスの更新に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.FindByID(ctx, id)
}

// UpdateMetadata はprovider/provider_idのみを更新し、更新後の行を返す。
func (r *PostgresRequestRepo) UpdateMetadata(ctx context.Context, id int64, provider, providerID string) (*model.Request, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE requests
		 SET provider = $1, provider_id = $2, updated_at = now()
		 WHERE id = $3`,
		nullString(provider), nullString(providerID), id,
	)
	if err != nil {
		return nil, fmt.Errorf("リクエストメタデータの更新に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.FindByID(ctx, id)
}

// Delete はリクエストを物理削除する。削除された場合はtrueを返す。
func (r *PostgresRequestRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("リクエストの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// DeleteByUserID はユーザーの全リクエストを削除し、削除件数を返す。
func (r *PostgresRequestRepo) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("リクエストの一括削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// HideFromAdmin はリクエストを管理者ビューから非表示にする。
// 所有者のビューには影響しない。更新された場合はtrueを返す。
func (r *PostgresRequestRepo) HideFromAdmin(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE requests SET hidden_from_admin = TRUE WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("リクエストの非表示化に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListByDownloadTaskID は外部ダウンロードタスクIDに紐づく全リクエストを返す。
func (r *PostgresRequestRepo) ListByDownloadTaskID(ctx context.Context, taskID string) ([]*model.Request, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+requestColumns+requestFrom+` WHERE r.download_task_id = $1`, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクIDによるリクエスト検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var requests []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("リクエスト行の読み取りに失敗しました: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リクエスト一覧の走査に失敗しました: %w", err)
	}

	return requests, nil
}

// compile-time interface check
var _ RequestRepository = (*PostgresRequestRepo)(nil)
