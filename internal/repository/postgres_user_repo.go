package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `
	id, username, display_name, email, password_hash, is_admin,
	requests_last_viewed_at, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var displayName, email, passwordHash sql.NullString
	var lastViewedAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &displayName, &email, &passwordHash,
		&user.IsAdmin, &lastViewedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName.String
	user.Email = email.String
	user.PasswordHash = passwordHash.String
	if lastViewedAt.Valid {
		t := lastViewedAt.Time
		user.RequestsLastViewedAt = &t
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+userColumns+` FROM users WHERE username = $1`, username)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成して採番済みの行を返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, display_name, email, password_hash, is_admin)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		user.Username, nullString(user.DisplayName), nullString(user.Email),
		nullString(user.PasswordHash), user.IsAdmin,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	return r.FindByID(ctx, id)
}

// CountAdmins は管理者ユーザーの数を返す。
func (r *PostgresUserRepo) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_admin = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("管理者数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// UpdateRequestsLastViewedAt はリクエスト一覧の最終閲覧時刻を更新する。
func (r *PostgresUserRepo) UpdateRequestsLastViewedAt(ctx context.Context, userID int64, viewedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET requests_last_viewed_at = $1, updated_at = now() WHERE id = $2`,
		viewedAt, userID)
	if err != nil {
		return fmt.Errorf("最終閲覧時刻の更新に失敗しました: %w", err)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepo)(nil)
