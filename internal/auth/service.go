// Package auth はローカルユーザー認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	AdminUsername string
	AdminPassword string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	config   ServiceConfig
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		config:   config,
		logger:   logger,
	}
}

// SeedAdmin は管理者ユーザーが存在しない場合に設定値から初期管理者を作成する。
// ADMIN_PASSWORDが未設定の場合は何もしない。起動時に一度だけ呼ばれる。
func (s *Service) SeedAdmin(ctx context.Context) error {
	if s.config.AdminPassword == "" {
		return nil
	}

	count, err := s.users.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("管理者数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("パスワードハッシュの生成に失敗しました: %w", err)
	}

	user, err := s.users.Create(ctx, &model.User{
		Username:     s.config.AdminUsername,
		DisplayName:  s.config.AdminUsername,
		PasswordHash: string(hash),
		IsAdmin:      true,
	})
	if err != nil {
		return fmt.Errorf("初期管理者の作成に失敗しました: %w", err)
	}

	s.logger.Info("初期管理者を作成しました",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return nil
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合もパスワード不一致の場合も同じLOGIN_FAILEDを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	if username == "" || password == "" {
		return nil, nil, model.NewLoginFailedError()
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		// ユーザー有無のタイミング差を減らすためダミー照合を行う
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return nil, nil, model.NewLoginFailedError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewLoginFailedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("ログインしました",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return session, user, nil
}

// Logout はセッションを破棄する。存在しないセッションIDでもエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

// GetCurrentUser はセッションIDから現在のユーザーを取得する。
// セッションが無効または期限切れの場合はnilを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID int64) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
