package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresSessionRepoが正しく初期化されることを検証
func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Userモデルのrequests_last_viewed_atがnil許容であることを検証
func TestPostgresUserRepo_UserModel_NilLastViewedAt(t *testing.T) {
	user := &model.User{
		ID:       1,
		Username: "alice",
		IsAdmin:  false,
	}

	if user.RequestsLastViewedAt != nil {
		t.Error("requests_last_viewed_at should be nil by default")
	}
}

// Sessionモデルのフィールドが正しく構築されることを検証
func TestPostgresSessionRepo_SessionModel_Fields(t *testing.T) {
	now := time.Now()
	session := &model.Session{
		ID:        "session-id-1",
		UserID:    1,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}

	if session.ID != "session-id-1" {
		t.Errorf("session.ID = %q, want %q", session.ID, "session-id-1")
	}
	if !session.ExpiresAt.After(now) {
		t.Error("expires_at should be in the future")
	}
}
