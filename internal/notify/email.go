package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// statusMessages はステータスごとの通知メッセージ。
var statusMessages = map[model.RequestStatus]string{
	model.StatusPending:     "リクエストを受け付けました。承認をお待ちください。",
	model.StatusApproved:    "リクエストが承認されました。",
	model.StatusDenied:      "リクエストは却下されました。",
	model.StatusDownloading: "ダウンロードを開始しました。",
	model.StatusFulfilled:   "書籍が利用可能になりました。",
	model.StatusFailed:      "ダウンロードに失敗しました。",
	model.StatusCancelled:   "リクエストはキャンセルされました。",
}

// EmailConfig はSMTP送信の設定。
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendMailFunc はsmtp.SendMailのシグネチャ。テスト時に差し替え可能。
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier はステータス遷移をリクエスト者へメール通知する購読者。
type EmailNotifier struct {
	config   EmailConfig
	users    repository.UserRepository
	logger   *slog.Logger
	sendMail sendMailFunc
}

// NewEmailNotifier はEmailNotifierの新しいインスタンスを生成する。
func NewEmailNotifier(config EmailConfig, users repository.UserRepository, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		config:   config,
		users:    users,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Name は購読者の識別名を返す。
func (n *EmailNotifier) Name() string { return "email" }

// Handle はステータス遷移イベントをメールで通知する。
// リクエスト者のメールアドレスが未設定の場合は何もしない。
// 送信失敗はログに記録するのみで、遷移には影響しない。
func (n *EmailNotifier) Handle(ctx context.Context, event Event) {
	if event.Type != EventStatusChanged {
		return
	}

	user, err := n.users.FindByID(ctx, event.Request.UserID)
	if err != nil {
		n.logger.Error("メール通知のユーザー取得に失敗しました",
			slog.Int64("user_id", event.Request.UserID),
			slog.String("error", err.Error()),
		)
		return
	}
	if user == nil || user.Email == "" {
		return
	}

	message, ok := statusMessages[event.NewStatus]
	if !ok {
		return
	}

	subject := fmt.Sprintf("リクエスト更新: %s", event.Request.Title)
	var body strings.Builder
	fmt.Fprintf(&body, "「%s」のステータスが %s に変わりました。\r\n\r\n", event.Request.Title, event.NewStatus)
	fmt.Fprintf(&body, "%s\r\n", message)
	if event.Request.AdminNote != "" {
		fmt.Fprintf(&body, "\r\n管理者メモ: %s\r\n", event.Request.AdminNote)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		n.config.From, user.Email, subject, body.String())

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	if err := n.sendMail(addr, auth, n.config.From, []string{user.Email}, []byte(msg)); err != nil {
		n.logger.Error("通知メールの送信に失敗しました",
			slog.Int64("request_id", event.Request.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	n.logger.Info("通知メールを送信しました",
		slog.Int64("request_id", event.Request.ID),
		slog.String("status", string(event.NewStatus)),
	)
}

var _ Handler = (*EmailNotifier)(nil)
