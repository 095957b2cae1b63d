package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// SetupがJSON形式でログを出力することを検証
func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("テストメッセージ", slog.String("key", "value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSONではありません: %v", err)
	}

	if entry["msg"] != "テストメッセージ" {
		t.Errorf("msg = %v, want %q", entry["msg"], "テストメッセージ")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

// DebugレベルのログがInfoレベル設定で抑制されることを検証
func TestSetup_SuppressesDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("デバッグメッセージ")

	if buf.Len() != 0 {
		t.Errorf("Debugログが出力されました: %s", buf.String())
	}
}

// SetupDefaultがグローバルロガーを差し替えることを検証
func TestSetupDefault_ReplacesGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Info("グローバルログ")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("グローバルログ出力がJSONではありません: %v", err)
	}
	if entry["msg"] != "グローバルログ" {
		t.Errorf("msg = %v, want %q", entry["msg"], "グローバルログ")
	}
}
