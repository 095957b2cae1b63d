package library

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/hitoshi/bookman/internal/model"
)

const (
	// titleMatchThreshold はタイトル一致とみなす類似度比率の下限。
	titleMatchThreshold = 0.85
	// authorMatchThreshold は著者一致とみなす類似度比率の下限。
	authorMatchThreshold = 0.70
)

// Cache は蔵書スナップショットのメモリキャッシュ。
// RWMutexで保護され、Refreshで全置換、FindMatchで読み取る。
// Refreshの失敗時は前回のスナップショットを維持する（フェイルオープン）。
type Cache struct {
	mu        sync.RWMutex
	items     []model.LibraryItem
	refreshed bool

	client ItemLister // nilの場合は未設定（常に一致なし）
	logger *slog.Logger
}

// NewCache はCacheの新しいインスタンスを生成する。
// clientがnilの場合、キャッシュは常に空で一致判定は常にnilを返す。
func NewCache(client ItemLister, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// Configured は蔵書サーバーが設定されているかを返す。
func (c *Cache) Configured() bool {
	return c.client != nil
}

// Size は現在のスナップショットの件数を返す。
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Refresh は蔵書サーバーからスナップショットを再取得して全置換する。
// 取得失敗時は前回のスナップショットを維持し、0とエラーを返す。
// 未設定の場合は何もせず0を返す。
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	if c.client == nil {
		return 0, nil
	}

	items, err := c.client.ListBookItems(ctx)
	if err != nil {
		c.logger.Warn("蔵書キャッシュの更新に失敗しました（前回のスナップショットを維持します）",
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	c.mu.Lock()
	c.items = items
	c.refreshed = true
	c.mu.Unlock()

	c.logger.Info("蔵書キャッシュを更新しました", slog.Int("item_count", len(items)))
	return len(items), nil
}

// FindMatch はタイトルと著者に一致する蔵書を検索する。
// 一致なしの場合はnilを返す。キャッシュが一度も更新されていない場合は
// 同期的に1回更新を試みる（コールドキャッシュ対策）。
//
// 一致判定:
//   - タイトル: 正規化後の類似度比率が0.85以上、または一方が他方の前方一致
//   - 著者: どちらかが空の場合はタイトルのみで判定、
//     両方ある場合は類似度比率が0.70以上も要求
func (c *Cache) FindMatch(ctx context.Context, title, author string) *model.LibraryItem {
	if c.client == nil {
		return nil
	}

	c.mu.RLock()
	needsRefresh := !c.refreshed
	c.mu.RUnlock()

	if needsRefresh {
		// 初回アクセス時の同期更新。失敗してもフェイルオープンで続行する。
		c.Refresh(ctx)
	}

	normTitle := normalize(title)
	if normTitle == "" {
		return nil
	}
	normAuthor := normalize(author)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.items {
		item := &c.items[i]
		if !titlesMatch(normTitle, normalize(item.Title)) {
			continue
		}

		itemAuthor := normalize(item.Author)
		if normAuthor == "" || itemAuthor == "" {
			match := *item
			return &match
		}
		if similarityRatio(normAuthor, itemAuthor) >= authorMatchThreshold {
			match := *item
			return &match
		}
	}

	return nil
}

// titlesMatch は正規化済みタイトル同士の一致を判定する。
func titlesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if similarityRatio(a, b) >= titleMatchThreshold {
		return true
	}
	// シリーズ表記などで片方が長い場合の前方一致
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// similarityRatio は2文字列の類似度を0.0〜1.0で返す。1.0は完全一致。
// 挿入・削除のみを許す編集距離（indel距離）を2文字列の合計長で正規化した
// 2*LCS/(len(a)+len(b))。置換1回を2（削除+挿入）と数えるため、
// 部分文字列の包含関係（"tolkien" と "jrr tolkien" など）に強い。
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(lcsLength(ra, rb)) / float64(total)
}

// lcsLength は最長共通部分列の長さを返す。行2本のDPで計算する。
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// normalize は比較用にタイトル・著者を正規化する。
// 小文字化し、記号を除去し、連続する空白を1つにまとめる。
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
