// Package download はダウンロードオーケストレーションを提供する。
//
// Guard はリクエストIDごとに同時に1つのオーケストレーター実行のみを
// 許可する。Orchestrator は承認済みリクエストのメタデータ解決から
// 外部キューへの投入までを実行する。
package download

import "sync"

// Guard はリクエストIDごとの実行排他を行う。
// Admitで許可された実行は、終了時に必ずReleaseを呼ぶこと。
type Guard struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewGuard はGuardの新しいインスタンスを生成する。
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[int64]struct{})}
}

// Admit はリクエストIDの実行を許可する。
// 同一IDの実行が既に進行中の場合はfalseを返す。
func (g *Guard) Admit(requestID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.inFlight[requestID]; exists {
		return false
	}
	g.inFlight[requestID] = struct{}{}
	return true
}

// Release はリクエストIDの実行枠を解放する。
// 未許可のIDに対して呼んでも安全（冪等）。
func (g *Guard) Release(requestID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, requestID)
}

// InFlight は現在進行中の実行数を返す。
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
