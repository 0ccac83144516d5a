package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// flushTimeout はシャットダウン時の最終書き込みに許容する時間。
const flushTimeout = 5 * time.Second

// WriteFn はスロット1つ分の永続化処理を表す。
type WriteFn func(ctx context.Context) error

// WriteBehind はストアのミューテーションを非同期にストレージへ反映する書き込みキュー。
// スロットごとに最新のスナップショットのみを保持する（latest-wins）。
// インメモリの状態が正であり、書き込み完了を待たずにミューテーションは成立する。
// ミューテーションと書き込み完了の間のクラッシュではその変更が失われる。
type WriteBehind struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]WriteFn

	notify chan struct{}
}

// NewWriteBehind はWriteBehindを生成する。
func NewWriteBehind(logger *slog.Logger) *WriteBehind {
	return &WriteBehind{
		logger:  logger,
		pending: make(map[string]WriteFn),
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue は指定スロットへの書き込みを予約する。
// 同一スロットに未実行の書き込みが残っている場合は新しい方で置き換える。
func (w *WriteBehind) Enqueue(slot string, fn WriteFn) {
	w.mu.Lock()
	w.pending[slot] = fn
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Run は書き込みループを実行する。コンテキストがキャンセルされるまでブロックする。
// 終了前に残っている書き込みを1回だけ反映する。
func (w *WriteBehind) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// 残った書き込みはキャンセル済みコンテキストでは実行できないため、
			// 独立した短命コンテキストで最後に反映する。
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			w.Flush(flushCtx)
			cancel()
			return
		case <-w.notify:
			w.Flush(ctx)
		}
	}
}

// Flush は未実行の書き込みをすべて実行する。
// 失敗した書き込みはログに記録し、次のミューテーションを待つ（リトライはしない）。
func (w *WriteBehind) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]WriteFn)
	w.mu.Unlock()

	for slot, fn := range batch {
		if err := fn(ctx); err != nil {
			w.logger.Error("failed to persist slot",
				slog.String("slot", slot),
				slog.String("error", err.Error()),
			)
		}
	}
}
