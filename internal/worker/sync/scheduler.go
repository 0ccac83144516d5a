// Package sync はGoogleカレンダーの定期同期ワーカーを提供する。
package sync

import (
	"context"
	"log/slog"
	"time"
)

// Syncer は同期の実行インターフェース。
// event.Storeの部分集合として定義する。
type Syncer interface {
	// FetchGoogleCalendarEvents は外部カレンダーから予定を取得してマージし、
	// 成功時はマージした件数を返す。
	FetchGoogleCalendarEvents(ctx context.Context) (int, error)
}

// SyncObserver は同期の結果をメトリクスに記録するインターフェース。
type SyncObserver interface {
	RecordSyncSuccess()
	RecordSyncFailure(reason string)
	RecordSyncLatency(duration time.Duration)
	RecordEventsMerged(count int)
}

// Scheduler はGoogleカレンダー同期の定期実行を行う。
// 固定間隔のティッカーで同期を実行し、失敗してもローカルの予定は変更されない
// （ストア側の全件成功または全件不採用のセマンティクスに従う）。
type Scheduler struct {
	syncer   Syncer
	observer SyncObserver
	logger   *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。observerはnilでもよい。
func NewScheduler(syncer Syncer, observer SyncObserver, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		observer: observer,
		logger:   logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は同期サイクルを1回実行する。
// 失敗はログとメトリクスに記録し、呼び出し側へは伝播しない。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	merged, err := s.syncer.FetchGoogleCalendarEvents(ctx)
	duration := time.Since(start)

	if s.observer != nil {
		s.observer.RecordSyncLatency(duration)
	}

	if err != nil {
		if s.observer != nil {
			s.observer.RecordSyncFailure("scheduled")
		}
		s.logger.Error("定期同期に失敗しました",
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return
	}

	if s.observer != nil {
		s.observer.RecordSyncSuccess()
		s.observer.RecordEventsMerged(merged)
	}
	s.logger.Info("定期同期が完了しました",
		slog.Int("merged", merged),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
