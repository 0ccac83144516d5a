// Package event は予定コレクションの正本を管理するイベントストアを提供する。
// CRUD、フィルタリング、および外部同期のマージアルゴリズムを含む。
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entaku/ourcal/internal/calendar"
	"github.com/entaku/ourcal/internal/model"
	"github.com/entaku/ourcal/internal/storage"
)

// Persister は予定コレクションの永続化に必要なインターフェース。
// storage.Storeの部分集合として定義する。
type Persister interface {
	Events(ctx context.Context) ([]model.CalendarEvent, error)
	SetEvents(ctx context.Context, events []model.CalendarEvent) error
}

// Store は予定コレクションを排他的に所有するインメモリストア。
// すべてのミューテーションはメモリを先に更新し、スナップショットを
// write-behindキューへ渡して永続化する。
type Store struct {
	persister Persister
	queue     *storage.WriteBehind
	client    calendar.Client
	logger    *slog.Logger

	mu      sync.RWMutex
	events  []model.CalendarEvent
	syncing bool
}

// NewStore はStoreを生成する。clientはnilでもよい（同期機能が無効になる）。
func NewStore(persister Persister, queue *storage.WriteBehind, client calendar.Client, logger *slog.Logger) *Store {
	return &Store{
		persister: persister,
		queue:     queue,
		client:    client,
		logger:    logger,
	}
}

// Load はストレージから保存済みの予定コレクションを読み込む。
// 起動時に1回呼び出す。
func (s *Store) Load(ctx context.Context) error {
	events, err := s.persister.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	s.mu.Lock()
	s.events = events
	s.mu.Unlock()

	s.logger.Info("events loaded", slog.Int("count", len(events)))
	return nil
}

// Add は新しい予定を追加する。IDと作成日時はストアが採番するため、
// 入力のID/CreatedAtは無視される。作成された予定を返す。
func (s *Store) Add(data model.CalendarEvent) model.CalendarEvent {
	data.ID = uuid.New().String()
	data.CreatedAt = time.Now()

	s.mu.Lock()
	s.events = append(s.events, data)
	s.persistLocked()
	s.mu.Unlock()

	return data
}

// Update は指定IDの予定にパッチをマージする。
// IDが見つからない場合は黙って何もしない（UIが削除と競合しうるためエラーにはしない）。
func (s *Store) Update(id string, patch model.EventPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID != id {
			continue
		}
		applyPatch(&s.events[i], patch)
		s.persistLocked()
		return
	}
}

// Delete は指定IDの予定を削除する。IDが見つからない場合は何もしない。
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID != id {
			continue
		}
		s.events = append(s.events[:i], s.events[i+1:]...)
		s.persistLocked()
		return
	}
}

// ToggleShared は指定IDの予定の共有フラグを反転する。
// IDが見つからない場合は何もしない。2回呼ぶと元の値に戻る。
func (s *Store) ToggleShared(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID != id {
			continue
		}
		s.events[i].IsShared = !s.events[i].IsShared
		s.persistLocked()
		return
	}
}

// Get は指定IDの予定を返す。見つからない場合はnilを返す。
func (s *Store) Get(id string) *model.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			ev := s.events[i]
			return &ev
		}
	}
	return nil
}

// All は予定コレクション全体のスナップショットを返す。
func (s *Store) All() []model.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]model.CalendarEvent, len(s.events))
	copy(snapshot, s.events)
	return snapshot
}

// EventsForDate は開始日時が指定日と同一の暦日（ローカルタイム）に属する予定を返す。
func (s *Store) EventsForDate(date time.Time) []model.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.CalendarEvent
	for _, ev := range s.events {
		if model.SameCalendarDay(ev.StartAt, date) {
			result = append(result, ev)
		}
	}
	return result
}

// SharedEvents は共有フラグが立っている予定を返す。
func (s *Store) SharedEvents() []model.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.CalendarEvent
	for _, ev := range s.events {
		if ev.IsShared {
			result = append(result, ev)
		}
	}
	return result
}

// SyncFromGoogle は取得済みの外部予定バッチを現在のコレクションへマージする。
//
// マージの手順:
//  1. 現在のコレクションのうちプロバイダー由来（IsFromGoogle=true）の予定から
//     ID→IsSharedの対応表を作る（過去の共有判断の退避）。
//  2. 入力バッチの各予定に対応表の値を適用する。対応が無い予定は非公開のまま
//     （新規は非公開から始まる）。
//  3. プロバイダー由来の既存予定は丸ごと破棄し、ローカル作成の予定と
//     更新済み入力バッチの和集合を新しいコレクションとする。
//
// プロバイダーが返さなくなった予定は黙って消える。対応表の読み取りと
// コレクションの置き換えは同一ロック内で行う（read-then-replace）。
func (s *Store) SyncFromGoogle(external []model.CalendarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sharedByID := make(map[string]bool)
	for _, ev := range s.events {
		if ev.IsFromGoogle {
			sharedByID[ev.ID] = ev.IsShared
		}
	}

	merged := make([]model.CalendarEvent, 0, len(s.events)+len(external))
	for _, ev := range s.events {
		if !ev.IsFromGoogle {
			merged = append(merged, ev)
		}
	}
	for _, ev := range external {
		if shared, ok := sharedByID[ev.ID]; ok {
			ev.IsShared = shared
		} else {
			ev.IsShared = false
		}
		merged = append(merged, ev)
	}

	s.events = merged
	s.persistLocked()
}

// FetchGoogleCalendarEvents は外部カレンダーから予定を取得してマージする。
// 成功時はマージした外部予定の件数を返す。取得中はIsSyncingがtrueを返す。
// 取得に失敗した場合はコレクションを変更せず、ユーザー向けメッセージを持つ
// エラーを返す（部分マージは発生しない）。
func (s *Store) FetchGoogleCalendarEvents(ctx context.Context) (int, error) {
	if s.client == nil {
		return 0, model.NewTokenMissingError()
	}

	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return 0, nil
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	external, err := s.client.GetUpcomingEvents(ctx, calendar.DefaultFetchDays)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return 0, apiErr
		}
		s.logger.Error("failed to fetch Google Calendar events",
			slog.String("error", err.Error()),
		)
		return 0, model.NewGoogleSyncFailedError(err.Error())
	}

	s.SyncFromGoogle(external)

	s.logger.Info("Google Calendar sync completed",
		slog.Int("fetched", len(external)),
	)
	return len(external), nil
}

// IsSyncing は外部カレンダー取得が進行中かを返す。UIのスピナー制御用。
func (s *Store) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// persistLocked は現在のコレクションのスナップショットを書き込みキューへ渡す。
// 呼び出し側がs.muを保持していること。
func (s *Store) persistLocked() {
	snapshot := make([]model.CalendarEvent, len(s.events))
	copy(snapshot, s.events)

	s.queue.Enqueue(storage.KeyEvents, func(ctx context.Context) error {
		return s.persister.SetEvents(ctx, snapshot)
	})
}

// applyPatch はnilでないパッチフィールドのみを予定へ反映する。
func applyPatch(ev *model.CalendarEvent, patch model.EventPatch) {
	if patch.GroupID != nil {
		ev.GroupID = patch.GroupID
	}
	if patch.Title != nil {
		ev.Title = *patch.Title
	}
	if patch.StartAt != nil {
		ev.StartAt = *patch.StartAt
	}
	if patch.EndAt != nil {
		ev.EndAt = *patch.EndAt
	}
	if patch.Memo != nil {
		ev.Memo = patch.Memo
	}
	if patch.IsShared != nil {
		ev.IsShared = *patch.IsShared
	}
}
