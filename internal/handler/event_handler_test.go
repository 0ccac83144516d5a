package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/entaku/ourcal/internal/middleware"
	"github.com/entaku/ourcal/internal/model"
)

// mockEventStore はテスト用のEventStoreInterface実装。
type mockEventStore struct {
	addFn           func(data model.CalendarEvent) model.CalendarEvent
	updateFn        func(id string, patch model.EventPatch)
	deleteFn        func(id string)
	toggleSharedFn  func(id string)
	getFn           func(id string) *model.CalendarEvent
	allFn           func() []model.CalendarEvent
	eventsForDateFn func(date time.Time) []model.CalendarEvent
	sharedEventsFn  func() []model.CalendarEvent
	fetchFn         func(ctx context.Context) (int, error)
	isSyncingFn     func() bool
}

func (m *mockEventStore) Add(data model.CalendarEvent) model.CalendarEvent { return m.addFn(data) }
func (m *mockEventStore) Update(id string, patch model.EventPatch)         { m.updateFn(id, patch) }
func (m *mockEventStore) Delete(id string)                                 { m.deleteFn(id) }
func (m *mockEventStore) ToggleShared(id string)                           { m.toggleSharedFn(id) }
func (m *mockEventStore) Get(id string) *model.CalendarEvent               { return m.getFn(id) }
func (m *mockEventStore) All() []model.CalendarEvent                       { return m.allFn() }
func (m *mockEventStore) EventsForDate(date time.Time) []model.CalendarEvent {
	return m.eventsForDateFn(date)
}
func (m *mockEventStore) SharedEvents() []model.CalendarEvent { return m.sharedEventsFn() }
func (m *mockEventStore) FetchGoogleCalendarEvents(ctx context.Context) (int, error) {
	return m.fetchFn(ctx)
}
func (m *mockEventStore) IsSyncing() bool { return m.isSyncingFn() }

// mockSyncObserver はテスト用のSyncObserver実装。
type mockSyncObserver struct {
	mu             sync.Mutex
	successes      int
	failures       []string
	latencyRecords int
	mergedCounts   []int
}

func (m *mockSyncObserver) RecordSyncSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *mockSyncObserver) RecordSyncFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, reason)
}

func (m *mockSyncObserver) RecordSyncLatency(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyRecords++
}

func (m *mockSyncObserver) RecordEventsMerged(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergedCounts = append(m.mergedCounts, count)
}

// withURLParam はchiのURLパラメータをリクエストコンテキストに注入する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeEventsResponse(t *testing.T, rec *httptest.ResponseRecorder) []model.CalendarEvent {
	t.Helper()
	var resp struct {
		Events []model.CalendarEvent `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode events response: %v", err)
	}
	return resp.Events
}

// TestEventHandler_ListEvents は全件一覧の取得を検証する。
func TestEventHandler_ListEvents(t *testing.T) {
	store := &mockEventStore{
		allFn: func() []model.CalendarEvent {
			return []model.CalendarEvent{{ID: "ev-1", Title: "運動会"}}
		},
	}
	h := NewEventHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	events := decodeEventsResponse(t, rec)
	if len(events) != 1 || events[0].ID != "ev-1" {
		t.Errorf("events = %+v", events)
	}
}

// TestEventHandler_ListEvents_ByDate は日付指定での絞り込みを検証する。
func TestEventHandler_ListEvents_ByDate(t *testing.T) {
	var gotDate time.Time
	store := &mockEventStore{
		eventsForDateFn: func(date time.Time) []model.CalendarEvent {
			gotDate = date
			return nil
		},
	}
	h := NewEventHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?date=2026-10-10", nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := time.Date(2026, 10, 10, 0, 0, 0, 0, time.Local)
	if !gotDate.Equal(want) {
		t.Errorf("date = %v, want %v", gotDate, want)
	}
	// nilでも空配列で返す
	if events := decodeEventsResponse(t, rec); events == nil {
		t.Error("events = nil in JSON, want empty array")
	}
}

// TestEventHandler_ListEvents_InvalidDate は不正な日付で400になることを検証する。
func TestEventHandler_ListEvents_InvalidDate(t *testing.T) {
	h := NewEventHandler(&mockEventStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?date=10-10-2026", nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != "INVALID_DATE" {
		t.Errorf("Code = %q, want INVALID_DATE", body.Code)
	}
}

// TestEventHandler_GetEvent は予定詳細の取得と404を検証する。
func TestEventHandler_GetEvent(t *testing.T) {
	store := &mockEventStore{
		getFn: func(id string) *model.CalendarEvent {
			if id == "ev-1" {
				return &model.CalendarEvent{ID: "ev-1", Title: "運動会"}
			}
			return nil
		},
	}
	h := NewEventHandler(store, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/events/ev-1", nil), "id", "ev-1")
	rec := httptest.NewRecorder()
	h.GetEvent(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/events/missing", nil), "id", "missing")
	rec = httptest.NewRecorder()
	h.GetEvent(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != model.ErrCodeEventNotFound {
		t.Errorf("Code = %q, want EVENT_NOT_FOUND", body.Code)
	}
}

// TestEventHandler_CreateEvent は予定作成を検証する。
func TestEventHandler_CreateEvent(t *testing.T) {
	store := &mockEventStore{
		addFn: func(data model.CalendarEvent) model.CalendarEvent {
			if data.CreatedBy != "google_sub-123" {
				t.Errorf("CreatedBy = %q, want authenticated user", data.CreatedBy)
			}
			data.ID = "ev-new"
			return data
		},
	}
	h := NewEventHandler(store, nil)

	body := `{"title":"運動会","startAt":"2026-10-10T09:00:00+09:00","endAt":"2026-10-10T15:00:00+09:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "google_sub-123"))
	rec := httptest.NewRecorder()
	h.CreateEvent(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var created model.CalendarEvent
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID != "ev-new" || created.Title != "運動会" {
		t.Errorf("created = %+v", created)
	}
}

// TestEventHandler_CreateEvent_EmptyTitle はタイトル未入力で400になることを検証する。
func TestEventHandler_CreateEvent_EmptyTitle(t *testing.T) {
	h := NewEventHandler(&mockEventStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(`{"title":""}`))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "google_sub-123"))
	rec := httptest.NewRecorder()
	h.CreateEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != model.ErrCodeEmptyTitle {
		t.Errorf("Code = %q, want EMPTY_TITLE", body.Code)
	}
}

// TestEventHandler_UpdateEvent は部分更新を検証する。
func TestEventHandler_UpdateEvent(t *testing.T) {
	var gotPatch model.EventPatch
	store := &mockEventStore{
		updateFn: func(id string, patch model.EventPatch) {
			gotPatch = patch
		},
		getFn: func(id string) *model.CalendarEvent {
			return &model.CalendarEvent{ID: id, Title: "更新後"}
		},
	}
	h := NewEventHandler(store, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/v1/events/ev-1", strings.NewReader(`{"title":"更新後"}`)), "id", "ev-1")
	rec := httptest.NewRecorder()
	h.UpdateEvent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotPatch.Title == nil || *gotPatch.Title != "更新後" {
		t.Errorf("patch.Title = %v, want 更新後", gotPatch.Title)
	}
	if gotPatch.StartAt != nil {
		t.Error("patch.StartAt set despite absent field")
	}
}

// TestEventHandler_UpdateEvent_EmptyTitle は空文字列へのタイトル更新が拒否されることを検証する。
func TestEventHandler_UpdateEvent_EmptyTitle(t *testing.T) {
	h := NewEventHandler(&mockEventStore{}, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/v1/events/ev-1", strings.NewReader(`{"title":""}`)), "id", "ev-1")
	rec := httptest.NewRecorder()
	h.UpdateEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestEventHandler_UpdateEvent_NotFound は存在しない予定の更新で404になることを検証する。
func TestEventHandler_UpdateEvent_NotFound(t *testing.T) {
	store := &mockEventStore{
		updateFn: func(id string, patch model.EventPatch) {},
		getFn:    func(id string) *model.CalendarEvent { return nil },
	}
	h := NewEventHandler(store, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/v1/events/missing", strings.NewReader(`{}`)), "id", "missing")
	rec := httptest.NewRecorder()
	h.UpdateEvent(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestEventHandler_DeleteEvent は削除のべき等な204を検証する。
func TestEventHandler_DeleteEvent(t *testing.T) {
	var deletedID string
	store := &mockEventStore{
		deleteFn: func(id string) { deletedID = id },
	}
	h := NewEventHandler(store, nil)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/events/ev-1", nil), "id", "ev-1")
	rec := httptest.NewRecorder()
	h.DeleteEvent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if deletedID != "ev-1" {
		t.Errorf("deleted id = %q, want ev-1", deletedID)
	}
}

// TestEventHandler_ToggleShare は共有フラグ反転後の予定が返ることを検証する。
func TestEventHandler_ToggleShare(t *testing.T) {
	var toggledID string
	store := &mockEventStore{
		toggleSharedFn: func(id string) { toggledID = id },
		getFn: func(id string) *model.CalendarEvent {
			return &model.CalendarEvent{ID: id, IsShared: true}
		},
	}
	h := NewEventHandler(store, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/events/ev-1/toggle-share", nil), "id", "ev-1")
	rec := httptest.NewRecorder()
	h.ToggleShare(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if toggledID != "ev-1" {
		t.Errorf("toggled id = %q, want ev-1", toggledID)
	}
	var ev model.CalendarEvent
	if err := json.NewDecoder(rec.Body).Decode(&ev); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !ev.IsShared {
		t.Error("IsShared = false in response, want true")
	}
}

// TestEventHandler_Sync は手動同期の成功パスとメトリクス記録を検証する。
func TestEventHandler_Sync(t *testing.T) {
	store := &mockEventStore{
		fetchFn: func(ctx context.Context) (int, error) { return 1, nil },
		allFn: func() []model.CalendarEvent {
			return []model.CalendarEvent{{ID: "gev-1", IsFromGoogle: true}}
		},
	}
	observer := &mockSyncObserver{}
	h := NewEventHandler(store, observer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if events := decodeEventsResponse(t, rec); len(events) != 1 {
		t.Errorf("events = %+v, want 1 event", events)
	}
	if observer.successes != 1 || len(observer.failures) != 0 {
		t.Errorf("observer = %+v, want 1 success", observer)
	}
	if observer.latencyRecords != 1 {
		t.Errorf("latencyRecords = %d, want 1", observer.latencyRecords)
	}
	if len(observer.mergedCounts) != 1 || observer.mergedCounts[0] != 1 {
		t.Errorf("mergedCounts = %v, want [1]", observer.mergedCounts)
	}
}

// TestEventHandler_Sync_TokenMissing はトークン未設定の同期で401になることを検証する。
func TestEventHandler_Sync_TokenMissing(t *testing.T) {
	store := &mockEventStore{
		fetchFn: func(ctx context.Context) (int, error) { return 0, model.NewTokenMissingError() },
	}
	observer := &mockSyncObserver{}
	h := NewEventHandler(store, observer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if len(observer.failures) != 1 || observer.failures[0] != "manual" {
		t.Errorf("failures = %v, want [manual]", observer.failures)
	}
	if len(observer.mergedCounts) != 0 {
		t.Errorf("mergedCounts = %v, want empty on failure", observer.mergedCounts)
	}
}

// TestEventHandler_Sync_Failed は同期失敗で502になることを検証する。
func TestEventHandler_Sync_Failed(t *testing.T) {
	store := &mockEventStore{
		fetchFn: func(ctx context.Context) (int, error) {
			return 0, model.NewGoogleSyncFailedError("timeout")
		},
	}
	h := NewEventHandler(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != model.ErrCodeGoogleSyncFailed {
		t.Errorf("Code = %q, want GOOGLE_SYNC_FAILED", body.Code)
	}
}

// TestEventHandler_SyncStatus は同期状態の報告を検証する。
func TestEventHandler_SyncStatus(t *testing.T) {
	store := &mockEventStore{
		isSyncingFn: func() bool { return true },
	}
	h := NewEventHandler(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	rec := httptest.NewRecorder()
	h.SyncStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp["isSyncing"] {
		t.Error("isSyncing = false, want true")
	}
}
