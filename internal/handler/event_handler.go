package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/entaku/ourcal/internal/middleware"
	"github.com/entaku/ourcal/internal/model"
)

// EventStoreInterface は予定ハンドラーが必要とするストアインターフェース。
type EventStoreInterface interface {
	Add(data model.CalendarEvent) model.CalendarEvent
	Update(id string, patch model.EventPatch)
	Delete(id string)
	ToggleShared(id string)
	Get(id string) *model.CalendarEvent
	All() []model.CalendarEvent
	EventsForDate(date time.Time) []model.CalendarEvent
	SharedEvents() []model.CalendarEvent
	FetchGoogleCalendarEvents(ctx context.Context) (int, error)
	IsSyncing() bool
}

// SyncObserver は同期の結果をメトリクスに記録するインターフェース。
type SyncObserver interface {
	RecordSyncSuccess()
	RecordSyncFailure(reason string)
	RecordSyncLatency(duration time.Duration)
	RecordEventsMerged(count int)
}

// EventHandler は予定管理のHTTPハンドラー。
type EventHandler struct {
	store    EventStoreInterface
	observer SyncObserver
}

// NewEventHandler はEventHandlerを生成する。observerはnilでもよい。
func NewEventHandler(store EventStoreInterface, observer SyncObserver) *EventHandler {
	return &EventHandler{
		store:    store,
		observer: observer,
	}
}

// eventsResponse は予定一覧のレスポンス。
type eventsResponse struct {
	Events []model.CalendarEvent `json:"events"`
}

// ListEvents は予定一覧を返す。dateクエリ（YYYY-MM-DD）が指定された場合は
// その暦日（ローカルタイム）の予定に絞る。
// GET /api/v1/events?date=2026-08-31
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	dateParam := r.URL.Query().Get("date")

	var events []model.CalendarEvent
	if dateParam == "" {
		events = h.store.All()
	} else {
		date, err := time.ParseInLocation("2006-01-02", dateParam, time.Local)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_DATE",
				Message:  "日付の形式が正しくありません。",
				Category: "validation",
				Action:   "YYYY-MM-DD形式で指定してください。",
			})
			return
		}
		events = h.store.EventsForDate(date)
	}

	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// ListSharedEvents は共有フラグが立っている予定の一覧を返す。
// GET /api/v1/events/shared
func (h *EventHandler) ListSharedEvents(w http.ResponseWriter, r *http.Request) {
	events := h.store.SharedEvents()
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// GetEvent は予定詳細を返す。
// GET /api/v1/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ev := h.store.Get(id)
	if ev == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewEventNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// createEventRequest は予定作成リクエストのボディ。
type createEventRequest struct {
	Title    string    `json:"title"`
	StartAt  time.Time `json:"startAt"`
	EndAt    time.Time `json:"endAt"`
	Memo     *string   `json:"memo"`
	GroupID  *string   `json:"groupId"`
	IsShared bool      `json:"isShared"`
}

// CreateEvent は予定を作成する。
// POST /api/v1/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req createEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEmptyTitleError())
		return
	}

	created := h.store.Add(model.CalendarEvent{
		Title:     req.Title,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Memo:      req.Memo,
		GroupID:   req.GroupID,
		IsShared:  req.IsShared,
		CreatedBy: userID,
	})

	writeJSON(w, http.StatusCreated, created)
}

// updateEventRequest は予定更新リクエストのボディ。未指定のフィールドは変更しない。
type updateEventRequest struct {
	Title    *string    `json:"title"`
	StartAt  *time.Time `json:"startAt"`
	EndAt    *time.Time `json:"endAt"`
	Memo     *string    `json:"memo"`
	GroupID  *string    `json:"groupId"`
	IsShared *bool      `json:"isShared"`
}

// UpdateEvent は予定にパッチを適用する。
// PUT /api/v1/events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != nil && *req.Title == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEmptyTitleError())
		return
	}

	h.store.Update(id, model.EventPatch{
		Title:    req.Title,
		StartAt:  req.StartAt,
		EndAt:    req.EndAt,
		Memo:     req.Memo,
		GroupID:  req.GroupID,
		IsShared: req.IsShared,
	})

	ev := h.store.Get(id)
	if ev == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewEventNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// DeleteEvent は予定を削除する。存在しないIDでも204を返す（べき等）。
// DELETE /api/v1/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.store.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// ToggleShare は予定の共有フラグを反転する。
// POST /api/v1/events/{id}/toggle-share
func (h *EventHandler) ToggleShare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.store.ToggleShared(id)

	ev := h.store.Get(id)
	if ev == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewEventNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Sync はGoogleカレンダーとの同期を実行する。
// 失敗した場合はローカルの予定を変更せずエラーを返す。
// POST /api/v1/sync
func (h *EventHandler) Sync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	merged, err := h.store.FetchGoogleCalendarEvents(r.Context())
	if h.observer != nil {
		h.observer.RecordSyncLatency(time.Since(start))
	}

	if err != nil {
		if h.observer != nil {
			h.observer.RecordSyncFailure("manual")
		}
		handleServiceError(w, err)
		return
	}
	if h.observer != nil {
		h.observer.RecordSyncSuccess()
		h.observer.RecordEventsMerged(merged)
	}

	events := h.store.All()
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// SyncStatus は同期が進行中かを返す。UIのスピナー制御用。
// GET /api/v1/sync/status
func (h *EventHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"isSyncing": h.store.IsSyncing()})
}
