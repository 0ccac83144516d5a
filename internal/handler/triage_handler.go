package handler

import (
	"errors"
	"net/http"

	"github.com/entaku/ourcal/internal/middleware"
	"github.com/entaku/ourcal/internal/model"
	"github.com/entaku/ourcal/internal/triage"
)

// TriageManagerInterface は振り分けハンドラーが必要とするインターフェース。
type TriageManagerInterface interface {
	Start(all []model.CalendarEvent) int
	Active() bool
	Current() *model.CalendarEvent
	Release(dx, vx float64) (triage.Outcome, error)
	Status() (sorted, total int, done bool, state triage.CardState)
}

// EventLister は振り分け対象の予定一覧を提供するインターフェース。
type EventLister interface {
	All() []model.CalendarEvent
}

// TriageObserver は振り分けの決定をメトリクスに記録するインターフェース。
type TriageObserver interface {
	RecordTriageDecision(direction string)
}

// TriageHandler はスワイプ振り分けのHTTPハンドラー。
// ジェスチャーの座標はクライアントが送信し、判定はサーバー側の閾値で行う。
type TriageHandler struct {
	manager  TriageManagerInterface
	events   EventLister
	observer TriageObserver
}

// NewTriageHandler はTriageHandlerを生成する。observerはnilでもよい。
func NewTriageHandler(manager TriageManagerInterface, events EventLister, observer TriageObserver) *TriageHandler {
	return &TriageHandler{
		manager:  manager,
		events:   events,
		observer: observer,
	}
}

// startSessionResponse はセッション開始のレスポンス。
type startSessionResponse struct {
	Remaining int  `json:"remaining"`
	Done      bool `json:"done"`
}

// StartSession は現在の予定コレクションから振り分けセッションを開始する。
// 未振り分けの予定が無い場合もセッションは開始され、最初から完了状態になる。
// POST /api/v1/triage/session
func (h *TriageHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	remaining := h.manager.Start(h.events.All())
	writeJSON(w, http.StatusOK, startSessionResponse{
		Remaining: remaining,
		Done:      remaining == 0,
	})
}

// currentResponse は現在カードのレスポンス。
type currentResponse struct {
	Event *model.CalendarEvent `json:"event"`
	Done  bool                 `json:"done"`
}

// Current は現在提示中の予定を返す。残りが無い場合はevent=nullでdone=trueを返す。
// GET /api/v1/triage/current
func (h *TriageHandler) Current(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Active() {
		writeNoSessionError(w)
		return
	}

	ev := h.manager.Current()
	writeJSON(w, http.StatusOK, currentResponse{
		Event: ev,
		Done:  ev == nil,
	})
}

// releaseRequest はスワイプリリースのボディ。
// dxは水平移動量、vxはリリース時の水平速度（計測のみ。判定には使用しない）。
type releaseRequest struct {
	DX float64 `json:"dx"`
	VX float64 `json:"vx"`
}

// releaseResponse はリリース判定のレスポンス。
type releaseResponse struct {
	Decision  string               `json:"decision"` // "share" | "private" | "none"
	Event     *model.CalendarEvent `json:"event"`
	Remaining int                  `json:"remaining"`
	Completed bool                 `json:"completed"`
}

// Release はスワイプのリリースを評価する。
// 閾値（±120）を超えた場合のみ確定し、次のカードへ進む。
// POST /api/v1/triage/release
func (h *TriageHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outcome, err := h.manager.Release(req.DX, req.VX)
	if err != nil {
		if errors.Is(err, triage.ErrNoSession) {
			writeNoSessionError(w)
			return
		}
		handleServiceError(w, err)
		return
	}

	if h.observer != nil {
		switch outcome.Decision {
		case triage.DecisionShare:
			h.observer.RecordTriageDecision(string(triage.DirectionRight))
		case triage.DecisionPrivate:
			h.observer.RecordTriageDecision(string(triage.DirectionLeft))
		}
	}

	writeJSON(w, http.StatusOK, releaseResponse{
		Decision:  decisionLabel(outcome.Decision),
		Event:     outcome.Event,
		Remaining: outcome.Remaining,
		Completed: outcome.Completed,
	})
}

// statusResponse はセッション進捗のレスポンス。
type statusResponse struct {
	Sorted    int    `json:"sorted"`
	Total     int    `json:"total"`
	Done      bool   `json:"done"`
	CardState string `json:"cardState"`
}

// Status はセッションの進捗とカード状態を返す。
// GET /api/v1/triage/status
func (h *TriageHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Active() {
		writeNoSessionError(w)
		return
	}

	sorted, total, done, state := h.manager.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Sorted:    sorted,
		Total:     total,
		Done:      done,
		CardState: string(state),
	})
}

// decisionLabel はDecisionをAPIレスポンス用の文字列へ変換する。
func decisionLabel(d triage.Decision) string {
	switch d {
	case triage.DecisionShare:
		return "share"
	case triage.DecisionPrivate:
		return "private"
	default:
		return "none"
	}
}

// writeNoSessionError はセッション未開始のエラーレスポンスを書き込む。
func writeNoSessionError(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusConflict, &model.APIError{
		Code:     "NO_ACTIVE_SESSION",
		Message:  "振り分けセッションが開始されていません。",
		Category: "validation",
		Action:   "先にセッションを開始してください。",
	})
}
