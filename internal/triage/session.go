// Package triage はインポート済み予定を共有/非公開へ振り分けるスワイプ振り分け機能を提供する。
// ジェスチャーのベクトルを二値判定へ変換し、未振り分けの予定を1件ずつ進める。
package triage

import (
	"github.com/entaku/ourcal/internal/model"
)

// SwipeThreshold はスワイプ確定に必要な水平移動量（デバイス非依存単位）。
const SwipeThreshold = 120

// Direction はスワイプの方向を表す。
type Direction string

const (
	// DirectionRight は右スワイプ（共有）。
	DirectionRight Direction = "right"
	// DirectionLeft は左スワイプ（非公開）。
	DirectionLeft Direction = "left"
)

// Decision はリリース評価の結果を表す。
type Decision int

const (
	// DecisionNone は閾値未達。カードは中央へ戻り、カーソルは進まない。
	DecisionNone Decision = iota
	// DecisionShare は右スワイプ確定（グループに公開）。
	DecisionShare
	// DecisionPrivate は左スワイプ確定（自分だけ）。
	DecisionPrivate
)

// Unsorted は全予定から振り分け済みIDを除いた部分集合を返す。
// 振り分け中のToggleSharedは予定をコレクションから取り除かないため、
// IsSharedではなく振り分け済みIDの集合でフィルタする。
func Unsorted(all []model.CalendarEvent, sortedIDs map[string]bool) []model.CalendarEvent {
	var result []model.CalendarEvent
	for _, ev := range all {
		if !sortedIDs[ev.ID] {
			result = append(result, ev)
		}
	}
	return result
}

// EventToggler は判定時の予定の読み取りと振り分け結果の反映に必要なインターフェース。
// event.Storeの部分集合として定義する。
type EventToggler interface {
	// Get は指定IDの予定の現在値を返す。見つからない場合はnilを返す。
	Get(id string) *model.CalendarEvent
	ToggleShared(id string)
}

// Outcome は1回のリリース評価の結果。
type Outcome struct {
	Decision  Decision
	Event     *model.CalendarEvent // 判定対象の予定。Decision=DecisionNoneでも対象があれば設定される。
	Remaining int                  // この評価の後に残っている未振り分け件数
	Completed bool                 // 全予定の振り分けが完了したか
}

// Session は1回の振り分けセッションを表す。
// 入場時点の未振り分け予定を順に1件ずつ提示し、各予定をちょうど1回だけ処理する。
// 入場時のスナップショットは提示順の決定にのみ使い、IsSharedの判定には
// 常にストアの現在値を読む（セッション中のtoggle-shareと競合しないため）。
type Session struct {
	toggler EventToggler
	events  []model.CalendarEvent
	sorted  map[string]bool
}

// NewSession は未振り分け予定の列からセッションを生成する。
// eventsが空の場合、セッションは最初から完了状態になる。
func NewSession(events []model.CalendarEvent, toggler EventToggler) *Session {
	queue := make([]model.CalendarEvent, len(events))
	copy(queue, events)
	return &Session{
		toggler: toggler,
		events:  queue,
		sorted:  make(map[string]bool),
	}
}

// Current は現在提示中の予定を返す。残りが無い場合はnilを返す。
// 予定の内容はストアの現在値を優先する（セッション中の編集を反映する）。
func (s *Session) Current() *model.CalendarEvent {
	remaining := Unsorted(s.events, s.sorted)
	if len(remaining) == 0 {
		return nil
	}
	ev := remaining[0]
	if live := s.toggler.Get(ev.ID); live != nil {
		ev = *live
	}
	return &ev
}

// Done は振り分けるべき予定が残っていないかを返す。
// 入場時点で予定が無い場合も即座にtrueを返す。
func (s *Session) Done() bool {
	return len(Unsorted(s.events, s.sorted)) == 0
}

// Progress は（振り分け済み件数, 総件数）を返す。
func (s *Session) Progress() (sorted, total int) {
	return len(s.sorted), len(s.events)
}

// Release はジェスチャーのリリースを評価する。
// dxは水平移動量、vxはリリース時の速度。判定は位置の閾値のみで行い、
// vxは計測されるが判定には使用しない。
//
// dx > SwipeThreshold なら共有、dx < -SwipeThreshold なら非公開として確定し、
// 予定の現在のIsSharedが判定値と異なる場合のみToggleSharedを呼ぶ。
// どちらの閾値にも達しない場合は状態を変更せず、カーソルも進めない。
func (s *Session) Release(dx, vx float64) Outcome {
	_ = vx // 計測のみ。判定には位置の閾値だけを使う。

	remaining := Unsorted(s.events, s.sorted)
	if len(remaining) == 0 {
		return Outcome{Decision: DecisionNone, Completed: true}
	}
	current := remaining[0]
	// IsSharedはセッション中のtoggle-shareで変わりうるため、
	// スナップショットではなくストアの現在値で判定する。
	if live := s.toggler.Get(current.ID); live != nil {
		current = *live
	}

	var decision Decision
	switch {
	case dx > SwipeThreshold:
		decision = DecisionShare
	case dx < -SwipeThreshold:
		decision = DecisionPrivate
	default:
		return Outcome{
			Decision:  DecisionNone,
			Event:     &current,
			Remaining: len(remaining),
		}
	}

	shouldShare := decision == DecisionShare
	if current.IsShared != shouldShare {
		s.toggler.ToggleShared(current.ID)
	}
	s.sorted[current.ID] = true

	remainingAfter := len(remaining) - 1
	return Outcome{
		Decision:  decision,
		Event:     &current,
		Remaining: remainingAfter,
		Completed: remainingAfter == 0,
	}
}
