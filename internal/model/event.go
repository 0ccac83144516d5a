// Package model はドメインモデルを定義する。
package model

import "time"

// CalendarEvent はカレンダー上の予定を表す。
// Googleカレンダー由来の予定とアプリ内で作成された予定の両方をこの型で扱う。
type CalendarEvent struct {
	ID           string    `json:"id"`
	GroupID      *string   `json:"groupId,omitempty"`
	Title        string    `json:"title"`
	StartAt      time.Time `json:"startAt"`
	EndAt        time.Time `json:"endAt"`
	Memo         *string   `json:"memo,omitempty"`
	IsFromGoogle bool      `json:"isFromGoogle"`
	IsShared     bool      `json:"isShared"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EventPatch はUpdateEventに渡す部分更新を表す。
// nilのフィールドは変更せず、既存の値を維持する。
type EventPatch struct {
	GroupID  *string
	Title    *string
	StartAt  *time.Time
	EndAt    *time.Time
	Memo     *string
	IsShared *bool
}

// SameCalendarDay は2つの時刻がローカルタイムゾーンで同一の暦日に属するかを返す。
// 24時間窓ではなく暦日単位で比較する。
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
