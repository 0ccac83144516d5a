// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// IDはプロバイダープレフィックス付き（例: "google_<sub>"、"line_<sub>"）。
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
	GoogleID  *string   `json:"googleId,omitempty"`
	LineID    *string   `json:"lineId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationSettings は通知のオン/オフ設定を表す。
type NotificationSettings struct {
	PushEnabled   bool `json:"pushEnabled"`
	EventReminder bool `json:"eventReminder"`
	NewEvent      bool `json:"newEvent"`
	EventUpdate   bool `json:"eventUpdate"`
	MemberJoined  bool `json:"memberJoined"`
	DailySummary  bool `json:"dailySummary"`
}

// AppSettings はアプリ設定を表す。
type AppSettings struct {
	Notifications NotificationSettings `json:"notifications"`
	// ReminderTime は予定の何分前にリマインドするか。
	ReminderTime int `json:"reminderTime"`
}

// DefaultSettings は設定スロットが空の場合に使用する初期設定を返す。
func DefaultSettings() AppSettings {
	return AppSettings{
		Notifications: NotificationSettings{
			PushEnabled:   true,
			EventReminder: true,
			NewEvent:      true,
			EventUpdate:   true,
			MemberJoined:  true,
			DailySummary:  false,
		},
		ReminderTime: 30,
	}
}
